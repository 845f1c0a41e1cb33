package models

import (
	"time"
)

// AuditAction names a mutating engine operation
type AuditAction string

const (
	AuditCreate    AuditAction = "CREATE"
	AuditPay       AuditAction = "PAY"
	AuditReconcile AuditAction = "RECONCILE"
	AuditCancel    AuditAction = "CANCEL"
	AuditCredit    AuditAction = "CREDIT"
)

// Audited entity names, as stored in AuditLog.Entity
const (
	EntityPlan   = "InstallmentPlan"
	EntityEntry  = "RepaymentEntry"
	EntityLedger = "MiscLedgerEntry"
)

// AuditLog attributes one engine operation to its actor. Rows sharing an
// OperationID were written by the same transaction.
type AuditLog struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ActorKind   string      `gorm:"size:20;not null;index" json:"actor_kind"`
	ActorID     string      `gorm:"size:64;not null;index" json:"actor_id"`
	Action      AuditAction `gorm:"size:20;not null;index" json:"action"`
	Entity      string      `gorm:"size:50;not null;index:idx_audit_entity" json:"entity"`
	EntityID    uint        `gorm:"index:idx_audit_entity" json:"entity_id"`
	OperationID string      `gorm:"size:36;index" json:"operation_id"`
	Details     string      `gorm:"type:text" json:"details"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
