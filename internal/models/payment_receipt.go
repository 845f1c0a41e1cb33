package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentReceipt records the outcome of one PayInstallment call. A replay
// carrying the same idempotency key returns the stored outcome.
type PaymentReceipt struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	OperationID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"operation_id"`
	IdempotencyKey     *string         `gorm:"size:128;uniqueIndex" json:"idempotency_key,omitempty"`
	PlanID             uint            `gorm:"not null;index" json:"plan_id"`
	InstallmentNo      int             `gorm:"not null" json:"installment_no"`
	Amount             decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	ApplyCredit        bool            `gorm:"not null" json:"apply_credit"`
	Message            string          `gorm:"type:text" json:"message"`
	Status             EntryStatus     `gorm:"size:20;not null" json:"status"`
	Overpayment        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"overpayment"`
	ActualPaidAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"actual_paid_amount"`
	MiscAdjustedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"misc_adjusted_amount"`
	RemainingForEntry  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"remaining_for_entry"`
	CreditApplied      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"credit_applied"`
	PlanStatus         PlanStatus      `gorm:"size:20;not null" json:"plan_status"`
	ActorKind          string          `gorm:"size:20;not null" json:"actor_kind"`
	ActorID            string          `gorm:"size:64;not null" json:"actor_id"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TableName specifies the table name for PaymentReceipt
func (PaymentReceipt) TableName() string {
	return "payment_receipts"
}
