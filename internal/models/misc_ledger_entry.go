package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryType is the direction of a customer wallet movement
type LedgerEntryType string

// Entry type constants
const (
	LedgerCredit LedgerEntryType = "credit" // money available to the customer
	LedgerDebit  LedgerEntryType = "debit"  // credit consumed against an installment
)

// MiscLedgerEntry is an append-only movement in a customer's credit wallet.
// Amount is always positive; EntryType carries the sign.
type MiscLedgerEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CustomerID    uint            `gorm:"not null;index" json:"customer_id"`
	EntryType     LedgerEntryType `gorm:"size:10;not null;index" json:"entry_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	PlanID        *uint           `gorm:"index" json:"plan_id,omitempty"`
	InstallmentNo *int            `json:"installment_no,omitempty"`
	OperationID   uuid.UUID       `gorm:"type:uuid;index" json:"operation_id"`
	ActorKind     string          `gorm:"size:20;not null" json:"actor_kind"`
	ActorID       string          `gorm:"size:64;not null" json:"actor_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM
func (MiscLedgerEntry) TableName() string {
	return "misc_ledger_entries"
}

// Signed returns the amount with credits positive and debits negative
func (e *MiscLedgerEntry) Signed() decimal.Decimal {
	if e.EntryType == LedgerDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// LedgerBalance sums credits minus debits
func LedgerBalance(entries []MiscLedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Signed())
	}
	return total
}
