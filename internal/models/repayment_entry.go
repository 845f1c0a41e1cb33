package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the settlement state of one schedule line
type EntryStatus string

// Entry status constants
const (
	EntryStatusUpcoming EntryStatus = "upcoming"
	EntryStatusDue      EntryStatus = "due"
	EntryStatusOverdue  EntryStatus = "overdue"
	EntryStatusPartial  EntryStatus = "partial"
	EntryStatusPaid     EntryStatus = "paid"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusUpcoming, EntryStatusDue, EntryStatusOverdue, EntryStatusPartial, EntryStatusPaid:
		return true
	}
	return false
}

// RepaymentEntry is one installment of a plan's schedule
type RepaymentEntry struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	PlanID             uint            `gorm:"not null;uniqueIndex:idx_repayment_entries_plan_no" json:"plan_id"`
	InstallmentNo      int             `gorm:"not null;uniqueIndex:idx_repayment_entries_plan_no" json:"installment_no"`
	DueDate            Date            `gorm:"not null;index" json:"due_date"`
	EMIAmount          decimal.Decimal `gorm:"column:emi_amount;type:decimal(15,2);not null" json:"emi_amount"`
	PrincipalAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal_amount"`
	InterestAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"interest_amount"`
	Balance            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance"`
	Status             EntryStatus     `gorm:"size:20;not null;index" json:"status"`
	PaidDate           *Date           `json:"paid_date"`
	ActualPaidAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"actual_paid_amount"`
	MiscAdjustedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"misc_adjusted_amount"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for RepaymentEntry
func (RepaymentEntry) TableName() string {
	return "repayment_entries"
}

// Settled is everything applied to this entry from cash and credit
func (e *RepaymentEntry) Settled() decimal.Decimal {
	return e.ActualPaidAmount.Add(e.MiscAdjustedAmount)
}

// Outstanding is what is still owed on this entry, never negative
func (e *RepaymentEntry) Outstanding() decimal.Decimal {
	rest := e.EMIAmount.Sub(e.Settled())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// CoversEMI reports whether settled reaches the EMI within tolerance
func CoversEMI(settled, emi decimal.Decimal) bool {
	return settled.Add(SettlementTolerance).GreaterThanOrEqual(emi)
}

func (e *RepaymentEntry) IsPaid() bool {
	return e.Status == EntryStatusPaid
}

// MayPay returns true if the entry still accepts money
func (e *RepaymentEntry) MayPay() bool {
	return e.Status != EntryStatusPaid
}

// IsOverdue re-derives lateness as of a date; paid entries are never overdue
func (e *RepaymentEntry) IsOverdue(asOf Date) bool {
	return !e.IsPaid() && e.DueDate.Before(asOf)
}

// RepaymentEntryResponse is the JSON response format for schedule lines
type RepaymentEntryResponse struct {
	InstallmentNo      int             `json:"installment_no"`
	DueDate            Date            `json:"due_date"`
	EMIAmount          decimal.Decimal `json:"emi_amount"`
	PrincipalAmount    decimal.Decimal `json:"principal_amount"`
	InterestAmount     decimal.Decimal `json:"interest_amount"`
	Balance            decimal.Decimal `json:"balance"`
	Status             EntryStatus     `json:"status"`
	PaidDate           *Date           `json:"paid_date"`
	ActualPaidAmount   decimal.Decimal `json:"actual_paid_amount"`
	MiscAdjustedAmount decimal.Decimal `json:"misc_adjusted_amount"`
	Outstanding        decimal.Decimal `json:"outstanding"`
}

// ToResponse converts RepaymentEntry to RepaymentEntryResponse
func (e *RepaymentEntry) ToResponse() RepaymentEntryResponse {
	return RepaymentEntryResponse{
		InstallmentNo:      e.InstallmentNo,
		DueDate:            e.DueDate,
		EMIAmount:          e.EMIAmount,
		PrincipalAmount:    e.PrincipalAmount,
		InterestAmount:     e.InterestAmount,
		Balance:            e.Balance,
		Status:             e.Status,
		PaidDate:           e.PaidDate,
		ActualPaidAmount:   e.ActualPaidAmount,
		MiscAdjustedAmount: e.MiscAdjustedAmount,
		Outstanding:        e.Outstanding(),
	}
}
