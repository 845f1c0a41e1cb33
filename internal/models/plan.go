package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus is the stored lifecycle state of an InstallmentPlan
type PlanStatus string

// Plan status constants
const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// PlanClassificationDefaulted is a read-time label, never stored
const PlanClassificationDefaulted = "defaulted"

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusCancelled
}

// InstallmentPlan is one financed purchase and its computed aggregates
type InstallmentPlan struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	CustomerID            uint             `gorm:"not null;index" json:"customer_id"`
	ProductID             uint             `gorm:"not null;index" json:"product_id"`
	ProductPrice          decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"product_price"`
	FinanceAmount         *decimal.Decimal `gorm:"type:decimal(15,2)" json:"finance_amount"`
	DownPayment           decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"down_payment"`
	FinancedPrincipal     decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"financed_principal"`
	AnnualRate            decimal.Decimal  `gorm:"type:decimal(7,4);not null" json:"annual_rate"`
	Tenure                int              `gorm:"not null" json:"tenure"`
	EMI                   decimal.Decimal  `gorm:"column:emi;type:decimal(15,2);not null" json:"emi"`
	TotalPayable          decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"total_payable"`
	TotalInterest         decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"total_interest"`
	PaidInstallments      int              `gorm:"not null;default:0" json:"paid_installments"`
	RemainingInstallments int              `gorm:"not null" json:"remaining_installments"`
	NextDueDate           *Date            `json:"next_due_date"`
	Status                PlanStatus       `gorm:"size:20;not null;default:active;index" json:"status"`
	StartDate             Date             `gorm:"not null" json:"start_date"`
	CancelledAt           *time.Time       `json:"cancelled_at"`
	CompletedAt           *time.Time       `json:"completed_at"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`

	// Associations
	Customer   *Party           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Product    *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Entries    []RepaymentEntry `gorm:"foreignKey:PlanID" json:"entries,omitempty"`
	Guarantors []PlanGuarantor  `gorm:"foreignKey:PlanID" json:"guarantors,omitempty"`
}

// TableName specifies the table name for InstallmentPlan
func (InstallmentPlan) TableName() string {
	return "installment_plans"
}

// MayCancel returns true if the plan can be cancelled
func (p *InstallmentPlan) MayCancel() bool {
	return p.Status == PlanStatusActive
}

// MayComplete returns true once every installment is paid
func (p *InstallmentPlan) MayComplete() bool {
	return p.Status == PlanStatusActive && p.PaidInstallments >= p.Tenure
}

// BaseAmount is the override finance amount when positive, else the price snapshot
func (p *InstallmentPlan) BaseAmount() decimal.Decimal {
	if p.FinanceAmount != nil && p.FinanceAmount.IsPositive() {
		return *p.FinanceAmount
	}
	return p.ProductPrice
}

// Classification returns the stored status, or "defaulted" for an active
// plan holding at least one overdue entry as of asOf. Entries must be loaded.
func (p *InstallmentPlan) Classification(asOf Date) string {
	if p.Status != PlanStatusActive {
		return string(p.Status)
	}
	for i := range p.Entries {
		if p.Entries[i].IsOverdue(asOf) {
			return PlanClassificationDefaulted
		}
	}
	return string(p.Status)
}

// PlanResponse is the JSON response format for plans
type PlanResponse struct {
	ID                    uint                     `json:"id"`
	CustomerID            uint                     `json:"customer_id"`
	ProductID             uint                     `json:"product_id"`
	ProductPrice          decimal.Decimal          `json:"product_price"`
	FinanceAmount         *decimal.Decimal         `json:"finance_amount"`
	DownPayment           decimal.Decimal          `json:"down_payment"`
	FinancedPrincipal     decimal.Decimal          `json:"financed_principal"`
	AnnualRate            decimal.Decimal          `json:"annual_rate"`
	Tenure                int                      `json:"tenure"`
	EMI                   decimal.Decimal          `json:"emi"`
	TotalPayable          decimal.Decimal          `json:"total_payable"`
	TotalInterest         decimal.Decimal          `json:"total_interest"`
	PaidInstallments      int                      `json:"paid_installments"`
	RemainingInstallments int                      `json:"remaining_installments"`
	NextDueDate           *Date                    `json:"next_due_date"`
	Status                PlanStatus               `json:"status"`
	Classification        string                   `json:"classification"`
	StartDate             Date                     `json:"start_date"`
	CancelledAt           *time.Time               `json:"cancelled_at"`
	CompletedAt           *time.Time               `json:"completed_at"`
	CreatedAt             time.Time                `json:"created_at"`
	Schedule              []RepaymentEntryResponse `json:"schedule,omitempty"`
	Guarantors            []PlanGuarantorResponse  `json:"guarantors,omitempty"`
}

// ToResponse converts InstallmentPlan to PlanResponse, classifying as of asOf
func (p *InstallmentPlan) ToResponse(asOf Date) PlanResponse {
	resp := PlanResponse{
		ID:                    p.ID,
		CustomerID:            p.CustomerID,
		ProductID:             p.ProductID,
		ProductPrice:          p.ProductPrice,
		FinanceAmount:         p.FinanceAmount,
		DownPayment:           p.DownPayment,
		FinancedPrincipal:     p.FinancedPrincipal,
		AnnualRate:            p.AnnualRate,
		Tenure:                p.Tenure,
		EMI:                   p.EMI,
		TotalPayable:          p.TotalPayable,
		TotalInterest:         p.TotalInterest,
		PaidInstallments:      p.PaidInstallments,
		RemainingInstallments: p.RemainingInstallments,
		NextDueDate:           p.NextDueDate,
		Status:                p.Status,
		Classification:        p.Classification(asOf),
		StartDate:             p.StartDate,
		CancelledAt:           p.CancelledAt,
		CompletedAt:           p.CompletedAt,
		CreatedAt:             p.CreatedAt,
	}
	for i := range p.Entries {
		resp.Schedule = append(resp.Schedule, p.Entries[i].ToResponse())
	}
	for i := range p.Guarantors {
		resp.Guarantors = append(resp.Guarantors, p.Guarantors[i].ToResponse())
	}
	return resp
}

// PlanGuarantor links a plan to a guarantor party
type PlanGuarantor struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PlanID       uint      `gorm:"not null;index" json:"plan_id"`
	PartyID      uint      `gorm:"not null;index" json:"party_id"`
	Relationship string    `gorm:"size:50;not null" json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`

	Party *Party `gorm:"foreignKey:PartyID" json:"party,omitempty"`
}

// TableName specifies the table name for PlanGuarantor
func (PlanGuarantor) TableName() string {
	return "plan_guarantors"
}

type PlanGuarantorResponse struct {
	PartyID      uint   `json:"party_id"`
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship"`
}

func (g *PlanGuarantor) ToResponse() PlanGuarantorResponse {
	resp := PlanGuarantorResponse{PartyID: g.PartyID, Relationship: g.Relationship}
	if g.Party != nil {
		resp.Name = g.Party.Name
	}
	return resp
}
