// Package amortization computes fixed-payment installment amounts and
// repayment schedules. Everything here is pure: no storage, no clock.
package amortization

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/models"
)

// workingPlaces bounds intermediate precision so long schedules do not
// accumulate unbounded decimal digits. Persisted values are rounded to 2.
const workingPlaces = 10

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// MonthlyRate converts an annual nominal percent into a periodic rate
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(twelve).Div(hundred)
}

// Payment returns the unrounded periodic installment. term must be positive;
// callers validate before calling.
func Payment(principal, annualRate decimal.Decimal, term int) decimal.Decimal {
	n := decimal.NewFromInt(int64(term))
	if annualRate.IsZero() {
		return principal.Div(n)
	}
	r := MonthlyRate(annualRate)
	factor := one.Add(r).Pow(n)
	return principal.Mul(r).Mul(factor).Div(factor.Sub(one))
}

// Terms are the inputs of a financing quote
type Terms struct {
	Principal  decimal.Decimal
	AnnualRate decimal.Decimal
	Tenure     int
	StartDate  models.Date
}

// Validation errors
var (
	ErrNonPositivePrincipal = errors.New("financed principal must be greater than zero")
	ErrNegativeRate         = errors.New("annual rate must not be negative")
	ErrNonPositiveTenure    = errors.New("tenure must be at least one period")
	ErrMissingStartDate     = errors.New("start date is required")
)

// Validate rejects terms the calculator cannot handle
func (t Terms) Validate() error {
	switch {
	case !t.Principal.IsPositive():
		return ErrNonPositivePrincipal
	case t.AnnualRate.IsNegative():
		return ErrNegativeRate
	case t.Tenure <= 0:
		return ErrNonPositiveTenure
	case t.StartDate.IsZero():
		return ErrMissingStartDate
	}
	return nil
}

// Line is one generated schedule entry, amounts rounded to 2 places
type Line struct {
	InstallmentNo int                `json:"installment_no"`
	DueDate       models.Date        `json:"due_date"`
	EMI           decimal.Decimal    `json:"emi"`
	Principal     decimal.Decimal    `json:"principal"`
	Interest      decimal.Decimal    `json:"interest"`
	Balance       decimal.Decimal    `json:"balance"`
	Status        models.EntryStatus `json:"status"`
}

// Quote is a full preview of a plan's financial figures
type Quote struct {
	FinancedPrincipal decimal.Decimal `json:"financed_principal"`
	EMI               decimal.Decimal `json:"emi"`
	TotalPayable      decimal.Decimal `json:"total_payable"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	Schedule          []Line          `json:"schedule"`
}

// DeriveStatus classifies an unsettled entry by its due date relative to asOf
func DeriveStatus(due, asOf models.Date) models.EntryStatus {
	switch {
	case due.Before(asOf):
		return models.EntryStatusOverdue
	case due.SameMonth(asOf):
		return models.EntryStatusDue
	default:
		return models.EntryStatusUpcoming
	}
}

// GenerateSchedule builds Tenure lines. Due dates advance by calendar months
// from StartDate. Residual rounding drift stays on the final balance and is
// not folded into the last installment.
func GenerateSchedule(t Terms, asOf models.Date) []Line {
	emi := Payment(t.Principal, t.AnnualRate, t.Tenure)
	rate := MonthlyRate(t.AnnualRate)
	balance := t.Principal

	lines := make([]Line, 0, t.Tenure)
	for i := 1; i <= t.Tenure; i++ {
		interest := decimal.Zero
		if !rate.IsZero() {
			interest = balance.Mul(rate).Round(workingPlaces)
		}
		principal := emi.Sub(interest)
		balance = balance.Sub(principal).Round(workingPlaces)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		due := t.StartDate.AddMonths(i)
		lines = append(lines, Line{
			InstallmentNo: i,
			DueDate:       due,
			EMI:           models.Round2(emi),
			Principal:     models.Round2(principal),
			Interest:      models.Round2(interest),
			Balance:       models.Round2(balance),
			Status:        DeriveStatus(due, asOf),
		})
	}
	return lines
}

// Preview validates the terms and computes the schedule and plan totals
func Preview(t Terms, asOf models.Date) (*Quote, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	emi := models.Round2(Payment(t.Principal, t.AnnualRate, t.Tenure))
	total := emi.Mul(decimal.NewFromInt(int64(t.Tenure)))
	return &Quote{
		FinancedPrincipal: models.Round2(t.Principal),
		EMI:               emi,
		TotalPayable:      total,
		TotalInterest:     total.Sub(models.Round2(t.Principal)),
		Schedule:          GenerateSchedule(t, asOf),
	}, nil
}

// FinancedPrincipal is base minus down payment; it errors when nothing is left to finance
func FinancedPrincipal(base, downPayment decimal.Decimal) (decimal.Decimal, error) {
	if downPayment.IsNegative() {
		return decimal.Zero, fmt.Errorf("down payment must not be negative")
	}
	principal := base.Sub(downPayment)
	if !principal.IsPositive() {
		return decimal.Zero, fmt.Errorf("down payment %s leaves nothing to finance from %s: %w",
			downPayment.StringFixed(2), base.StringFixed(2), ErrNonPositivePrincipal)
	}
	return principal, nil
}
