package services

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/statemachine"
)

// recomputeAggregates refreshes a plan's derived counters from its full,
// installment-ordered schedule and completes the plan when nothing is owed.
// It reports whether this call moved the plan to completed.
func recomputeAggregates(ctx context.Context, plan *models.InstallmentPlan, entries []models.RepaymentEntry, now time.Time) (bool, error) {
	paid := 0
	var next *models.Date
	for i := range entries {
		if entries[i].IsPaid() {
			paid++
			continue
		}
		if next == nil {
			next = entries[i].DueDate.Ptr()
		}
	}

	plan.PaidInstallments = paid
	plan.RemainingInstallments = plan.Tenure - paid
	plan.NextDueDate = next

	if !plan.MayComplete() {
		return false, nil
	}
	if err := statemachine.NewPlanFSM(plan).Complete(ctx); err != nil {
		return false, err
	}
	plan.CompletedAt = &now
	return true, nil
}

// initialNextDueDate is the first line not already overdue at origination
func initialNextDueDate(entries []models.RepaymentEntry) *models.Date {
	for i := range entries {
		switch entries[i].Status {
		case models.EntryStatusDue, models.EntryStatusUpcoming:
			return entries[i].DueDate.Ptr()
		}
	}
	return nil
}
