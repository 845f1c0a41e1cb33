package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-installments/internal/actor"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/statemachine"
)

// CreditApplication is one entry touched by a sweep
type CreditApplication struct {
	InstallmentNo int                `json:"installment_no"`
	Amount        decimal.Decimal    `json:"amount"`
	Status        models.EntryStatus `json:"status"`
}

// SweepResult describes what a reconciliation sweep applied
type SweepResult struct {
	CustomerID       uint                `json:"customer_id"`
	PlanID           uint                `json:"plan_id,omitempty"`
	Applications     []CreditApplication `json:"applications"`
	Applied          decimal.Decimal     `json:"applied"`
	RemainingBalance decimal.Decimal     `json:"remaining_balance"`
	PlanStatus       models.PlanStatus   `json:"plan_status,omitempty"`
	touched          []models.RepaymentEntry
	completed        bool
}

// ReconcileService sweeps a customer's credit balance over unpaid installments
type ReconcileService struct {
	repos           *repository.Repositories
	auditSvc        *AuditService
	notificationSvc *NotificationService
	metrics         *metrics.Metrics
	clock           Clock
}

func NewReconcileService(
	repos *repository.Repositories,
	auditSvc *AuditService,
	notificationSvc *NotificationService,
	m *metrics.Metrics,
	clock Clock,
) *ReconcileService {
	return &ReconcileService{
		repos:           repos,
		auditSvc:        auditSvc,
		notificationSvc: notificationSvc,
		metrics:         m,
		clock:           clock,
	}
}

// Reconcile applies the customer's available credit to their oldest active
// plan. Without an active plan or positive balance it changes nothing.
func (s *ReconcileService) Reconcile(ctx context.Context, customerID uint) (*SweepResult, error) {
	if customerID == 0 {
		return nil, invalid("customer_id is required")
	}

	opID := uuid.New()
	var result *SweepResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		customer, err := tx.Party.LockByID(ctx, customerID)
		if err != nil {
			return lookupErr(err, ErrCustomerNotFound, "customer")
		}
		if !customer.IsCustomer() {
			return ErrCustomerNotFound
		}

		plan, err := tx.Plan.FindOpenByCustomer(ctx, customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance, err := tx.Ledger.Balance(ctx, customerID)
			if err != nil {
				return fmt.Errorf("failed to read credit balance: %w", err)
			}
			result = &SweepResult{CustomerID: customerID, Applied: decimal.Zero, RemainingBalance: balance}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load open plan: %w", err)
		}

		result, err = s.sweep(ctx, tx, plan, opID)
		if err != nil {
			return err
		}
		if len(result.Applications) == 0 {
			return nil
		}
		if err := s.finishPlan(ctx, tx, plan, result); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx.Audit, models.AuditReconcile, models.EntityPlan, plan.ID, opID, map[string]any{
			"applied":           result.Applied.StringFixed(2),
			"remaining_balance": result.RemainingBalance.StringFixed(2),
			"installments":      len(result.Applications),
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, result)
	return result, nil
}

// finishPlan recomputes aggregates after a sweep and persists them
func (s *ReconcileService) finishPlan(ctx context.Context, tx *repository.Repositories, plan *models.InstallmentPlan, result *SweepResult) error {
	entries, err := tx.Entry.FindByPlan(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to reload schedule: %w", err)
	}
	completed, err := recomputeAggregates(ctx, plan, entries, s.clock())
	if err != nil {
		return err
	}
	if err := tx.Plan.UpdateAggregates(ctx, plan); err != nil {
		return fmt.Errorf("failed to update plan aggregates: %w", err)
	}
	result.PlanStatus = plan.Status
	result.completed = completed
	return nil
}

func (s *ReconcileService) afterCommit(ctx context.Context, result *SweepResult) {
	if result == nil || len(result.Applications) == 0 {
		return
	}
	s.metrics.CreditSwept(result.Applied)
	evts := []events.Event{events.New(ctx, events.CreditApplied, result.CustomerID, result.PlanID, map[string]any{
		"applied":      result.Applied.StringFixed(2),
		"applications": result.Applications,
	})}
	if result.completed {
		s.metrics.PlanCompleted()
		evts = append(evts, events.New(ctx, events.PlanCompleted, result.CustomerID, result.PlanID, nil))
	}
	s.notificationSvc.Dispatch(evts...)
}

// sweep walks the plan's unpaid entries in installment order, covering each
// from the customer's credit until the balance runs out. A partial cover
// always exhausts the balance and ends the sweep. Only MiscAdjustedAmount
// is touched; every applied amount gets its own Debit row.
// Callers must hold the customer lock.
func (s *ReconcileService) sweep(ctx context.Context, tx *repository.Repositories, plan *models.InstallmentPlan, opID uuid.UUID) (*SweepResult, error) {
	result := &SweepResult{CustomerID: plan.CustomerID, PlanID: plan.ID, Applied: decimal.Zero, PlanStatus: plan.Status}

	available, err := tx.Ledger.Balance(ctx, plan.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read credit balance: %w", err)
	}
	result.RemainingBalance = available
	if !available.IsPositive() {
		return result, nil
	}

	entries, err := tx.Entry.LockUnpaidByPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock unpaid installments: %w", err)
	}

	today := s.clock.Today()
	a := actor.FromContext(ctx)
	for i := range entries {
		if !available.IsPositive() {
			break
		}
		entry := &entries[i]
		remaining := entry.Outstanding()
		if !remaining.IsPositive() {
			continue
		}

		apply := decimal.Min(available, remaining)
		ef := statemachine.NewEntryFSM(entry)
		entry.MiscAdjustedAmount = entry.MiscAdjustedAmount.Add(apply)
		if apply.GreaterThanOrEqual(remaining) {
			err = ef.Settle(ctx, today)
		} else {
			err = ef.MarkPartial(ctx)
		}
		if err != nil {
			return nil, err
		}
		if err := tx.Entry.UpdateSettlement(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to update installment %d: %w", entry.InstallmentNo, err)
		}

		planID, no := plan.ID, entry.InstallmentNo
		debit := &models.MiscLedgerEntry{
			CustomerID:    plan.CustomerID,
			EntryType:     models.LedgerDebit,
			Amount:        apply,
			Description:   fmt.Sprintf("Credit applied to installment #%d of plan %d", no, planID),
			PlanID:        &planID,
			InstallmentNo: &no,
			OperationID:   opID,
			ActorKind:     string(a.Kind),
			ActorID:       a.ID,
		}
		if err := tx.Ledger.Create(ctx, debit); err != nil {
			return nil, fmt.Errorf("failed to record credit debit: %w", err)
		}

		available = available.Sub(apply)
		result.Applied = result.Applied.Add(apply)
		result.Applications = append(result.Applications, CreditApplication{
			InstallmentNo: no, Amount: apply, Status: entry.Status,
		})
		result.touched = append(result.touched, *entry)
	}

	result.RemainingBalance = available
	return result, nil
}
