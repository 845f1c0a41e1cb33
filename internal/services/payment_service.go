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
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// PaymentRequest applies cash to one installment
type PaymentRequest struct {
	PlanID         uint
	InstallmentNo  int
	Amount         decimal.Decimal
	ApplyCredit    bool
	IdempotencyKey string
}

func (r *PaymentRequest) validate() error {
	switch {
	case r.PlanID == 0:
		return invalid("plan_id is required")
	case r.InstallmentNo < 1:
		return invalid("installment_no must be at least 1")
	case !r.Amount.IsPositive():
		return invalid("amount must be greater than zero")
	case !r.Amount.Equal(r.Amount.Round(2)):
		return invalid("amount must have at most 2 decimal places")
	case len(r.IdempotencyKey) > 128:
		return invalid("idempotency key is too long")
	}
	return nil
}

// PaymentResult is returned to the caller of PayInstallment
type PaymentResult struct {
	OperationID        uuid.UUID          `json:"operation_id"`
	Message            string             `json:"message"`
	Status             models.EntryStatus `json:"status"`
	Overpayment        decimal.Decimal    `json:"overpayment"`
	ActualPaidAmount   decimal.Decimal    `json:"actual_paid_amount"`
	MiscAdjustedAmount decimal.Decimal    `json:"misc_adjusted_amount"`
	RemainingForEntry  decimal.Decimal    `json:"remaining_for_entry"`
	CreditApplied      decimal.Decimal    `json:"credit_applied"`
	PlanStatus         models.PlanStatus  `json:"plan_status"`
	Replayed           bool               `json:"replayed"`
}

func resultFromReceipt(r *models.PaymentReceipt) *PaymentResult {
	return &PaymentResult{
		OperationID:        r.OperationID,
		Message:            r.Message,
		Status:             r.Status,
		Overpayment:        r.Overpayment,
		ActualPaidAmount:   r.ActualPaidAmount,
		MiscAdjustedAmount: r.MiscAdjustedAmount,
		RemainingForEntry:  r.RemainingForEntry,
		CreditApplied:      r.CreditApplied,
		PlanStatus:         r.PlanStatus,
		Replayed:           true,
	}
}

// receiptError marks a failed receipt insert, typically a unique violation
// on the idempotency key (gorm.ErrDuplicatedKey once translated).
type receiptError struct {
	err error
}

func (e *receiptError) Error() string { return "failed to store receipt: " + e.err.Error() }
func (e *receiptError) Unwrap() error { return e.err }

// replay returns the stored outcome for req's idempotency key, nil when the
// key is unused, or a Conflict when the key belongs to a different payment.
func (s *PaymentService) replay(ctx context.Context, receipts repository.ReceiptRepository, req PaymentRequest) (*PaymentResult, error) {
	receipt, err := receipts.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up receipt: %w", err)
	}
	if receipt.PlanID != req.PlanID || receipt.InstallmentNo != req.InstallmentNo || !receipt.Amount.Equal(req.Amount) {
		return nil, &ServiceError{Kind: KindConflict, Message: "idempotency key was used for a different payment"}
	}
	return resultFromReceipt(receipt), nil
}

type PaymentService struct {
	repos           *repository.Repositories
	reconcileSvc    *ReconcileService
	auditSvc        *AuditService
	notificationSvc *NotificationService
	metrics         *metrics.Metrics
	clock           Clock
}

func NewPaymentService(
	repos *repository.Repositories,
	reconcileSvc *ReconcileService,
	auditSvc *AuditService,
	notificationSvc *NotificationService,
	m *metrics.Metrics,
	clock Clock,
) *PaymentService {
	return &PaymentService{
		repos:           repos,
		reconcileSvc:    reconcileSvc,
		auditSvc:        auditSvc,
		notificationSvc: notificationSvc,
		metrics:         m,
		clock:           clock,
	}
}

// PayInstallment applies req.Amount to one entry. Entry settlement, the
// overpayment credit, the optional credit sweep, the plan aggregates, the
// audit row and the receipt all commit together or not at all.
func (s *PaymentService) PayInstallment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	opID := uuid.New()
	var (
		result   *PaymentResult
		plan     *models.InstallmentPlan
		sweep    *SweepResult
		complete bool
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if req.IdempotencyKey != "" {
			replay, err := s.replay(ctx, tx.Receipt, req)
			if err != nil || replay != nil {
				result = replay
				return err
			}
		}

		var err error
		plan, err = lockPlan(ctx, tx, req.PlanID)
		if err != nil {
			return err
		}

		entry, err := tx.Entry.LockByPlanAndNumber(ctx, plan.ID, req.InstallmentNo)
		if err != nil {
			return lookupErr(err, ErrEntryNotFound, "installment")
		}
		if !entry.MayPay() {
			return ErrAlreadySettled
		}
		if plan.Status != models.PlanStatusActive {
			return ErrPlanNotActive
		}

		result, err = s.applyCash(ctx, tx, plan, entry, req.Amount, opID)
		if err != nil {
			return err
		}

		if req.ApplyCredit {
			sweep, err = s.reconcileSvc.sweep(ctx, tx, plan, opID)
			if err != nil {
				return err
			}
			result.CreditApplied = sweep.Applied
			for _, touched := range sweep.touched {
				if touched.InstallmentNo == entry.InstallmentNo {
					*entry = touched
				}
			}
		}

		entries, err := tx.Entry.FindByPlan(ctx, plan.ID)
		if err != nil {
			return fmt.Errorf("failed to reload schedule: %w", err)
		}
		complete, err = recomputeAggregates(ctx, plan, entries, s.clock())
		if err != nil {
			return err
		}
		if err := tx.Plan.UpdateAggregates(ctx, plan); err != nil {
			return fmt.Errorf("failed to update plan aggregates: %w", err)
		}

		result.Status = entry.Status
		result.ActualPaidAmount = entry.ActualPaidAmount
		result.MiscAdjustedAmount = entry.MiscAdjustedAmount
		result.RemainingForEntry = entry.Outstanding()
		result.PlanStatus = plan.Status

		if err := s.auditSvc.Record(ctx, tx.Audit, models.AuditPay, models.EntityEntry, entry.ID, opID, map[string]any{
			"plan_id":        plan.ID,
			"installment_no": entry.InstallmentNo,
			"amount":         req.Amount.StringFixed(2),
			"status":         entry.Status,
			"overpayment":    result.Overpayment.StringFixed(2),
			"credit_applied": result.CreditApplied.StringFixed(2),
		}); err != nil {
			return err
		}
		if err := tx.Receipt.Create(ctx, s.receipt(ctx, req, result)); err != nil {
			return &receiptError{err: err}
		}
		return nil
	})
	var rerr *receiptError
	if errors.As(err, &rerr) && req.IdempotencyKey != "" {
		// A concurrent request with the same key may have committed first.
		// Everything above was rolled back, so answer with its stored outcome.
		if replay, findErr := s.replay(ctx, s.repos.Receipt, req); findErr != nil || replay != nil {
			result, err = replay, findErr
		}
	}
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return result, nil
	}

	s.afterCommit(ctx, req, plan, result, sweep, complete)
	return result, nil
}

// applyCash adds the payment to ActualPaidAmount and settles or marks the
// entry partial. Any excess over the EMI becomes a Credit ledger entry.
func (s *PaymentService) applyCash(ctx context.Context, tx *repository.Repositories, plan *models.InstallmentPlan, entry *models.RepaymentEntry, amount decimal.Decimal, opID uuid.UUID) (*PaymentResult, error) {
	result := &PaymentResult{OperationID: opID, Overpayment: decimal.Zero, CreditApplied: decimal.Zero}

	newTotal := entry.Settled().Add(amount)
	entry.ActualPaidAmount = entry.ActualPaidAmount.Add(amount)
	ef := statemachine.NewEntryFSM(entry)

	if !models.CoversEMI(newTotal, entry.EMIAmount) {
		if err := ef.MarkPartial(ctx); err != nil {
			return nil, err
		}
		if err := tx.Entry.UpdateSettlement(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to update installment: %w", err)
		}
		result.Message = fmt.Sprintf("Partial payment recorded for installment #%d; %s still owed",
			entry.InstallmentNo, entry.Outstanding().StringFixed(2))
		return result, nil
	}

	if err := ef.Settle(ctx, s.clock.Today()); err != nil {
		return nil, err
	}
	if err := tx.Entry.UpdateSettlement(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update installment: %w", err)
	}
	result.Message = fmt.Sprintf("Installment #%d paid in full", entry.InstallmentNo)

	overpayment := newTotal.Sub(entry.EMIAmount)
	if !overpayment.IsPositive() {
		return result, nil
	}
	result.Overpayment = overpayment
	result.Message += fmt.Sprintf("; overpayment of %s credited", overpayment.StringFixed(2))

	a := actor.FromContext(ctx)
	planID, no := plan.ID, entry.InstallmentNo
	credit := &models.MiscLedgerEntry{
		CustomerID: plan.CustomerID,
		EntryType:  models.LedgerCredit,
		Amount:     overpayment,
		Description: fmt.Sprintf("Overpayment on installment #%d of plan %d: paid %s against EMI %s",
			no, planID, newTotal.StringFixed(2), entry.EMIAmount.StringFixed(2)),
		PlanID:        &planID,
		InstallmentNo: &no,
		OperationID:   opID,
		ActorKind:     string(a.Kind),
		ActorID:       a.ID,
	}
	if err := tx.Ledger.Create(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to record overpayment credit: %w", err)
	}
	return result, nil
}

func (s *PaymentService) receipt(ctx context.Context, req PaymentRequest, result *PaymentResult) *models.PaymentReceipt {
	a := actor.FromContext(ctx)
	r := &models.PaymentReceipt{
		OperationID:        result.OperationID,
		PlanID:             req.PlanID,
		InstallmentNo:      req.InstallmentNo,
		Amount:             req.Amount,
		ApplyCredit:        req.ApplyCredit,
		Message:            result.Message,
		Status:             result.Status,
		Overpayment:        result.Overpayment,
		ActualPaidAmount:   result.ActualPaidAmount,
		MiscAdjustedAmount: result.MiscAdjustedAmount,
		RemainingForEntry:  result.RemainingForEntry,
		CreditApplied:      result.CreditApplied,
		PlanStatus:         result.PlanStatus,
		ActorKind:          string(a.Kind),
		ActorID:            a.ID,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		r.IdempotencyKey = &key
	}
	return r
}

func (s *PaymentService) afterCommit(ctx context.Context, req PaymentRequest, plan *models.InstallmentPlan, result *PaymentResult, sweep *SweepResult, complete bool) {
	s.metrics.PaymentApplied(string(result.Status), result.Overpayment)
	logger.FromContext(ctx).Info("installment payment applied",
		"plan_id", plan.ID, "installment_no", req.InstallmentNo, "amount", req.Amount.StringFixed(2),
		"status", result.Status, "overpayment", result.Overpayment.StringFixed(2), "operation_id", result.OperationID)

	evts := []events.Event{events.New(ctx, events.InstallmentSettled, plan.CustomerID, plan.ID, map[string]any{
		"installment_no": req.InstallmentNo,
		"amount":         req.Amount.StringFixed(2),
		"status":         result.Status,
		"overpayment":    result.Overpayment.StringFixed(2),
		"operation_id":   result.OperationID,
	})}
	if sweep != nil && len(sweep.Applications) > 0 {
		s.metrics.CreditSwept(sweep.Applied)
		evts = append(evts, events.New(ctx, events.CreditApplied, plan.CustomerID, plan.ID, map[string]any{
			"applied":      sweep.Applied.StringFixed(2),
			"applications": sweep.Applications,
		}))
	}
	if complete {
		s.metrics.PlanCompleted()
		evts = append(evts, events.New(ctx, events.PlanCompleted, plan.CustomerID, plan.ID, nil))
	}
	s.notificationSvc.Dispatch(evts...)
}
