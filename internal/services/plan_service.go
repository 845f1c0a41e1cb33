package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-installments/internal/amortization"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/statemachine"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// PreviewRequest quotes terms without persisting anything. When BaseAmount
// is zero the product's current price is used.
type PreviewRequest struct {
	BaseAmount  decimal.Decimal
	ProductID   uint
	DownPayment decimal.Decimal
	AnnualRate  decimal.Decimal
	Tenure      int
	StartDate   models.Date
}

// GuarantorInput attaches an existing party to a new plan
type GuarantorInput struct {
	PartyID      uint
	Relationship string
}

// CreatePlanRequest originates a plan against one product unit
type CreatePlanRequest struct {
	CustomerID    uint
	ProductID     uint
	FinanceAmount *decimal.Decimal
	DownPayment   decimal.Decimal
	AnnualRate    decimal.Decimal
	Tenure        int
	StartDate     models.Date
	Guarantors    []GuarantorInput
}

func (r *CreatePlanRequest) validate() error {
	switch {
	case r.CustomerID == 0:
		return invalid("customer_id is required")
	case r.ProductID == 0:
		return invalid("product_id is required")
	case r.FinanceAmount != nil && r.FinanceAmount.IsNegative():
		return invalid("finance_amount must not be negative")
	case r.DownPayment.IsNegative():
		return invalid("down_payment must not be negative")
	case r.AnnualRate.IsNegative():
		return invalidErr(amortization.ErrNegativeRate)
	case r.Tenure <= 0:
		return invalidErr(amortization.ErrNonPositiveTenure)
	case r.StartDate.IsZero():
		return invalidErr(amortization.ErrMissingStartDate)
	}
	for _, g := range r.Guarantors {
		if g.PartyID == 0 || g.Relationship == "" {
			return invalid("each guarantor needs a party_id and a relationship")
		}
	}
	return nil
}

// PlanService originates, reads and cancels installment plans
type PlanService struct {
	repos           *repository.Repositories
	auditSvc        *AuditService
	notificationSvc *NotificationService
	metrics         *metrics.Metrics
	clock           Clock
}

func NewPlanService(
	repos *repository.Repositories,
	auditSvc *AuditService,
	notificationSvc *NotificationService,
	m *metrics.Metrics,
	clock Clock,
) *PlanService {
	return &PlanService{
		repos:           repos,
		auditSvc:        auditSvc,
		notificationSvc: notificationSvc,
		metrics:         m,
		clock:           clock,
	}
}

// Preview computes the quote for the given terms
func (s *PlanService) Preview(ctx context.Context, req PreviewRequest) (*amortization.Quote, error) {
	base := req.BaseAmount
	if !base.IsPositive() && req.ProductID > 0 {
		product, err := s.repos.Product.FindByID(ctx, req.ProductID)
		if err != nil {
			return nil, lookupErr(err, ErrProductNotFound, "product")
		}
		base = product.Price
	}
	if !base.IsPositive() {
		return nil, invalid("base_amount or product_id is required")
	}

	principal, err := amortization.FinancedPrincipal(base, req.DownPayment)
	if err != nil {
		return nil, invalidErr(err)
	}
	quote, err := amortization.Preview(amortization.Terms{
		Principal:  principal,
		AnnualRate: req.AnnualRate,
		Tenure:     req.Tenure,
		StartDate:  req.StartDate,
	}, s.clock.Today())
	if err != nil {
		return nil, invalidErr(err)
	}
	return quote, nil
}

// Create originates a plan: it reserves one product unit and persists the
// plan with its schedule in a single transaction.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*models.InstallmentPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	opID := uuid.New()
	var plan *models.InstallmentPlan
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		customer, err := tx.Party.LockByID(ctx, req.CustomerID)
		if err != nil {
			return lookupErr(err, ErrCustomerNotFound, "customer")
		}
		if !customer.IsCustomer() {
			return ErrCustomerNotFound
		}

		product, err := tx.Product.FindByID(ctx, req.ProductID)
		if err != nil {
			return lookupErr(err, ErrProductNotFound, "product")
		}

		guarantors, err := s.loadGuarantors(ctx, tx, req.Guarantors)
		if err != nil {
			return err
		}

		plan, err = s.buildPlan(req, product)
		if err != nil {
			return err
		}

		reserved, err := tx.Product.ReserveUnit(ctx, product.ID)
		if err != nil {
			return fmt.Errorf("failed to reserve product unit: %w", err)
		}
		if !reserved {
			return ErrInsufficientInventory
		}

		plan.Guarantors = guarantors
		if err := tx.Plan.Create(ctx, plan); err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}

		return s.auditSvc.Record(ctx, tx.Audit, models.AuditCreate, models.EntityPlan, plan.ID, opID, map[string]any{
			"customer_id":        plan.CustomerID,
			"product_id":         plan.ProductID,
			"financed_principal": plan.FinancedPrincipal.StringFixed(2),
			"tenure":             plan.Tenure,
			"emi":                plan.EMI.StringFixed(2),
		})
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientInventory) {
			s.metrics.InventoryConflict()
		}
		return nil, err
	}

	s.metrics.PlanCreated()
	logger.FromContext(ctx).Info("plan originated",
		"plan_id", plan.ID, "customer_id", plan.CustomerID, "product_id", plan.ProductID, "operation_id", opID)
	s.notificationSvc.Dispatch(events.New(ctx, events.PlanCreated, plan.CustomerID, plan.ID, map[string]any{
		"financed_principal": plan.FinancedPrincipal.StringFixed(2),
		"emi":                plan.EMI.StringFixed(2),
		"tenure":             plan.Tenure,
	}))
	return plan, nil
}

func (s *PlanService) loadGuarantors(ctx context.Context, tx *repository.Repositories, inputs []GuarantorInput) ([]models.PlanGuarantor, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(inputs))
	for _, g := range inputs {
		ids = append(ids, g.PartyID)
	}
	parties, err := tx.Party.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load guarantors: %w", err)
	}
	known := make(map[uint]bool, len(parties))
	for _, p := range parties {
		known[p.ID] = true
	}

	links := make([]models.PlanGuarantor, 0, len(inputs))
	for _, g := range inputs {
		if !known[g.PartyID] {
			return nil, &ServiceError{Kind: KindNotFound, Message: ErrGuarantorNotFound.Message,
				Err: fmt.Errorf("party %d", g.PartyID)}
		}
		links = append(links, models.PlanGuarantor{PartyID: g.PartyID, Relationship: g.Relationship})
	}
	return links, nil
}

// buildPlan snapshots the price and computes every persisted figure
func (s *PlanService) buildPlan(req CreatePlanRequest, product *models.Product) (*models.InstallmentPlan, error) {
	plan := &models.InstallmentPlan{
		CustomerID:    req.CustomerID,
		ProductID:     product.ID,
		ProductPrice:  product.Price,
		FinanceAmount: req.FinanceAmount,
		DownPayment:   models.Round2(req.DownPayment),
		AnnualRate:    req.AnnualRate,
		Tenure:        req.Tenure,
		Status:        models.PlanStatusActive,
		StartDate:     req.StartDate,
	}

	principal, err := amortization.FinancedPrincipal(plan.BaseAmount(), plan.DownPayment)
	if err != nil {
		return nil, invalidErr(err)
	}
	quote, err := amortization.Preview(amortization.Terms{
		Principal:  principal,
		AnnualRate: req.AnnualRate,
		Tenure:     req.Tenure,
		StartDate:  req.StartDate,
	}, s.clock.Today())
	if err != nil {
		return nil, invalidErr(err)
	}

	plan.FinancedPrincipal = quote.FinancedPrincipal
	plan.EMI = quote.EMI
	plan.TotalPayable = quote.TotalPayable
	plan.TotalInterest = quote.TotalInterest
	plan.RemainingInstallments = req.Tenure

	plan.Entries = make([]models.RepaymentEntry, 0, len(quote.Schedule))
	for _, line := range quote.Schedule {
		plan.Entries = append(plan.Entries, models.RepaymentEntry{
			InstallmentNo:      line.InstallmentNo,
			DueDate:            line.DueDate,
			EMIAmount:          line.EMI,
			PrincipalAmount:    line.Principal,
			InterestAmount:     line.Interest,
			Balance:            line.Balance,
			Status:             line.Status,
			ActualPaidAmount:   decimal.Zero,
			MiscAdjustedAmount: decimal.Zero,
		})
	}
	plan.NextDueDate = initialNextDueDate(plan.Entries)
	return plan, nil
}

// Cancel moves an active plan to cancelled. Settled entries, ledger history
// and the reserved inventory unit are left untouched.
func (s *PlanService) Cancel(ctx context.Context, planID uint) (*models.InstallmentPlan, error) {
	opID := uuid.New()
	var plan *models.InstallmentPlan
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		plan, err = lockPlan(ctx, tx, planID)
		if err != nil {
			return err
		}

		if err := statemachine.NewPlanFSM(plan).Cancel(ctx); err != nil {
			return &ServiceError{Kind: KindConflict, Message: ErrPlanNotActive.Message, Err: err}
		}
		now := s.clock()
		plan.CancelledAt = &now
		if err := tx.Plan.UpdateAggregates(ctx, plan); err != nil {
			return fmt.Errorf("failed to cancel plan: %w", err)
		}

		return s.auditSvc.Record(ctx, tx.Audit, models.AuditCancel, models.EntityPlan, plan.ID, opID, map[string]any{
			"paid_installments": plan.PaidInstallments,
			"tenure":            plan.Tenure,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PlanCancelled()
	s.notificationSvc.Dispatch(events.New(ctx, events.PlanCancelled, plan.CustomerID, plan.ID, map[string]any{
		"paid_installments": plan.PaidInstallments,
	}))
	return plan, nil
}

// lockPlan takes the customer lock, then the plan lock, in that order
func lockPlan(ctx context.Context, tx *repository.Repositories, planID uint) (*models.InstallmentPlan, error) {
	plan, err := tx.Plan.FindByID(ctx, planID)
	if err != nil {
		return nil, lookupErr(err, ErrPlanNotFound, "plan")
	}
	if _, err := tx.Party.LockByID(ctx, plan.CustomerID); err != nil {
		return nil, lookupErr(err, ErrCustomerNotFound, "customer")
	}
	plan, err = tx.Plan.LockByID(ctx, planID)
	if err != nil {
		return nil, lookupErr(err, ErrPlanNotFound, "plan")
	}
	return plan, nil
}

// Get returns a plan with its schedule and guarantors
func (s *PlanService) Get(ctx context.Context, planID uint) (*models.InstallmentPlan, error) {
	plan, err := s.repos.Plan.FindByIDWithSchedule(ctx, planID)
	if err != nil {
		return nil, lookupErr(err, ErrPlanNotFound, "plan")
	}
	return plan, nil
}

func (s *PlanService) List(ctx context.Context, query *repository.PlanQuery) ([]models.InstallmentPlan, int64, error) {
	if query == nil {
		query = &repository.PlanQuery{}
	}
	if query.ListQuery == nil {
		query.ListQuery = repository.NewListQuery()
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, 0, invalid("unknown plan status %q", query.Status)
	}
	return s.repos.Plan.List(ctx, query)
}

// ListDefaulted classifies as of asOf, or today when asOf is zero
func (s *PlanService) ListDefaulted(ctx context.Context, asOf models.Date) ([]models.InstallmentPlan, error) {
	if asOf.IsZero() {
		asOf = s.clock.Today()
	}
	plans, err := s.repos.Plan.FindDefaulted(ctx, asOf)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to list defaulted plans: %w", err)
	}
	return plans, nil
}

// Today exposes the service clock to transports that render classifications
func (s *PlanService) Today() models.Date {
	return s.clock.Today()
}
