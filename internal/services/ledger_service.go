package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/actor"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// LedgerService reads and deposits into customer credit wallets
type LedgerService struct {
	repos           *repository.Repositories
	auditSvc        *AuditService
	notificationSvc *NotificationService
	metrics         *metrics.Metrics
}

func NewLedgerService(repos *repository.Repositories, auditSvc *AuditService, notificationSvc *NotificationService, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		repos:           repos,
		auditSvc:        auditSvc,
		notificationSvc: notificationSvc,
		metrics:         m,
	}
}

// Balance returns credits minus debits for a customer
func (s *LedgerService) Balance(ctx context.Context, customerID uint) (decimal.Decimal, error) {
	if err := s.requireCustomer(ctx, s.repos, customerID); err != nil {
		return decimal.Zero, err
	}
	return s.repos.Ledger.Balance(ctx, customerID)
}

// Entries lists a customer's ledger movements
func (s *LedgerService) Entries(ctx context.Context, customerID uint, query *repository.ListQuery) ([]models.MiscLedgerEntry, int64, error) {
	if err := s.requireCustomer(ctx, s.repos, customerID); err != nil {
		return nil, 0, err
	}
	if query == nil {
		query = repository.NewListQuery()
	}
	if t := query.Filters["entry_type"]; t != "" {
		switch models.LedgerEntryType(t) {
		case models.LedgerCredit, models.LedgerDebit:
		default:
			return nil, 0, invalid("unknown entry_type %q", t)
		}
	}
	return s.repos.Ledger.ListByCustomer(ctx, customerID, query)
}

// RecordCredit deposits money into a customer's wallet outside any payment,
// for example a refund or a cash advance towards future installments.
func (s *LedgerService) RecordCredit(ctx context.Context, customerID uint, amount decimal.Decimal, description string) (*models.MiscLedgerEntry, error) {
	switch {
	case !amount.IsPositive():
		return nil, invalid("amount must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return nil, invalid("amount must have at most 2 decimal places")
	}
	if description == "" {
		description = "Manual credit deposit"
	}

	opID := uuid.New()
	a := actor.FromContext(ctx)
	entry := &models.MiscLedgerEntry{
		CustomerID:  customerID,
		EntryType:   models.LedgerCredit,
		Amount:      amount,
		Description: description,
		OperationID: opID,
		ActorKind:   string(a.Kind),
		ActorID:     a.ID,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		customer, err := tx.Party.LockByID(ctx, customerID)
		if err != nil {
			return lookupErr(err, ErrCustomerNotFound, "customer")
		}
		if !customer.IsCustomer() {
			return ErrCustomerNotFound
		}
		if err := tx.Ledger.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to record credit: %w", err)
		}
		return s.auditSvc.Record(ctx, tx.Audit, models.AuditCredit, models.EntityLedger, entry.ID, opID, map[string]any{
			"customer_id": customerID,
			"amount":      amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CreditDeposited(amount)
	logger.FromContext(ctx).Info("credit recorded", "customer_id", customerID, "amount", amount.StringFixed(2))
	s.notificationSvc.Dispatch(events.New(ctx, events.CreditRecorded, customerID, 0, map[string]any{
		"amount":      amount.StringFixed(2),
		"description": description,
	}))
	return entry, nil
}

func (s *LedgerService) requireCustomer(ctx context.Context, repos *repository.Repositories, customerID uint) error {
	customer, err := repos.Party.FindByID(ctx, customerID)
	if err != nil {
		return lookupErr(err, ErrCustomerNotFound, "customer")
	}
	if !customer.IsCustomer() {
		return ErrCustomerNotFound
	}
	return nil
}
