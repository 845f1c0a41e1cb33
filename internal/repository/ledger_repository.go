package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-installments/internal/models"

	"gorm.io/gorm"
)

// LedgerRepository defines the interface for the customer credit ledger.
// Entries are append-only: there is no update or delete.
type LedgerRepository interface {
	Create(ctx context.Context, entry *models.MiscLedgerEntry) error
	Balance(ctx context.Context, customerID uint) (decimal.Decimal, error)
	ListByCustomer(ctx context.Context, customerID uint, query *ListQuery) ([]models.MiscLedgerEntry, int64, error)
}

// ledgerRepository handles database operations for customer ledger entries
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *models.MiscLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Balance = sum(credit) - sum(debit) for the customer
func (r *ledgerRepository) Balance(ctx context.Context, customerID uint) (decimal.Decimal, error) {
	var result struct {
		Balance decimal.NullDecimal
	}

	err := r.db.WithContext(ctx).
		Model(&models.MiscLedgerEntry{}).
		Select("SUM(CASE WHEN entry_type = ? THEN amount ELSE -amount END) AS balance", models.LedgerCredit).
		Where("customer_id = ?", customerID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Balance.Valid {
		return decimal.Zero, nil
	}
	return models.Round2(result.Balance.Decimal), nil
}

func (r *ledgerRepository) ListByCustomer(ctx context.Context, customerID uint, query *ListQuery) ([]models.MiscLedgerEntry, int64, error) {
	var entries []models.MiscLedgerEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&models.MiscLedgerEntry{}).Where("customer_id = ?", customerID)
	if t := query.Filters["entry_type"]; t != "" {
		db = db.Where("entry_type = ?", t)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.paginate(db, "id ASC", "created_at", "amount").Find(&entries).Error
	return entries, total, err
}
