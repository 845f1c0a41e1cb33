package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// EntryRepository defines data access for repayment schedule entries
type EntryRepository interface {
	FindByPlan(ctx context.Context, planID uint) ([]models.RepaymentEntry, error)
	LockByPlanAndNumber(ctx context.Context, planID uint, installmentNo int) (*models.RepaymentEntry, error)
	// LockUnpaidByPlan returns unpaid entries in ascending installment order
	LockUnpaidByPlan(ctx context.Context, planID uint) ([]models.RepaymentEntry, error)
	UpdateSettlement(ctx context.Context, entry *models.RepaymentEntry) error
}

type entryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) FindByPlan(ctx context.Context, planID uint) ([]models.RepaymentEntry, error) {
	var entries []models.RepaymentEntry
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("installment_no ASC").
		Find(&entries).Error
	return entries, err
}

func (r *entryRepository) LockByPlanAndNumber(ctx context.Context, planID uint, installmentNo int) (*models.RepaymentEntry, error) {
	var entry models.RepaymentEntry
	err := forUpdate(r.db.WithContext(ctx)).
		Where("plan_id = ? AND installment_no = ?", planID, installmentNo).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) LockUnpaidByPlan(ctx context.Context, planID uint) ([]models.RepaymentEntry, error) {
	var entries []models.RepaymentEntry
	err := forUpdate(r.db.WithContext(ctx)).
		Where("plan_id = ? AND status <> ?", planID, models.EntryStatusPaid).
		Order("installment_no ASC").
		Find(&entries).Error
	return entries, err
}

// UpdateSettlement writes only the mutable settlement columns; the
// generated amortization figures are never rewritten.
func (r *entryRepository) UpdateSettlement(ctx context.Context, entry *models.RepaymentEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Model(entry).
		Select("status", "paid_date", "actual_paid_amount", "misc_adjusted_amount", "updated_at").
		Updates(entry).Error
}
