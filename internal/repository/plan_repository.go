package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// PlanRepository defines the interface for installment plan data access
type PlanRepository interface {
	// Create inserts the plan together with its Entries and Guarantors
	Create(ctx context.Context, plan *models.InstallmentPlan) error
	FindByID(ctx context.Context, id uint) (*models.InstallmentPlan, error)
	FindByIDWithSchedule(ctx context.Context, id uint) (*models.InstallmentPlan, error)
	LockByID(ctx context.Context, id uint) (*models.InstallmentPlan, error)
	// FindOpenByCustomer returns the customer's oldest active plan
	FindOpenByCustomer(ctx context.Context, customerID uint) (*models.InstallmentPlan, error)
	UpdateAggregates(ctx context.Context, plan *models.InstallmentPlan) error
	List(ctx context.Context, query *PlanQuery) ([]models.InstallmentPlan, int64, error)
	// FindDefaulted returns active plans holding an unpaid entry due before asOf
	FindDefaulted(ctx context.Context, asOf models.Date) ([]models.InstallmentPlan, error)
}

// PlanQuery extends ListQuery with plan-specific filters
type PlanQuery struct {
	*ListQuery
	CustomerID uint
	ProductID  uint
	Status     models.PlanStatus
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Create(ctx context.Context, plan *models.InstallmentPlan) error {
	return r.db.WithContext(ctx).Omit("Customer", "Product").Create(plan).Error
}

func (r *planRepository) FindByID(ctx context.Context, id uint) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) FindByIDWithSchedule(ctx context.Context, id uint) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_no ASC")
		}).
		Preload("Guarantors.Party").
		First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) LockByID(ctx context.Context, id uint) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	if err := forUpdate(r.db.WithContext(ctx)).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) FindOpenByCustomer(ctx context.Context, customerID uint) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	err := forUpdate(r.db.WithContext(ctx)).
		Where("customer_id = ? AND status = ?", customerID, models.PlanStatusActive).
		Order("id ASC").
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) UpdateAggregates(ctx context.Context, plan *models.InstallmentPlan) error {
	plan.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Model(plan).
		Select("paid_installments", "remaining_installments", "next_due_date", "status",
			"cancelled_at", "completed_at", "updated_at").
		Updates(plan).Error
}

func (r *planRepository) List(ctx context.Context, query *PlanQuery) ([]models.InstallmentPlan, int64, error) {
	var plans []models.InstallmentPlan
	var total int64

	db := r.db.WithContext(ctx).Model(&models.InstallmentPlan{})

	if query.CustomerID > 0 {
		db = db.Where("customer_id = ?", query.CustomerID)
	}
	if query.ProductID > 0 {
		db = db.Where("product_id = ?", query.ProductID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.paginate(db, "created_at DESC", "created_at", "next_due_date", "financed_principal").
		Find(&plans).Error
	return plans, total, err
}

func (r *planRepository) FindDefaulted(ctx context.Context, asOf models.Date) ([]models.InstallmentPlan, error) {
	var plans []models.InstallmentPlan
	overdue := r.db.Model(&models.RepaymentEntry{}).
		Select("plan_id").
		Where("status <> ? AND due_date < ?", models.EntryStatusPaid, asOf)

	err := r.db.WithContext(ctx).
		Where("status = ? AND id IN (?)", models.PlanStatusActive, overdue).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_no ASC")
		}).
		Order("id ASC").
		Find(&plans).Error
	return plans, err
}
