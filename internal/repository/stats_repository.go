package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// PortfolioStats summarizes the plan book as of a date
type PortfolioStats struct {
	Active            int64           `json:"active"`
	Completed         int64           `json:"completed"`
	Cancelled         int64           `json:"cancelled"`
	Defaulted         int64           `json:"defaulted"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
}

// StatsRepository computes read-only aggregates for dashboards and gauges
type StatsRepository interface {
	Portfolio(ctx context.Context, asOf models.Date) (*PortfolioStats, error)
	Ping(ctx context.Context) error
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *statsRepository) Portfolio(ctx context.Context, asOf models.Date) (*PortfolioStats, error) {
	stats := &PortfolioStats{}
	db := r.db.WithContext(ctx)

	var counts []struct {
		Status models.PlanStatus
		Total  int64
	}
	if err := db.Model(&models.InstallmentPlan{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		switch c.Status {
		case models.PlanStatusActive:
			stats.Active = c.Total
		case models.PlanStatusCompleted:
			stats.Completed = c.Total
		case models.PlanStatusCancelled:
			stats.Cancelled = c.Total
		}
	}

	if err := db.Model(&models.InstallmentPlan{}).
		Where("status = ? AND id IN (?)", models.PlanStatusActive,
			r.db.Model(&models.RepaymentEntry{}).Select("plan_id").
				Where("status <> ? AND due_date < ?", models.EntryStatusPaid, asOf)).
		Count(&stats.Defaulted).Error; err != nil {
		return nil, err
	}

	outstanding := "SUM(repayment_entries.emi_amount - repayment_entries.actual_paid_amount - repayment_entries.misc_adjusted_amount) AS amount"
	activeUnpaid := db.Model(&models.RepaymentEntry{}).
		Joins("JOIN installment_plans ON installment_plans.id = repayment_entries.plan_id").
		Where("installment_plans.status = ? AND repayment_entries.status <> ?", models.PlanStatusActive, models.EntryStatusPaid).
		Session(&gorm.Session{})

	var total, overdue struct{ Amount decimal.NullDecimal }
	if err := activeUnpaid.Select(outstanding).Scan(&total).Error; err != nil {
		return nil, err
	}
	if err := activeUnpaid.
		Where("repayment_entries.due_date < ?", asOf).
		Select(outstanding).Scan(&overdue).Error; err != nil {
		return nil, err
	}
	stats.OutstandingAmount = models.Round2(total.Amount.Decimal)
	stats.OverdueAmount = models.Round2(overdue.Amount.Decimal)
	return stats, nil
}
