package repository

import (
	"context"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// AuditRepository persists audit rows
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if v := query.Filters["entity"]; v != "" {
		db = db.Where("entity = ?", v)
	}
	if v := query.Filters["actor_id"]; v != "" {
		db = db.Where("actor_id = ?", v)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.paginate(db, "created_at DESC", "created_at").Find(&logs).Error
	return logs, total, err
}
