package repository

import (
	"context"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// ReceiptRepository stores PayInstallment outcomes for idempotent replay
type ReceiptRepository interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentReceipt, error)
	Create(ctx context.Context, receipt *models.PaymentReceipt) error
}

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentReceipt, error) {
	var receipt models.PaymentReceipt
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) Create(ctx context.Context, receipt *models.PaymentReceipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}
