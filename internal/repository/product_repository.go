package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// ProductRepository reads catalog products and reserves stock
type ProductRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	// ReserveUnit decrements quantity by one only while quantity >= 1.
	// It reports false, with no error, when no unit was left.
	ReserveUnit(ctx context.Context, id uint) (bool, error)
	Create(ctx context.Context, product *models.Product) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ReserveUnit(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, 1).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", 1),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}
