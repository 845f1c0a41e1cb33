package repository

import (
	"context"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// PartyRepository reads the local projection of the customer registry
type PartyRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Party, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Party, error)
	// LockByID takes the customer-level row lock that serializes payments
	// and reconciliation sweeps over the same credit balance.
	LockByID(ctx context.Context, id uint) (*models.Party, error)
	Create(ctx context.Context, party *models.Party) error
}

type partyRepository struct {
	db *gorm.DB
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *gorm.DB) PartyRepository {
	return &partyRepository{db: db}
}

func (r *partyRepository) FindByID(ctx context.Context, id uint) (*models.Party, error) {
	var party models.Party
	if err := r.db.WithContext(ctx).First(&party, id).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *partyRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Party, error) {
	var parties []models.Party
	if len(ids) == 0 {
		return parties, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&parties).Error
	return parties, err
}

func (r *partyRepository) LockByID(ctx context.Context, id uint) (*models.Party, error) {
	var party models.Party
	if err := forUpdate(r.db.WithContext(ctx)).First(&party, id).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *partyRepository) Create(ctx context.Context, party *models.Party) error {
	return r.db.WithContext(ctx).Create(party).Error
}
