package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog projection the engine reserves stock from
type Product struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	SKU       string          `gorm:"size:64;uniqueIndex" json:"sku"`
	Name      string          `gorm:"not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	Quantity  int             `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// IsAvailable returns true if at least one unit can be financed
func (p *Product) IsAvailable() bool {
	return p.Quantity >= 1
}
