package database

import (
	"fmt"

	"github.com/sjperalta/fintera-installments/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the engine owns
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Party{},
		&models.Product{},
		&models.InstallmentPlan{},
		&models.RepaymentEntry{},
		&models.PlanGuarantor{},
		&models.MiscLedgerEntry{},
		&models.PaymentReceipt{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
