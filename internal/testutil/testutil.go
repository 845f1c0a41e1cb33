// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-installments/internal/database"
	"github.com/sjperalta/fintera-installments/internal/models"
)

// NewSQLiteDB opens an isolated in-memory database with the full schema
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect("sqlite:file:"+uuid.NewString()+"?mode=memory&cache=shared",
		database.Options{LogLevel: logger.Silent})
	require.NoError(t, err, "Failed to open sqlite")
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// MockDB wraps a GORM database with sqlmock for testing.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a postgres-dialect GORM handle backed by sqlmock
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open GORM connection")

	t.Cleanup(func() { _ = mockDB.Close() })
	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

// ExpectationsWereMet verifies that all expectations were met.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// Dec parses a decimal literal, failing loudly on typos
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SeedCustomer inserts a customer party
func SeedCustomer(t *testing.T, db *gorm.DB, name string) *models.Party {
	t.Helper()
	p := &models.Party{Kind: models.PartyKindCustomer, Name: name}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedGuarantor inserts a guarantor party
func SeedGuarantor(t *testing.T, db *gorm.DB, name string) *models.Party {
	t.Helper()
	p := &models.Party{Kind: models.PartyKindGuarantor, Name: name}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedProduct inserts a product with the given price and stock
func SeedProduct(t *testing.T, db *gorm.DB, price string, quantity int) *models.Product {
	t.Helper()
	p := &models.Product{SKU: uuid.NewString(), Name: "Refrigerator", Price: Dec(price), Quantity: quantity}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedPlan inserts an active plan with the given EMIs, one month apart from start
func SeedPlan(t *testing.T, db *gorm.DB, customerID, productID uint, start models.Date, emis ...string) *models.InstallmentPlan {
	t.Helper()
	plan := &models.InstallmentPlan{
		CustomerID:            customerID,
		ProductID:             productID,
		ProductPrice:          Dec("1000"),
		DownPayment:           decimal.Zero,
		FinancedPrincipal:     Dec("1000"),
		AnnualRate:            decimal.Zero,
		Tenure:                len(emis),
		EMI:                   Dec(emis[0]),
		TotalPayable:          Dec("1000"),
		TotalInterest:         decimal.Zero,
		RemainingInstallments: len(emis),
		NextDueDate:           start.AddMonths(1).Ptr(),
		Status:                models.PlanStatusActive,
		StartDate:             start,
	}
	for i, emi := range emis {
		plan.Entries = append(plan.Entries, models.RepaymentEntry{
			InstallmentNo:      i + 1,
			DueDate:            start.AddMonths(i + 1),
			EMIAmount:          Dec(emi),
			PrincipalAmount:    Dec(emi),
			InterestAmount:     decimal.Zero,
			Balance:            decimal.Zero,
			Status:             models.EntryStatusUpcoming,
			ActualPaidAmount:   decimal.Zero,
			MiscAdjustedAmount: decimal.Zero,
		})
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

// Context returns a context that is cancelled when the test ends
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
