package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-installments/internal/amortization"
	"github.com/sjperalta/fintera-installments/internal/database"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/services"
)

var fixedClock services.Clock = func() time.Time {
	return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(fixedClock)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func sqliteURL(t *testing.T) string {
	return "sqlite:" + filepath.Join(t.TempDir(), "cli.db")
}

func TestPreview_JSON(t *testing.T) {
	out, err := run(t, "preview", "--principal", "100000", "--rate", "12", "--tenure", "12", "--start", "2026-04-01", "--json")
	require.NoError(t, err)

	var quote amortization.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &quote))
	assert.Equal(t, "8884.88", quote.EMI.StringFixed(2))
	assert.Equal(t, "106618.56", quote.TotalPayable.StringFixed(2))
	require.Len(t, quote.Schedule, 12)
	assert.Equal(t, "2026-05-01", quote.Schedule[0].DueDate.String())
	assert.Equal(t, "0.00", quote.Schedule[11].Balance.StringFixed(2))
}

func TestPreview_Table(t *testing.T) {
	out, err := run(t, "preview", "--principal", "1200", "--down-payment", "200", "--tenure", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Financed principal: 1000.00")
	assert.Contains(t, out, "EMI:                250.00")
	assert.Contains(t, out, "BALANCE")
}

func TestPreview_Rejects(t *testing.T) {
	_, err := run(t, "preview", "--principal", "1000", "--tenure", "0")
	assert.ErrorIs(t, err, amortization.ErrNonPositiveTenure)

	_, err = run(t, "preview", "--principal", "abc", "--tenure", "3")
	assert.EqualError(t, err, `invalid --principal "abc"`)

	_, err = run(t, "preview", "--principal", "500", "--down-payment", "500", "--tenure", "3")
	assert.ErrorIs(t, err, amortization.ErrNonPositivePrincipal)
}

func TestMigrateClassifyReconcile(t *testing.T) {
	url := sqliteURL(t)

	out, err := run(t, "migrate", "--database-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	out, err = run(t, "classify", "--database-url", url, "--as-of", "2026-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No defaulted plans as of 2026-06-01")

	_, err = run(t, "reconcile", "42", "--database-url", url)
	assert.ErrorIs(t, err, services.ErrCustomerNotFound)

	db, err := database.Connect(url, database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	customer := models.Party{Kind: models.PartyKindCustomer, Name: "Ana"}
	require.NoError(t, db.Create(&customer).Error)
	require.NoError(t, db.Create(&models.MiscLedgerEntry{
		CustomerID:  customer.ID,
		EntryType:   models.LedgerCredit,
		Amount:      decimal.RequireFromString("50"),
		Description: "Manual credit deposit",
		OperationID: uuid.New(),
		ActorKind:   "system",
		ActorID:     "system",
	}).Error)
	sqlDB, _ := db.DB()
	require.NoError(t, sqlDB.Close())

	out, err = run(t, "reconcile", strconv.FormatUint(uint64(customer.ID), 10), "--database-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing applied; balance 50.00")
}

func TestReconcile_InvalidID(t *testing.T) {
	_, err := run(t, "reconcile", "abc", "--database-url", "sqlite:unused.db")
	assert.EqualError(t, err, `invalid customer id "abc"`)
}
