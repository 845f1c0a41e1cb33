package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/testutil"
)

func TestProductRepository_ReserveUnitStopsAtZero(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repo := NewProductRepository(db)
	product := testutil.SeedProduct(t, db, "1500", 1)

	ok, err := repo.ReserveUnit(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveUnit(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Quantity)
}

func TestPlanRepository_CreateWithScheduleAndGuarantors(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repos := NewRepositories(db)

	customer := testutil.SeedCustomer(t, db, "Ana")
	guarantor := testutil.SeedGuarantor(t, db, "Luis")
	product := testutil.SeedProduct(t, db, "1000", 3)
	start := models.NewDate(2026, time.January, 31)

	plan := &models.InstallmentPlan{
		CustomerID: customer.ID, ProductID: product.ID, ProductPrice: testutil.Dec("1000"),
		FinancedPrincipal: testutil.Dec("1000"), Tenure: 2, EMI: testutil.Dec("500"),
		TotalPayable: testutil.Dec("1000"), RemainingInstallments: 2,
		Status: models.PlanStatusActive, StartDate: start,
		Entries: []models.RepaymentEntry{
			{InstallmentNo: 2, DueDate: start.AddMonths(2), EMIAmount: testutil.Dec("500"), Status: models.EntryStatusUpcoming},
			{InstallmentNo: 1, DueDate: start.AddMonths(1), EMIAmount: testutil.Dec("500"), Status: models.EntryStatusUpcoming},
		},
		Guarantors: []models.PlanGuarantor{{PartyID: guarantor.ID, Relationship: "brother"}},
	}
	require.NoError(t, repos.Plan.Create(ctx, plan))

	loaded, err := repos.Plan.FindByIDWithSchedule(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, 1, loaded.Entries[0].InstallmentNo)
	assert.Equal(t, "2026-02-28", loaded.Entries[0].DueDate.String())
	assert.True(t, loaded.EMI.Equal(testutil.Dec("500")))
	require.Len(t, loaded.Guarantors, 1)
	assert.Equal(t, "Luis", loaded.Guarantors[0].Party.Name)
	assert.Equal(t, start, loaded.StartDate)
}

func TestEntryRepository_UniquePlanAndNumber(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	customer := testutil.SeedCustomer(t, db, "Ana")
	product := testutil.SeedProduct(t, db, "1000", 1)
	plan := testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "500", "500")

	dup := &models.RepaymentEntry{PlanID: plan.ID, InstallmentNo: 1, DueDate: models.NewDate(2026, time.May, 1), Status: models.EntryStatusUpcoming}
	assert.Error(t, db.Create(dup).Error)
}

func TestEntryRepository_LockUnpaidAndUpdateSettlement(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repo := NewEntryRepository(db)
	customer := testutil.SeedCustomer(t, db, "Ana")
	product := testutil.SeedProduct(t, db, "1000", 1)
	plan := testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "400", "300", "300")

	first, err := repo.LockByPlanAndNumber(ctx, plan.ID, 1)
	require.NoError(t, err)
	first.Status = models.EntryStatusPaid
	first.ActualPaidAmount = testutil.Dec("400")
	first.PaidDate = models.NewDate(2026, time.February, 3).Ptr()
	first.EMIAmount = testutil.Dec("1") // not a settlement column
	require.NoError(t, repo.UpdateSettlement(ctx, first))

	unpaid, err := repo.LockUnpaidByPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, unpaid, 2)
	assert.Equal(t, 2, unpaid[0].InstallmentNo)
	assert.Equal(t, 3, unpaid[1].InstallmentNo)

	all, err := repo.FindByPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, all[0].EMIAmount.Equal(testutil.Dec("400")))
	assert.True(t, all[0].ActualPaidAmount.Equal(testutil.Dec("400")))
	assert.Equal(t, "2026-02-03", all[0].PaidDate.String())

	_, err = repo.LockByPlanAndNumber(ctx, plan.ID, 9)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestLedgerRepository_Balance(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repo := NewLedgerRepository(db)
	customer := testutil.SeedCustomer(t, db, "Ana")
	other := testutil.SeedCustomer(t, db, "Beto")

	balance, err := repo.Balance(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	entries := []models.MiscLedgerEntry{
		{CustomerID: customer.ID, EntryType: models.LedgerCredit, Amount: testutil.Dec("100.10"), Description: "overpayment"},
		{CustomerID: customer.ID, EntryType: models.LedgerCredit, Amount: testutil.Dec("0.20"), Description: "deposit"},
		{CustomerID: customer.ID, EntryType: models.LedgerDebit, Amount: testutil.Dec("40.05"), Description: "applied"},
		{CustomerID: other.ID, EntryType: models.LedgerCredit, Amount: testutil.Dec("999"), Description: "other"},
	}
	for i := range entries {
		entries[i].OperationID = uuid.New()
		entries[i].ActorKind, entries[i].ActorID = "system", "system"
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	balance, err = repo.Balance(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(testutil.Dec("60.25")), "got %s", balance)

	query := NewListQuery()
	query.Filters["entry_type"] = string(models.LedgerCredit)
	list, total, err := repo.ListByCustomer(ctx, customer.ID, query)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)
}

func TestReceiptRepository_IdempotencyKeyIsUnique(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repo := NewReceiptRepository(db)
	key := "pay-123"

	newReceipt := func() *models.PaymentReceipt {
		return &models.PaymentReceipt{
			OperationID: uuid.New(), IdempotencyKey: &key, PlanID: 1, InstallmentNo: 1,
			Amount: testutil.Dec("10"), Status: models.EntryStatusPartial, PlanStatus: models.PlanStatusActive,
			ActorKind: "system", ActorID: "system",
		}
	}
	require.NoError(t, repo.Create(ctx, newReceipt()))
	assert.Error(t, repo.Create(ctx, newReceipt()))

	found, err := repo.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPartial, found.Status)
}

func TestPlanRepository_FindDefaultedAndStats(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repos := NewRepositories(db)
	customer := testutil.SeedCustomer(t, db, "Ana")
	product := testutil.SeedProduct(t, db, "1000", 5)

	late := testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "500", "500")
	testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.June, 1), "500", "500")
	cancelled := testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "250")
	cancelled.Status = models.PlanStatusCancelled
	require.NoError(t, repos.Plan.UpdateAggregates(ctx, cancelled))

	asOf := models.NewDate(2026, time.March, 10)
	defaulted, err := repos.Plan.FindDefaulted(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, defaulted, 1)
	assert.Equal(t, late.ID, defaulted[0].ID)
	assert.Equal(t, models.PlanClassificationDefaulted, defaulted[0].Classification(asOf))

	stats, err := repos.Stats.Portfolio(ctx, asOf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Active)
	assert.EqualValues(t, 1, stats.Cancelled)
	assert.EqualValues(t, 1, stats.Defaulted)
	assert.True(t, stats.OutstandingAmount.Equal(testutil.Dec("2000")), "got %s", stats.OutstandingAmount)
	assert.True(t, stats.OverdueAmount.Equal(testutil.Dec("1000")), "got %s", stats.OverdueAmount)
}

func TestPlanRepository_ListFiltersAndPaginates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repo := NewPlanRepository(db)
	ana := testutil.SeedCustomer(t, db, "Ana")
	beto := testutil.SeedCustomer(t, db, "Beto")
	product := testutil.SeedProduct(t, db, "1000", 5)
	start := models.NewDate(2026, time.January, 1)
	for i := 0; i < 3; i++ {
		testutil.SeedPlan(t, db, ana.ID, product.ID, start, "100")
	}
	testutil.SeedPlan(t, db, beto.ID, product.ID, start, "100")

	query := &PlanQuery{ListQuery: NewListQuery(), CustomerID: ana.ID}
	query.PerPage = 2
	plans, total, err := repo.List(ctx, query)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, plans, 2)

	open, err := repo.FindOpenByCustomer(ctx, beto.ID)
	require.NoError(t, err)
	assert.Equal(t, beto.ID, open.CustomerID)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := testutil.Context(t)
	repos := NewRepositories(db)
	product := testutil.SeedProduct(t, db, "1000", 1)

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		ok, err := tx.Product.ReserveUnit(ctx, product.ID)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := repos.Product.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Quantity)
}
