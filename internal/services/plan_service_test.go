package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-installments/internal/actor"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/testutil"
)

func createRequest(customerID, productID uint) CreatePlanRequest {
	return CreatePlanRequest{
		CustomerID: customerID,
		ProductID:  productID,
		AnnualRate: decimal.Zero,
		Tenure:     12,
		StartDate:  models.NewDate(2026, time.January, 20),
	}
}

func TestPlanService_CreateReservesUnitAndPersistsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "120000", 2)

	plan, err := f.svc.Plan.Create(ctx, createRequest(customer.ID, product.ID))
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusActive, plan.Status)
	assert.True(t, plan.EMI.Equal(testutil.Dec("10000")))
	assert.True(t, plan.TotalPayable.Equal(testutil.Dec("120000")))
	assert.True(t, plan.TotalInterest.IsZero())
	assert.Equal(t, 12, plan.RemainingInstallments)

	// Installment 1 (2026-02-20) is overdue as of 2026-03-15; installment 2 is due this month.
	require.NotNil(t, plan.NextDueDate)
	assert.Equal(t, "2026-03-20", plan.NextDueDate.String())

	loaded, err := f.svc.Plan.Get(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 12)
	assert.Equal(t, models.EntryStatusOverdue, loaded.Entries[0].Status)
	assert.Equal(t, models.EntryStatusDue, loaded.Entries[1].Status)
	assert.Equal(t, models.EntryStatusUpcoming, loaded.Entries[2].Status)
	sum := decimal.Zero
	for _, e := range loaded.Entries {
		sum = sum.Add(e.EMIAmount)
	}
	assert.True(t, sum.Equal(plan.EMI.Mul(decimal.NewFromInt(12))))

	var stock models.Product
	require.NoError(t, f.db.First(&stock, product.ID).Error)
	assert.Equal(t, 1, stock.Quantity)

	assert.Equal(t, []events.Type{events.PlanCreated}, f.pub.types())
	assert.EqualValues(t, 1, f.count(t, &models.AuditLog{}))
}

func TestPlanService_CreateUsesFinanceAmountOverride(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "150000", 1)

	req := createRequest(customer.ID, product.ID)
	override := testutil.Dec("130000")
	req.FinanceAmount = &override
	req.DownPayment = testutil.Dec("10000")

	plan, err := f.svc.Plan.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, plan.ProductPrice.Equal(testutil.Dec("150000")))
	assert.True(t, plan.FinancedPrincipal.Equal(testutil.Dec("120000")))
	assert.True(t, plan.EMI.Equal(testutil.Dec("10000")))
}

func TestPlanService_CreateWithoutStockLeavesNoRows(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "1000", 0)

	plan, err := f.svc.Plan.Create(ctx, createRequest(customer.ID, product.ID))
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	assert.Equal(t, KindConflict, KindOf(err))

	assert.Zero(t, f.count(t, &models.InstallmentPlan{}))
	assert.Zero(t, f.count(t, &models.RepaymentEntry{}))
	assert.Zero(t, f.count(t, &models.AuditLog{}))
	assert.Empty(t, f.pub.types())
}

func TestPlanService_CreateRollsBackOnUnknownGuarantor(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "1000", 1)

	req := createRequest(customer.ID, product.ID)
	req.Guarantors = []GuarantorInput{{PartyID: 999, Relationship: "cousin"}}

	_, err := f.svc.Plan.Create(ctx, req)
	assert.True(t, errors.Is(err, ErrGuarantorNotFound))
	assert.Equal(t, KindNotFound, KindOf(err))

	var stock models.Product
	require.NoError(t, f.db.First(&stock, product.ID).Error)
	assert.Equal(t, 1, stock.Quantity)
	assert.Zero(t, f.count(t, &models.InstallmentPlan{}))
}

func TestPlanService_CreateAttachesGuarantors(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	guarantor := testutil.SeedGuarantor(t, f.db, "Luis")
	product := testutil.SeedProduct(t, f.db, "1000", 1)

	req := createRequest(customer.ID, product.ID)
	req.Guarantors = []GuarantorInput{{PartyID: guarantor.ID, Relationship: "brother"}}
	plan, err := f.svc.Plan.Create(ctx, req)
	require.NoError(t, err)

	loaded, err := f.svc.Plan.Get(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Guarantors, 1)
	assert.Equal(t, "Luis", loaded.Guarantors[0].Party.Name)
	assert.Equal(t, "brother", loaded.Guarantors[0].Relationship)
}

func TestPlanService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	guarantor := testutil.SeedGuarantor(t, f.db, "Luis")
	product := testutil.SeedProduct(t, f.db, "1000", 5)

	tests := []struct {
		name   string
		mutate func(r *CreatePlanRequest)
		target error
	}{
		{"zero tenure", func(r *CreatePlanRequest) { r.Tenure = 0 }, ErrValidation},
		{"negative rate", func(r *CreatePlanRequest) { r.AnnualRate = testutil.Dec("-1") }, ErrValidation},
		{"negative down payment", func(r *CreatePlanRequest) { r.DownPayment = testutil.Dec("-5") }, ErrValidation},
		{"down payment covers price", func(r *CreatePlanRequest) { r.DownPayment = testutil.Dec("1000") }, ErrValidation},
		{"missing start date", func(r *CreatePlanRequest) { r.StartDate = models.Date{} }, ErrValidation},
		{"guarantor as customer", func(r *CreatePlanRequest) { r.CustomerID = guarantor.ID }, ErrCustomerNotFound},
		{"unknown customer", func(r *CreatePlanRequest) { r.CustomerID = 999 }, ErrCustomerNotFound},
		{"unknown product", func(r *CreatePlanRequest) { r.ProductID = 999 }, ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createRequest(customer.ID, product.ID)
			tt.mutate(&req)
			_, err := f.svc.Plan.Create(ctx, req)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	var stock models.Product
	require.NoError(t, f.db.First(&stock, product.ID).Error)
	assert.Equal(t, 5, stock.Quantity)
}

func TestPlanService_PreviewFallsBackToProductPrice(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	product := testutil.SeedProduct(t, f.db, "100000", 1)

	quote, err := f.svc.Plan.Preview(ctx, PreviewRequest{
		ProductID:  product.ID,
		AnnualRate: testutil.Dec("12"),
		Tenure:     12,
		StartDate:  models.NewDate(2026, time.April, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "8884.88", quote.EMI.StringFixed(2))
	assert.Len(t, quote.Schedule, 12)
	assert.Zero(t, f.count(t, &models.InstallmentPlan{}))

	_, err = f.svc.Plan.Preview(ctx, PreviewRequest{Tenure: 12, StartDate: models.NewDate(2026, time.April, 1)})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPlanService_CancelIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := actor.WithActor(testutil.Context(t), actor.User(7, "ops@example.com"))
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "300", 1)
	plan := testutil.SeedPlan(t, f.db, customer.ID, product.ID, f.today, "100", "100", "100")

	_, err := f.svc.Payment.PayInstallment(ctx, PaymentRequest{PlanID: plan.ID, InstallmentNo: 1, Amount: testutil.Dec("100")})
	require.NoError(t, err)

	cancelled, err := f.svc.Plan.Cancel(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// history survives
	assert.Equal(t, models.EntryStatusPaid, f.entry(t, plan.ID, 1).Status)
	assert.Equal(t, models.PlanStatusCancelled, f.plan(t, plan.ID).Status)

	_, err = f.svc.Plan.Cancel(ctx, plan.ID)
	assert.True(t, errors.Is(err, ErrPlanNotActive))

	_, err = f.svc.Payment.PayInstallment(ctx, PaymentRequest{PlanID: plan.ID, InstallmentNo: 2, Amount: testutil.Dec("100")})
	assert.True(t, errors.Is(err, ErrPlanNotActive))
	assert.True(t, f.entry(t, plan.ID, 2).ActualPaidAmount.IsZero())

	var audits []models.AuditLog
	require.NoError(t, f.db.Where("action = ?", models.AuditCancel).Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, "user", audits[0].ActorKind)
	assert.Equal(t, "7", audits[0].ActorID)

	_, err = f.svc.Plan.Cancel(ctx, 999)
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestPlanService_ListDefaulted(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "300", 2)
	late := testutil.SeedPlan(t, f.db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "100", "100")
	testutil.SeedPlan(t, f.db, customer.ID, product.ID, f.today, "100", "100")

	plans, err := f.svc.Plan.ListDefaulted(ctx, models.Date{})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, late.ID, plans[0].ID)

	plans, err = f.svc.Plan.ListDefaulted(ctx, models.NewDate(2026, time.January, 15))
	require.NoError(t, err)
	assert.Empty(t, plans)

	list, total, err := f.svc.Plan.List(ctx, &repository.PlanQuery{ListQuery: repository.NewListQuery(), CustomerID: customer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	_, _, err = f.svc.Plan.List(ctx, &repository.PlanQuery{ListQuery: repository.NewListQuery(), Status: "defaulted"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPlanService_ListDefaultsPagination(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	customer := testutil.SeedCustomer(t, f.db, "Ana")
	product := testutil.SeedProduct(t, f.db, "300", 2)
	testutil.SeedPlan(t, f.db, customer.ID, product.ID, f.today, "100", "100")

	list, total, err := f.svc.Plan.List(ctx, &repository.PlanQuery{CustomerID: customer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	_, total, err = f.svc.Plan.List(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
