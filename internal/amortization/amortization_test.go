package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-installments/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPayment_ZeroRateSplitsEvenly(t *testing.T) {
	emi := Payment(d("120000"), decimal.Zero, 12)
	assert.True(t, emi.Equal(d("10000")), "got %s", emi)
}

func TestPayment_StandardFormula(t *testing.T) {
	emi := Payment(d("100000"), d("12"), 12)
	assert.True(t, emi.Round(2).Equal(d("8884.88")), "got %s", emi)

	// closed form computed independently with float math
	r := 0.01
	f := 1.0
	for i := 0; i < 12; i++ {
		f *= 1 + r
	}
	expected := 100000 * r * f / (f - 1)
	got, _ := emi.Float64()
	assert.InDelta(t, expected, got, 0.01)
}

func TestMonthlyRate(t *testing.T) {
	assert.True(t, MonthlyRate(d("12")).Equal(d("0.01")))
	assert.True(t, MonthlyRate(decimal.Zero).IsZero())
}

func TestDeriveStatus(t *testing.T) {
	asOf := models.NewDate(2026, time.March, 15)

	tests := []struct {
		name string
		due  models.Date
		want models.EntryStatus
	}{
		{"past month", models.NewDate(2026, time.February, 28), models.EntryStatusOverdue},
		{"earlier this month", models.NewDate(2026, time.March, 1), models.EntryStatusOverdue},
		{"today", asOf, models.EntryStatusDue},
		{"later this month", models.NewDate(2026, time.March, 31), models.EntryStatusDue},
		{"next month", models.NewDate(2026, time.April, 1), models.EntryStatusUpcoming},
		{"next year same month", models.NewDate(2027, time.March, 20), models.EntryStatusUpcoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.due, asOf))
		})
	}
}

func TestGenerateSchedule_SumInvariant(t *testing.T) {
	cases := []Terms{
		{Principal: d("100000"), AnnualRate: d("12"), Tenure: 12},
		{Principal: d("120000"), AnnualRate: decimal.Zero, Tenure: 12},
		{Principal: d("4999.99"), AnnualRate: d("18.5"), Tenure: 7},
		{Principal: d("250000"), AnnualRate: d("9.75"), Tenure: 360},
	}
	for _, terms := range cases {
		terms.StartDate = models.NewDate(2026, time.January, 10)
		lines := GenerateSchedule(terms, models.NewDate(2026, time.January, 10))
		require.Len(t, lines, terms.Tenure)

		sum := decimal.Zero
		for _, l := range lines {
			sum = sum.Add(l.Principal)
		}
		drift := sum.Sub(terms.Principal).Abs()
		tolerance := decimal.New(int64(terms.Tenure), -2)
		assert.True(t, drift.LessThanOrEqual(tolerance), "principal %s drift %s", terms.Principal, drift)
		assert.True(t, lines[len(lines)-1].Balance.Abs().LessThanOrEqual(tolerance))
	}
}

func TestGenerateSchedule_FirstLineBreakdown(t *testing.T) {
	terms := Terms{Principal: d("100000"), AnnualRate: d("12"), Tenure: 12, StartDate: models.NewDate(2026, time.January, 10)}
	lines := GenerateSchedule(terms, models.NewDate(2026, time.January, 10))

	first := lines[0]
	assert.Equal(t, 1, first.InstallmentNo)
	assert.Equal(t, "2026-02-10", first.DueDate.String())
	assert.True(t, first.EMI.Equal(d("8884.88")))
	assert.True(t, first.Interest.Equal(d("1000")))
	assert.True(t, first.Principal.Equal(d("7884.88")))
	assert.True(t, first.Balance.Equal(d("92115.12")))
	assert.Equal(t, "2026-12-10", lines[10].DueDate.String())
	assert.Equal(t, "2027-01-10", lines[11].DueDate.String())
}

func TestGenerateSchedule_StatusAndDeterminism(t *testing.T) {
	terms := Terms{Principal: d("3000"), AnnualRate: d("10"), Tenure: 4, StartDate: models.NewDate(2026, time.January, 20)}
	asOf := models.NewDate(2026, time.March, 5)

	lines := GenerateSchedule(terms, asOf)
	assert.Equal(t, models.EntryStatusOverdue, lines[0].Status) // 2026-02-20
	assert.Equal(t, models.EntryStatusDue, lines[1].Status)     // 2026-03-20
	assert.Equal(t, models.EntryStatusUpcoming, lines[2].Status)
	assert.Equal(t, models.EntryStatusUpcoming, lines[3].Status)

	assert.Equal(t, lines, GenerateSchedule(terms, asOf))
}

func TestGenerateSchedule_MonthEndStartKeepsOneDuePerMonth(t *testing.T) {
	terms := Terms{
		Principal:  d("1200"),
		AnnualRate: decimal.Zero,
		Tenure:     4,
		StartDate:  models.NewDate(2026, time.January, 31),
	}
	lines := GenerateSchedule(terms, models.NewDate(2026, time.January, 1))
	require.Len(t, lines, 4)

	var got []string
	months := map[string]bool{}
	for _, l := range lines {
		got = append(got, l.DueDate.String())
		month := l.DueDate.Time().Format("2006-01")
		assert.False(t, months[month], "two installments due in %s", month)
		months[month] = true
	}
	assert.Equal(t, []string{"2026-02-28", "2026-03-31", "2026-04-30", "2026-05-31"}, got)
}

func TestPreview_Totals(t *testing.T) {
	terms := Terms{Principal: d("100000"), AnnualRate: d("12"), Tenure: 12, StartDate: models.NewDate(2026, time.January, 1)}
	q, err := Preview(terms, models.NewDate(2026, time.January, 1))
	require.NoError(t, err)

	assert.True(t, q.EMI.Equal(d("8884.88")))
	assert.True(t, q.TotalPayable.Equal(d("106618.56")))
	assert.True(t, q.TotalInterest.Equal(d("6618.56")))
	assert.Len(t, q.Schedule, 12)
}

func TestPreview_RejectsInvalidTerms(t *testing.T) {
	start := models.NewDate(2026, time.January, 1)
	tests := []struct {
		name  string
		terms Terms
		want  error
	}{
		{"zero principal", Terms{Principal: decimal.Zero, Tenure: 12, StartDate: start}, ErrNonPositivePrincipal},
		{"negative rate", Terms{Principal: d("10"), AnnualRate: d("-1"), Tenure: 12, StartDate: start}, ErrNegativeRate},
		{"zero tenure", Terms{Principal: d("10"), Tenure: 0, StartDate: start}, ErrNonPositiveTenure},
		{"no start date", Terms{Principal: d("10"), Tenure: 3}, ErrMissingStartDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preview(tt.terms, start)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFinancedPrincipal(t *testing.T) {
	p, err := FinancedPrincipal(d("1500"), d("300"))
	require.NoError(t, err)
	assert.True(t, p.Equal(d("1200")))

	_, err = FinancedPrincipal(d("1500"), d("1500"))
	assert.ErrorIs(t, err, ErrNonPositivePrincipal)

	_, err = FinancedPrincipal(d("1500"), d("-1"))
	assert.Error(t, err)
}
