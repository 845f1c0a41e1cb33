package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_PaymentApplied(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PaymentApplied("paid", decimal.RequireFromString("50.25"))
	m.PaymentApplied("partial", decimal.Zero)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("partial")))
	assert.Equal(t, 50.25, testutil.ToFloat64(m.OverpaymentTotal))
}

func TestMetrics_Portfolio(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Portfolio(4, 2, 1, 3, decimal.NewFromInt(900), decimal.NewFromInt(300))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PlansByStatus.WithLabelValues("defaulted")))
	assert.Equal(t, 900.0, testutil.ToFloat64(m.OutstandingAmount))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PlanCreated()
		m.PaymentApplied("paid", decimal.NewFromInt(1))
		m.Portfolio(0, 0, 0, 0, decimal.Zero, decimal.Zero)
	})
}
