// Package metrics exposes Prometheus instruments for the financing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "installments"

// Metrics groups the engine's instruments. A nil *Metrics is a no-op.
type Metrics struct {
	PlansCreated       prometheus.Counter
	PlansCancelled     prometheus.Counter
	PlansCompleted     prometheus.Counter
	InventoryConflicts prometheus.Counter
	Payments           *prometheus.CounterVec
	OverpaymentTotal   prometheus.Counter
	CreditApplied      prometheus.Counter
	CreditRecorded     prometheus.Counter
	PlansByStatus      *prometheus.GaugeVec
	OutstandingAmount  prometheus.Gauge
	OverdueAmount      prometheus.Gauge
}

// New registers all instruments on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PlansCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "plans_created_total",
			Help: "Installment plans originated.",
		}),
		PlansCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "plans_cancelled_total",
			Help: "Installment plans cancelled.",
		}),
		PlansCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "plans_completed_total",
			Help: "Installment plans fully paid.",
		}),
		InventoryConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inventory_conflicts_total",
			Help: "Plan originations rejected for lack of stock.",
		}),
		Payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payments_total",
			Help: "Installment payments applied, by resulting entry status.",
		}, []string{"outcome"}),
		OverpaymentTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "overpayment_amount_total",
			Help: "Cash received above the installment amount, routed to customer credit.",
		}),
		CreditApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "credit_applied_amount_total",
			Help: "Customer credit consumed by reconciliation sweeps.",
		}),
		CreditRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "credit_recorded_amount_total",
			Help: "Customer credit deposited directly.",
		}),
		PlansByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "plans",
			Help: "Plans by classification (active, completed, cancelled, defaulted).",
		}, []string{"classification"}),
		OutstandingAmount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outstanding_amount",
			Help: "Unsettled installment amount across active plans.",
		}),
		OverdueAmount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "overdue_amount",
			Help: "Unsettled installment amount past due across active plans.",
		}),
	}
}

func amount(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (m *Metrics) PlanCreated() {
	if m != nil {
		m.PlansCreated.Inc()
	}
}

func (m *Metrics) PlanCancelled() {
	if m != nil {
		m.PlansCancelled.Inc()
	}
}

func (m *Metrics) PlanCompleted() {
	if m != nil {
		m.PlansCompleted.Inc()
	}
}

func (m *Metrics) InventoryConflict() {
	if m != nil {
		m.InventoryConflicts.Inc()
	}
}

// PaymentApplied counts one payment and any overpayment it produced
func (m *Metrics) PaymentApplied(outcome string, overpayment decimal.Decimal) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(outcome).Inc()
	if overpayment.IsPositive() {
		m.OverpaymentTotal.Add(amount(overpayment))
	}
}

func (m *Metrics) CreditSwept(applied decimal.Decimal) {
	if m != nil && applied.IsPositive() {
		m.CreditApplied.Add(amount(applied))
	}
}

func (m *Metrics) CreditDeposited(a decimal.Decimal) {
	if m != nil && a.IsPositive() {
		m.CreditRecorded.Add(amount(a))
	}
}

// Portfolio sets the classification gauges
func (m *Metrics) Portfolio(active, completed, cancelled, defaulted int64, outstanding, overdue decimal.Decimal) {
	if m == nil {
		return
	}
	m.PlansByStatus.WithLabelValues("active").Set(float64(active))
	m.PlansByStatus.WithLabelValues("completed").Set(float64(completed))
	m.PlansByStatus.WithLabelValues("cancelled").Set(float64(cancelled))
	m.PlansByStatus.WithLabelValues("defaulted").Set(float64(defaulted))
	m.OutstandingAmount.Set(amount(outstanding))
	m.OverdueAmount.Set(amount(overdue))
}
