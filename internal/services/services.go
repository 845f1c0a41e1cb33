package services

import (
	"time"

	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
)

// Clock supplies the as-of instant for status derivation and settlement dates
type Clock func() time.Time

// SystemClock reads the wall clock
func SystemClock() time.Time {
	return time.Now()
}

func (c Clock) Today() models.Date {
	return models.DateOf(c())
}

// Services holds all service instances
type Services struct {
	Plan         *PlanService
	Payment      *PaymentService
	Reconcile    *ReconcileService
	Ledger       *LedgerService
	Audit        *AuditService
	Notification *NotificationService
	Report       *ReportService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, publisher events.Publisher, m *metrics.Metrics, clock Clock) *Services {
	if clock == nil {
		clock = SystemClock
	}
	auditSvc := NewAuditService(repos.Audit)
	notificationSvc := NewNotificationService(publisher, worker)
	reconcileSvc := NewReconcileService(repos, auditSvc, notificationSvc, m, clock)

	return &Services{
		Plan:         NewPlanService(repos, auditSvc, notificationSvc, m, clock),
		Payment:      NewPaymentService(repos, reconcileSvc, auditSvc, notificationSvc, m, clock),
		Reconcile:    reconcileSvc,
		Ledger:       NewLedgerService(repos, auditSvc, notificationSvc, m),
		Audit:        auditSvc,
		Notification: notificationSvc,
		Report:       NewReportService(repos.Stats, m, clock),
	}
}
