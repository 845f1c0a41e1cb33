package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health  *HealthHandler
	Plan    *PlanHandler
	Payment *PaymentHandler
	Ledger  *LedgerHandler
	Report  *ReportHandler
	Audit   *AuditHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, worker *jobs.Worker) *Handlers {
	RegisterValidators()
	return &Handlers{
		Health:  NewHealthHandler(svcs.Report.Ping),
		Plan:    NewPlanHandler(svcs.Plan),
		Payment: NewPaymentHandler(svcs.Payment),
		Ledger:  NewLedgerHandler(svcs.Ledger, svcs.Reconcile),
		Report:  NewReportHandler(svcs.Report, worker),
		Audit:   NewAuditHandler(svcs.Audit),
	}
}

const maxPerPage = 100

// listQuery reads page, per_page and sort (format: field-direction)
func listQuery(c *gin.Context, defaultPerPage int) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 || query.PerPage > maxPerPage {
		query.PerPage = defaultPerPage
	}

	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}
	return query
}
