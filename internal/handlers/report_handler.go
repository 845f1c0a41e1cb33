package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	worker        *jobs.Worker
}

func NewReportHandler(reportService *services.ReportService, worker *jobs.Worker) *ReportHandler {
	return &ReportHandler{reportService: reportService, worker: worker}
}

// @Summary Portfolio Stats
// @Description Plan counts by classification and amounts owed as of a date
// @Tags Reports
// @Produce json
// @Param as_of query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} repository.PortfolioStats
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	var asOf models.Date
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		asOf = parsed
	}

	stats, err := h.reportService.Portfolio(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Job Status
// @Description Background worker counters
// @Tags Reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /jobs/status [get]
func (h *ReportHandler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.reportService.WorkerStatus(h.worker))
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated list of audit logs
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Param entity query string false "Filter by entity (InstallmentPlan, RepaymentEntry, MiscLedgerEntry)"
// @Param actor_id query string false "Filter by actor id"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	query := listQuery(c, 50)
	query.Filters["entity"] = c.Query("entity")
	query.Filters["actor_id"] = c.Query("actor_id")

	logs, total, err := h.auditService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": pagination(query.Page, query.PerPage, total)})
}
