package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/services"
)

type PlanHandler struct {
	planService *services.PlanService
}

func NewPlanHandler(planService *services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

type PreviewPlanRequest struct {
	BaseAmount  decimal.Decimal `json:"base_amount" binding:"gte=0"`
	ProductID   uint            `json:"product_id"`
	DownPayment decimal.Decimal `json:"down_payment" binding:"gte=0"`
	AnnualRate  decimal.Decimal `json:"annual_rate" binding:"gte=0"`
	Tenure      int             `json:"tenure" binding:"required,gt=0,lte=600"`
	StartDate   models.Date     `json:"start_date" binding:"required" swaggertype:"string" example:"2026-04-01"`
}

type GuarantorRequest struct {
	PartyID      uint   `json:"party_id" binding:"required"`
	Relationship string `json:"relationship" binding:"required,max=50"`
}

type CreatePlanRequest struct {
	CustomerID    uint               `json:"customer_id" binding:"required"`
	ProductID     uint               `json:"product_id" binding:"required"`
	FinanceAmount *decimal.Decimal   `json:"finance_amount"`
	DownPayment   decimal.Decimal    `json:"down_payment" binding:"gte=0"`
	AnnualRate    decimal.Decimal    `json:"annual_rate" binding:"gte=0"`
	Tenure        int                `json:"tenure" binding:"required,gt=0,lte=600"`
	StartDate     models.Date        `json:"start_date" binding:"required" swaggertype:"string" example:"2026-04-01"`
	Guarantors    []GuarantorRequest `json:"guarantors" binding:"omitempty,dive"`
}

// @Summary Preview Plan
// @Description Quote EMI, totals and the full schedule without persisting anything
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body PreviewPlanRequest true "Plan terms"
// @Success 200 {object} amortization.Quote
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /plans/preview [post]
func (h *PlanHandler) Preview(c *gin.Context) {
	var req PreviewPlanRequest
	if err := BindNestedOrFlat(c, "plan", &req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.planService.Preview(c.Request.Context(), services.PreviewRequest{
		BaseAmount:  req.BaseAmount,
		ProductID:   req.ProductID,
		DownPayment: req.DownPayment,
		AnnualRate:  req.AnnualRate,
		Tenure:      req.Tenure,
		StartDate:   req.StartDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// @Summary Create Plan
// @Description Originate an installment plan, reserving one unit of the product
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body CreatePlanRequest true "Plan data"
// @Success 201 {object} models.PlanResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := BindNestedOrFlat(c, "plan", &req); err != nil {
		badRequest(c, err)
		return
	}

	in := services.CreatePlanRequest{
		CustomerID:    req.CustomerID,
		ProductID:     req.ProductID,
		FinanceAmount: req.FinanceAmount,
		DownPayment:   req.DownPayment,
		AnnualRate:    req.AnnualRate,
		Tenure:        req.Tenure,
		StartDate:     req.StartDate,
	}
	for _, g := range req.Guarantors {
		in.Guarantors = append(in.Guarantors, services.GuarantorInput{PartyID: g.PartyID, Relationship: g.Relationship})
	}

	plan, err := h.planService.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan.ToResponse(h.planService.Today()))
}

// @Summary Get Plan
// @Description Get a plan with its schedule and guarantors
// @Tags Plans
// @Produce json
// @Param plan_id path int true "Plan ID"
// @Success 200 {object} models.PlanResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /plans/{plan_id} [get]
func (h *PlanHandler) Show(c *gin.Context) {
	planID, ok := idParam(c, "plan_id")
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.ToResponse(h.planService.Today()))
}

// @Summary List Plans
// @Description Get a paginated list of plans
// @Tags Plans
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status (active, completed, cancelled)"
// @Param customer_id query int false "Filter by customer"
// @Param product_id query int false "Filter by product"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /plans [get]
func (h *PlanHandler) Index(c *gin.Context) {
	query := &repository.PlanQuery{
		ListQuery: listQuery(c, 20),
		Status:    models.PlanStatus(c.Query("status")),
	}
	if v, err := strconv.ParseUint(c.Query("customer_id"), 10, 32); err == nil {
		query.CustomerID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("product_id"), 10, 32); err == nil {
		query.ProductID = uint(v)
	}

	plans, total, err := h.planService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	today := h.planService.Today()
	responses := make([]models.PlanResponse, 0, len(plans))
	for i := range plans {
		responses = append(responses, plans[i].ToResponse(today))
	}
	c.JSON(http.StatusOK, gin.H{
		"plans":      responses,
		"pagination": pagination(query.Page, query.PerPage, total),
	})
}

// @Summary Defaulted Plans
// @Description Active plans holding at least one overdue installment as of a date
// @Tags Plans
// @Produce json
// @Param as_of query string false "Classification date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /plans/defaulted [get]
func (h *PlanHandler) Defaulted(c *gin.Context) {
	asOf := h.planService.Today()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		asOf = parsed
	}

	plans, err := h.planService.ListDefaulted(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	responses := make([]models.PlanResponse, 0, len(plans))
	for i := range plans {
		resp := plans[i].ToResponse(asOf)
		resp.Classification = models.PlanClassificationDefaulted
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, gin.H{"as_of": asOf, "plans": responses})
}

// @Summary Cancel Plan
// @Description Cancel an active plan. Settled installments and ledger history are kept.
// @Tags Plans
// @Produce json
// @Param plan_id path int true "Plan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /plans/{plan_id}/cancel [post]
func (h *PlanHandler) Cancel(c *gin.Context) {
	planID, ok := idParam(c, "plan_id")
	if !ok {
		return
	}
	plan, err := h.planService.Cancel(c.Request.Context(), planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "plan": plan.ToResponse(h.planService.Today())})
}
