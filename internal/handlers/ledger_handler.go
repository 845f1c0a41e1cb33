package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/services"
)

type LedgerHandler struct {
	ledgerService    *services.LedgerService
	reconcileService *services.ReconcileService
}

func NewLedgerHandler(ledgerService *services.LedgerService, reconcileService *services.ReconcileService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, reconcileService: reconcileService}
}

type RecordCreditRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required,gt=0" swaggertype:"string" example:"500.00"`
	Description string          `json:"description" binding:"max=255"`
}

// @Summary Customer Ledger
// @Description Credit balance and paginated ledger movements for a customer
// @Tags Ledger
// @Produce json
// @Param customer_id path int true "Customer ID"
// @Param entry_type query string false "credit or debit"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /customers/{customer_id}/ledger [get]
func (h *LedgerHandler) Show(c *gin.Context) {
	customerID, ok := idParam(c, "customer_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	balance, err := h.ledgerService.Balance(ctx, customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	query := listQuery(c, 50)
	query.Filters["entry_type"] = c.Query("entry_type")
	entries, total, err := h.ledgerService.Entries(ctx, customerID, query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_id": customerID,
		"balance":     balance,
		"entries":     entries,
		"pagination":  pagination(query.Page, query.PerPage, total),
	})
}

// @Summary Record Credit
// @Description Deposit money into a customer's credit balance
// @Tags Ledger
// @Accept json
// @Produce json
// @Param customer_id path int true "Customer ID"
// @Param request body RecordCreditRequest true "Credit"
// @Success 201 {object} models.MiscLedgerEntry
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /customers/{customer_id}/credits [post]
func (h *LedgerHandler) RecordCredit(c *gin.Context) {
	customerID, ok := idParam(c, "customer_id")
	if !ok {
		return
	}
	var req RecordCreditRequest
	if err := BindNestedOrFlat(c, "credit", &req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.ledgerService.RecordCredit(c.Request.Context(), customerID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// @Summary Reconcile Credit
// @Description Sweep the customer's credit balance over their oldest active plan
// @Tags Ledger
// @Produce json
// @Param customer_id path int true "Customer ID"
// @Success 200 {object} services.SweepResult
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /customers/{customer_id}/reconcile [post]
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	customerID, ok := idParam(c, "customer_id")
	if !ok {
		return
	}
	result, err := h.reconcileService.Reconcile(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
