package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/services"
)

// IdempotencyHeader lets clients retry a payment without applying it twice
const IdempotencyHeader = "Idempotency-Key"

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type PayInstallmentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required,gt=0" swaggertype:"string" example:"8884.88"`
	ApplyCredit bool            `json:"apply_credit_balance"`
}

// @Summary Pay Installment
// @Description Apply a cash payment to one installment. Any excess over the EMI is credited to the customer.
// @Tags Payments
// @Accept json
// @Produce json
// @Param plan_id path int true "Plan ID"
// @Param installment_no path int true "Installment number"
// @Param Idempotency-Key header string false "Replays the stored result when repeated"
// @Param request body PayInstallmentRequest true "Payment"
// @Success 200 {object} services.PaymentResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /plans/{plan_id}/installments/{installment_no}/pay [post]
func (h *PaymentHandler) Pay(c *gin.Context) {
	planID, ok := idParam(c, "plan_id")
	if !ok {
		return
	}
	installmentNo, err := strconv.Atoi(c.Param("installment_no"))
	if err != nil || installmentNo < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid installment_no", "kind": services.KindValidation})
		return
	}

	var req PayInstallmentRequest
	if err := BindNestedOrFlat(c, "payment", &req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.PayInstallment(c.Request.Context(), services.PaymentRequest{
		PlanID:         planID,
		InstallmentNo:  installmentNo,
		Amount:         req.Amount,
		ApplyCredit:    req.ApplyCredit,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
