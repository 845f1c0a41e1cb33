package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/services"
	"github.com/sjperalta/fintera-installments/internal/testutil"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewSQLiteDB(t)
	today := models.NewDate(2026, time.March, 15)
	svcs := services.NewServices(repository.NewRepositories(db), nil, nil, nil,
		func() time.Time { return today.Time() })
	h := NewHandlers(svcs, nil)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health.Index)
	v1.POST("/plans/preview", h.Plan.Preview)
	v1.POST("/plans", h.Plan.Create)
	v1.GET("/plans", h.Plan.Index)
	v1.GET("/plans/defaulted", h.Plan.Defaulted)
	v1.GET("/plans/:plan_id", h.Plan.Show)
	v1.POST("/plans/:plan_id/cancel", h.Plan.Cancel)
	v1.POST("/plans/:plan_id/installments/:installment_no/pay", h.Payment.Pay)
	v1.GET("/customers/:customer_id/ledger", h.Ledger.Show)
	v1.POST("/customers/:customer_id/credits", h.Ledger.RecordCredit)
	v1.POST("/customers/:customer_id/reconcile", h.Ledger.Reconcile)
	v1.GET("/stats", h.Report.Stats)
	v1.GET("/audits", h.Audit.Index)
	return r, db
}

func doJSON(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPlanHandler_CreateShowAndPay(t *testing.T) {
	r, db := setupRouter(t)
	customer := testutil.SeedCustomer(t, db, "Ana")
	product := testutil.SeedProduct(t, db, "1200", 1)

	w := doJSON(r, http.MethodPost, "/api/v1/plans", gin.H{"plan": gin.H{
		"customer_id": customer.ID,
		"product_id":  product.ID,
		"annual_rate": "0",
		"tenure":      12,
		"start_date":  "2026-03-01",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "100", created["emi"])
	assert.Equal(t, "active", created["status"])
	assert.Len(t, created["schedule"], 12)
	planID := uint(created["id"].(float64))

	w = doJSON(r, http.MethodGet, "/api/v1/plans/"+itoa(planID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/plans/"+itoa(planID)+"/installments/1/pay",
		gin.H{"amount": "130.00"}, IdempotencyHeader, "pos-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode(t, w)
	assert.Equal(t, "paid", paid["status"])
	assert.Equal(t, "30", paid["overpayment"])
	assert.Equal(t, false, paid["replayed"])

	w = doJSON(r, http.MethodPost, "/api/v1/plans/"+itoa(planID)+"/installments/1/pay",
		gin.H{"amount": "130.00"}, IdempotencyHeader, "pos-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["replayed"])

	w = doJSON(r, http.MethodPost, "/api/v1/plans/"+itoa(planID)+"/installments/1/pay", gin.H{"amount": "5"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/customers/"+itoa(customer.ID)+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ledger := decode(t, w)
	assert.Equal(t, "30", ledger["balance"])
	assert.Len(t, ledger["entries"], 1)

	w = doJSON(r, http.MethodPost, "/api/v1/customers/"+itoa(customer.ID)+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "30", decode(t, w)["applied"])

	w = doJSON(r, http.MethodPost, "/api/v1/plans/"+itoa(planID)+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = doJSON(r, http.MethodGet, "/api/v1/audits?entity=InstallmentPlan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["audits"], 3)
}

func TestPlanHandler_ErrorMapping(t *testing.T) {
	r, db := setupRouter(t)
	customer := testutil.SeedCustomer(t, db, "Ana")
	soldOut := testutil.SeedProduct(t, db, "1200", 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"conflict on empty stock", http.MethodPost, "/api/v1/plans",
			gin.H{"customer_id": customer.ID, "product_id": soldOut.ID, "tenure": 6, "start_date": "2026-03-01"}, http.StatusConflict},
		{"validation on zero tenure", http.MethodPost, "/api/v1/plans",
			gin.H{"customer_id": customer.ID, "product_id": soldOut.ID, "tenure": 0, "start_date": "2026-03-01"}, http.StatusBadRequest},
		{"validation on negative rate", http.MethodPost, "/api/v1/plans/preview",
			gin.H{"base_amount": "1000", "annual_rate": "-2", "tenure": 6, "start_date": "2026-03-01"}, http.StatusBadRequest},
		{"unknown plan", http.MethodGet, "/api/v1/plans/404", nil, http.StatusNotFound},
		{"bad plan id", http.MethodGet, "/api/v1/plans/abc", nil, http.StatusBadRequest},
		{"bad installment", http.MethodPost, "/api/v1/plans/1/installments/0/pay", gin.H{"amount": "1"}, http.StatusBadRequest},
		{"missing amount", http.MethodPost, "/api/v1/plans/1/installments/1/pay", gin.H{}, http.StatusBadRequest},
		{"unknown customer ledger", http.MethodGet, "/api/v1/customers/999/ledger", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/v1/plans?status=defaulted", nil, http.StatusBadRequest},
		{"bad as_of", http.MethodGet, "/api/v1/plans/defaulted?as_of=yesterday", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestPlanHandler_PreviewAndStats(t *testing.T) {
	r, db := setupRouter(t)
	customer := testutil.SeedCustomer(t, db, "Ana")
	product := testutil.SeedProduct(t, db, "300", 1)
	testutil.SeedPlan(t, db, customer.ID, product.ID, models.NewDate(2026, time.January, 1), "100", "100")

	w := doJSON(r, http.MethodPost, "/api/v1/plans/preview", gin.H{
		"base_amount": "100000", "annual_rate": "12", "tenure": 12, "start_date": "2026-04-01",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "8884.88", decode(t, w)["emi"])

	w = doJSON(r, http.MethodGet, "/api/v1/plans/defaulted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "2026-03-15", body["as_of"])
	assert.Len(t, body["plans"], 1)

	w = doJSON(r, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["defaulted"])
}

func TestHealthHandler(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(r, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(func(ctx context.Context) error { return errors.New("dial tcp: refused") })
	r := gin.New()
	r.GET("/health", h.Index)

	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unreachable", decode(t, w)["database"])
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
