package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/installments-api/internal/application/service"
	"github.com/sangkips/installments-api/internal/config"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/infrastructure/database"
	"github.com/sangkips/installments-api/internal/infrastructure/repository"
	"github.com/sangkips/installments-api/internal/presentation/http/handler"
	"github.com/sangkips/installments-api/internal/presentation/http/middleware"
	"github.com/sangkips/installments-api/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type testServer struct {
	router *gin.Engine
	jwt    *utils.JWTManager
	token  string
}

func newTestServer(t *testing.T, configure func(*config.Config, *middleware.RateLimiterConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:    config.AppConfig{Name: "installments-api"},
		Auth:   config.AuthConfig{Secret: "test-secret", ExpiryHours: time.Hour, Issuer: "installments-api"},
		Ledger: config.LedgerConfig{DefaultLateFee: 25},
	}
	limits := middleware.RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 1000}
	if configure != nil {
		configure(cfg, &limits)
	}

	log := zap.NewNop()
	db, err := database.Open(
		&config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"},
		&config.LogConfig{GormLevel: "silent"},
		log,
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	txManager := repository.NewTransactionManager(db.DB)
	customerRepo := repository.NewCustomerRepository(db.DB)
	productRepo := repository.NewProductRepository(db.DB)
	saleRepo := repository.NewSaleRepository(db.DB)
	installmentRepo := repository.NewInstallmentRepository(db.DB)
	transactionRepo := repository.NewPaymentTransactionRepository(db.DB)

	identifiers := service.NewIdentifierService(saleRepo, cfg.Ledger.SaleNumberPrefix)
	saleService := service.NewSaleService(txManager, saleRepo, installmentRepo, transactionRepo, customerRepo, productRepo, identifiers, cfg.Ledger, log)
	installmentService := service.NewInstallmentService(txManager, installmentRepo, saleRepo, transactionRepo, cfg.Ledger.UpcomingDays, log)

	limiter := middleware.NewClientRateLimiter(limits)
	t.Cleanup(limiter.Stop)

	jwtManager := utils.NewJWTManager(cfg.Auth.Secret, cfg.Auth.ExpiryHours, cfg.Auth.Issuer)
	router := Setup(&Handlers{
		Customer:    handler.NewCustomerHandler(service.NewCustomerService(customerRepo)),
		Product:     handler.NewProductHandler(service.NewProductService(productRepo)),
		Sale:        handler.NewSaleHandler(saleService, installmentService, log),
		Installment: handler.NewInstallmentHandler(installmentService, cfg.Ledger.DefaultLateFee),
	}, &Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: repository.NewIdempotencyRepository(db.DB),
		Logger:          log,
		RateLimiter:     limiter,
	})

	return &testServer{router: router, jwt: jwtManager}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) createCustomer(t *testing.T, name string) entity.Customer {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/customers", gin.H{"name": name}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[entity.Customer](t, env)
}

func (s *testServer) createInstallmentSale(t *testing.T, customerID string) entity.Sale {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"customer_id":            customerID,
		"payment_type":           "installments",
		"number_of_installments": 3,
		"items": []gin.H{
			{"product_name": "Heladera", "quantity": 1, "unit_price": 300},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[entity.Sale](t, env)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"installments-api"}`, w.Body.String())
}

func TestSalePaymentFlow(t *testing.T) {
	s := newTestServer(t, nil)
	customer := s.createCustomer(t, "Ana Pérez")
	sale := s.createInstallmentSale(t, customer.ID.String())

	assert.Regexp(t, `^VTA-0001-\d{8}$`, sale.SaleNumber)
	require.Len(t, sale.Installments, 3)
	for i, inst := range sale.Installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.True(t, decimal.NewFromInt(100).Equal(inst.Amount))
	}
	first := sale.Installments[0]

	w, env := s.do(t, http.MethodPost, "/api/v1/installments/"+first.ID.String()+"/payments",
		gin.H{"amount": 40, "payment_method": "cash"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decodeData[service.PaymentResult](t, env)
	assert.True(t, decimal.NewFromInt(60).Equal(paid.Installment.Balance))
	assert.Equal(t, enum.InstallmentStatusPending, paid.Installment.Status)
	require.NotNil(t, paid.Transaction)

	w, _ = s.do(t, http.MethodPost, "/api/v1/installments/"+first.ID.String()+"/payments",
		gin.H{"amount": 61}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/installments/"+first.ID.String()+"/transactions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]entity.PaymentTransaction](t, env), 1)

	w, env = s.do(t, http.MethodPost, "/api/v1/installments/"+first.ID.String()+"/payments/"+paid.Transaction.ID.String()+"/revert", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reverted := decodeData[entity.Installment](t, env)
	assert.True(t, reverted.PaidAmount.IsZero())
	assert.True(t, decimal.NewFromInt(100).Equal(reverted.Balance))

	w, _ = s.do(t, http.MethodPost, "/api/v1/installments/"+first.ID.String()+"/payments/"+paid.Transaction.ID.String()+"/revert", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID.String()+"/transactions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	transactions := decodeData[[]entity.PaymentTransaction](t, env)
	require.Len(t, transactions, 1)
	assert.Equal(t, enum.TransactionStatusCancelled, transactions[0].Status)

	w, env = s.do(t, http.MethodPost, "/api/v1/installments/"+first.ID.String()+"/mark-paid", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	marked := decodeData[service.PaymentResult](t, env)
	assert.Equal(t, enum.InstallmentStatusPaid, marked.Installment.Status)

	w, _ = s.do(t, http.MethodPost, "/api/v1/installments/"+sale.Installments[1].ID.String()+"/late-fee", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID.String()+"/installments", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	schedule := decodeData[[]entity.Installment](t, env)
	require.Len(t, schedule, 3)
	assert.True(t, decimal.NewFromInt(125).Equal(schedule[1].Balance))
}

func TestOptionalBodiesWithChunkedEncoding(t *testing.T) {
	s := newTestServer(t, nil)
	customer := s.createCustomer(t, "Rosa")
	sale := s.createInstallmentSale(t, customer.ID.String())

	chunked := func(path, body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(http.MethodPost, path, io.NopCloser(strings.NewReader(body)))
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
		return w, env
	}

	w, env := chunked("/api/v1/installments/"+sale.Installments[0].ID.String()+"/mark-paid", `{"payment_date":"2020-01-02"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	marked := decodeData[service.PaymentResult](t, env)
	require.NotNil(t, marked.Installment.PaidDate)
	assert.Equal(t, "2020-01-02", *marked.Installment.PaidDate)

	w, env = chunked("/api/v1/installments/"+sale.Installments[1].ID.String()+"/late-fee", `{"fee":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.NewFromInt(110).Equal(decodeData[entity.Installment](t, env).Balance))

	w, env = chunked("/api/v1/installments/"+sale.Installments[2].ID.String()+"/late-fee", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.NewFromInt(125).Equal(decodeData[entity.Installment](t, env).Balance))

	w, _ = chunked("/api/v1/installments/"+sale.Installments[2].ID.String()+"/late-fee", `{"fee":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaleValidationAndLookup(t *testing.T) {
	s := newTestServer(t, nil)
	customer := s.createCustomer(t, "Luis")

	w, env := s.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"customer_id":  customer.ID.String(),
		"payment_type": "cash",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Errors), "Items")

	w, _ = s.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"customer_id":            customer.ID.String(),
		"payment_type":           "installments",
		"number_of_installments": 5000,
		"items":                  []gin.H{{"product_name": "Cama", "quantity": 1, "unit_price": 5000}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/sales/"+customer.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)

	w, _ = s.do(t, http.MethodGet, "/api/v1/sales?customer_id=nope", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportBackup(t *testing.T) {
	s := newTestServer(t, nil)

	backup := `{"ventas": [
		{"saleNumber": "VTA-0001-20230515", "date": "2023-05-15", "tipo_pago": "contado", "total": 150},
		{"saleNumber": "VTA-0002-20230515", "items": "oops"}
	]}`
	w, env := s.do(t, http.MethodPost, "/api/v1/sales/import", backup, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	summary := decodeData[handler.ImportSummary](t, env)
	assert.Equal(t, 1, summary.Imported)
	require.Len(t, summary.SaleIDs, 1)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, 1, summary.Failed[0].Index)

	w, env = s.do(t, http.MethodGet, "/api/v1/sales/"+summary.SaleIDs[0], nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sale := decodeData[entity.Sale](t, env)
	assert.Equal(t, "VTA-0001-20230515", sale.SaleNumber)
	assert.Equal(t, "2023-05-15", sale.Date)

	w, _ = s.do(t, http.MethodPost, "/api/v1/sales/import", `"just a string"`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIdempotentReplay(t *testing.T) {
	s := newTestServer(t, nil)
	headers := map[string]string{middleware.IdempotencyKeyHeader: "create-customer-1"}

	w1, env1 := s.do(t, http.MethodPost, "/api/v1/customers", gin.H{"name": "Carla"}, headers)
	require.Equal(t, http.StatusCreated, w1.Code)

	w2, env2 := s.do(t, http.MethodPost, "/api/v1/customers", gin.H{"name": "Carla"}, headers)
	require.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, "true", w2.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, decodeData[entity.Customer](t, env1).ID, decodeData[entity.Customer](t, env2).ID)

	w, env := s.do(t, http.MethodGet, "/api/v1/customers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []entity.Customer `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)

	w, _ = s.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Mesa"}, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAuthEnabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config, _ *middleware.RateLimiterConfig) {
		cfg.Auth.Enabled = true
	})

	w, _ := s.do(t, http.MethodGet, "/api/v1/customers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	clerk, err := s.jwt.GenerateToken("clerk", nil)
	require.NoError(t, err)
	s.token = clerk

	w, _ = s.do(t, http.MethodGet, "/api/v1/customers", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/api/v1/admin/payment-transactions?confirm=true", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, err := s.jwt.GenerateToken("owner", []string{utils.RoleAdmin})
	require.NoError(t, err)
	s.token = admin

	w, _ = s.do(t, http.MethodDelete, "/api/v1/admin/payment-transactions", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(t, http.MethodDelete, "/api/v1/admin/payment-transactions?confirm=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, string(env.Data))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(_ *config.Config, limits *middleware.RateLimiterConfig) {
		limits.RequestsPerSecond = 0.001
		limits.BurstSize = 2
	})

	for range 2 {
		w, _ := s.do(t, http.MethodGet, "/api/v1/products", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := s.do(t, http.MethodGet, "/api/v1/products", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
}
