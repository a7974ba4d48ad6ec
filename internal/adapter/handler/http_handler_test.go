package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/crm/internal/adapter/storage"
	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/core/service"
	"github.com/rl1809/crm/internal/core/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupGateway(t *testing.T) (*Gateway, *storage.MemoryAdapter) {
	t.Helper()
	store := storage.NewMemoryAdapter()
	cfg := config.Default().Validation
	rules, err := validation.New(cfg)
	require.NoError(t, err)
	mutations := service.NewMutationService(store, store, nil, rules, nil)
	return NewGateway(mutations, service.NewQueryService(store), cfg.LowStockThreshold), store
}

func setupServer(t *testing.T) *HTTPHandler {
	t.Helper()
	gw, store := setupGateway(t)
	return NewHTTPHandler(gw, map[string]Pinger{"store": store}, nil)
}

func doJSON(t *testing.T, h *HTTPHandler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Engine().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestCustomerFlow(t *testing.T) {
	h := setupServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "Alice", "email": "alice@example.com", "phone": "+1234567890",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.True(t, env.Success)

	var res service.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "Customer created successfully", res.Message)
	require.NotNil(t, res.Customer)

	w = doJSON(t, h, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "Alice 2", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	env = decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "DuplicateEmail", env.Error.Kind)
	assert.Equal(t, "Email already exists", env.Error.Message)

	w = doJSON(t, h, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "Bob", "email": "bob@example.com", "phone": "555",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidPhoneFormat", decode(t, w).Error.Kind)

	w = doJSON(t, h, http.MethodGet, "/api/v1/customers?email=ALICE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Len(t, list, 1)
}

func TestBulkCreateCustomers(t *testing.T) {
	h := setupServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/customers/bulk", []map[string]any{
		{"name": "A", "email": "a@x.com"},
		{"name": "B", "email": "a@x.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.Result
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Len(t, res.Customers, 1)
	assert.Equal(t, []string{"Row 2: Email 'a@x.com' already exists"}, res.Errors)

	w = doJSON(t, h, http.MethodPost, "/api/v1/customers/bulk", []map[string]any{{"name": "C", "email": "a@x.com"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"customers":[]`)

	w = doJSON(t, h, http.MethodPost, "/api/v1/customers/bulk", []map[string]any{{"name": "D", "email": "d@x.com"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"errors":[]`)
}

func TestOrderFlow(t *testing.T) {
	h := setupServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/customers", map[string]any{"name": "A", "email": "a@x.com"})
	doJSON(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "P1", "price": "10.00", "stock": 5})
	w := doJSON(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "P2", "price": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"price":"5.00"`)

	w = doJSON(t, h, http.MethodPost, "/api/v1/mutations", map[string]any{
		"kind":  "create_order",
		"input": map[string]any{"customer_id": 1, "product_ids": []int{1, 2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.Result
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	require.NotNil(t, res.Order)
	assert.Contains(t, w.Body.String(), `"total_amount":"15.00"`)
	assert.True(t, res.Order.TotalAmount.Equal(decimal.RequireFromString("15.00")))
	assert.Len(t, res.Order.ProductIDs, 2)

	w = doJSON(t, h, http.MethodPost, "/api/v1/orders", map[string]any{"customer_id": 1, "product_ids": []int{1, 99}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ProductNotFound", decode(t, w).Error.Kind)

	w = doJSON(t, h, http.MethodPost, "/api/v1/orders", map[string]any{"customer_id": 1, "product_ids": []int{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NoProductsSelected", decode(t, w).Error.Kind)

	w = doJSON(t, h, http.MethodGet, "/api/v1/orders/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "null", string(decode(t, w).Data))

	w = doJSON(t, h, http.MethodGet, "/api/v1/orders?min_total=20", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(decode(t, w).Data))

	w = doJSON(t, h, http.MethodGet, "/api/v1/orders?customer_name=a&product_name=p2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	assert.Len(t, orders, 1)

	w = doJSON(t, h, http.MethodGet, "/api/v1/orders?customer_name=nobody", nil)
	assert.JSONEq(t, "[]", string(decode(t, w).Data))
}

func TestProductValidation(t *testing.T) {
	h := setupServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "Free", "price": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidPrice", decode(t, w).Error.Kind)

	w = doJSON(t, h, http.MethodGet, "/api/v1/products", nil)
	assert.JSONEq(t, "[]", string(decode(t, w).Data))

	w = doJSON(t, h, http.MethodGet, "/api/v1/products?min_price=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BadRequest", decode(t, w).Error.Kind)
}

func TestRestockRoute(t *testing.T) {
	h := setupServer(t)
	doJSON(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "Low", "price": 1, "stock": 2})
	doJSON(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "Full", "price": 1, "stock": 50})

	w := doJSON(t, h, http.MethodGet, "/api/v1/products?low_stock=true", nil)
	var low []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &low))
	assert.Len(t, low, 1)

	w = doJSON(t, h, http.MethodPost, "/api/v1/products/restock", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.Result
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, "Updated 1 low-stock products", res.Message)
}

func TestGetMissingIsNull(t *testing.T) {
	h := setupServer(t)

	for _, path := range []string{"/api/v1/customers/7", "/api/v1/products/7", "/api/v1/orders/7"} {
		w := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		env := decode(t, w)
		assert.True(t, env.Success, path)
		assert.Equal(t, "null", string(env.Data), path)
	}

	w := doJSON(t, h, http.MethodGet, "/api/v1/customers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMutationEnvelopeErrors(t *testing.T) {
	h := setupServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/mutations", map[string]any{"kind": "delete_everything", "input": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BadRequest", decode(t, w).Error.Kind)

	w = doJSON(t, h, http.MethodPost, "/api/v1/mutations", map[string]any{"kind": "create_customer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type downProbe struct{}

func (downProbe) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthCheck(t *testing.T) {
	h := setupServer(t)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	gw, _ := setupGateway(t)
	h = NewHTTPHandler(gw, map[string]Pinger{"redis": downProbe{}}, nil)
	w = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestCORS(t *testing.T) {
	gw, _ := setupGateway(t)
	h := NewHTTPHandler(gw, nil, nil, WithCORS([]string{"http://localhost:3000"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/customers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
