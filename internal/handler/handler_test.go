package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"agrimarket/internal/model"
	"agrimarket/internal/repository/memory"
	"agrimarket/internal/service"
	"agrimarket/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router  *gin.Engine
	store   *memory.Store
	buyer   *model.User
	seller  *model.User
	admin   *model.User
	product *model.Product
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	s := &testServer{store: store}
	s.buyer = &model.User{Name: "Ada", Role: model.RoleBuyer, WalletBalance: decimal.RequireFromString("20000.00")}
	s.seller = &model.User{Name: "Musa", Role: model.RoleFarmer}
	s.admin = &model.User{Name: "Ops", Role: model.RoleAdmin}
	store.AddUser(s.buyer)
	store.AddUser(s.seller)
	store.AddUser(s.admin)
	s.product = &model.Product{
		SellerID:          s.seller.ID,
		Name:              "Yam tubers",
		PricePerUnit:      decimal.RequireFromString("250.00"),
		AvailableQuantity: decimal.RequireFromString("1000"),
	}
	store.AddProduct(s.product)

	logger := zap.NewNop()
	deps := service.Deps{Store: store, Logger: logger}
	h := NewHandler(service.NewOrderService(deps, service.Settings{}), service.NewAccountService(deps, service.Settings{}), 20, 100, logger)
	s.router = SetupRouter(h, store.Users(), metrics.NewServerMetrics("test"), false, logger)
	return s
}

type envelope struct {
	Code    int             `json:"code"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, user *model.User, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
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
	if user != nil {
		req.Header.Set(HeaderUserID, strconv.FormatInt(user.ID, 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) placeBody(qty string) map[string]interface{} {
	return map[string]interface{}{
		"productId":       s.product.ID,
		"quantity":        qty,
		"buyerId":         s.buyer.ID,
		"deliveryAddress": "12 Market Road, Ibadan",
		"paymentMethod":   "wallet",
	}
}

func (s *testServer) placeOrder(t *testing.T, qty string) model.Order {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/orders", s.buyer, s.placeBody(qty))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order model.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return order
}

func (s *testServer) setStatus(t *testing.T, user *model.User, orderID int64, status string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return s.do(t, http.MethodPut, "/api/v1/orders/"+strconv.FormatInt(orderID, 10)+"/status", user, map[string]string{"status": status})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agrimarket_test_http_requests_total")
}

func TestActorRequired(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/orders/1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", env.Kind)

	w, _ = s.do(t, http.MethodGet, "/api/v1/orders/1", nil, nil, HeaderUserID, "999")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	order := s.placeOrder(t, "50")
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "12500", order.TotalPrice.String())
	require.Len(t, order.Transactions, 1)
	assert.Equal(t, model.TransactionTypeEscrowHold, order.Transactions[0].Type)
}

func TestPlaceOrderEndpoint_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		user   *model.User
		body   interface{}
		status int
		kind   string
		field  string
	}{
		{"malformed json", s.buyer, "{", http.StatusBadRequest, "validation_error", "body"},
		{"zero quantity", s.buyer, s.placeBody("0"), http.StatusBadRequest, "validation_error", "quantity"},
		{"missing product", s.buyer, func() interface{} { b := s.placeBody("1"); delete(b, "productId"); return b }(), http.StatusBadRequest, "validation_error", "productId"},
		{"unknown product", s.buyer, func() interface{} { b := s.placeBody("1"); b["productId"] = 999; return b }(), http.StatusNotFound, "not_found", ""},
		{"too much", s.buyer, s.placeBody("5000"), http.StatusBadRequest, "insufficient_stock", ""},
		{"not the buyer", s.seller, s.placeBody("1"), http.StatusForbidden, "forbidden", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/orders", tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.status, env.Code)
			assert.Equal(t, tt.kind, env.Kind)
			assert.Equal(t, tt.field, env.Field)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestPlaceOrderEndpoint_IdempotencyKey(t *testing.T) {
	s := newTestServer(t)

	w1, env1 := s.do(t, http.MethodPost, "/api/v1/orders", s.buyer, s.placeBody("5"), HeaderIdempotencyKey, "abc-123")
	require.Equal(t, http.StatusCreated, w1.Code)
	w2, env2 := s.do(t, http.MethodPost, "/api/v1/orders", s.buyer, s.placeBody("5"), HeaderIdempotencyKey, "abc-123")
	require.Equal(t, http.StatusCreated, w2.Code)

	var o1, o2 model.Order
	require.NoError(t, json.Unmarshal(env1.Data, &o1))
	require.NoError(t, json.Unmarshal(env2.Data, &o2))
	assert.Equal(t, o1.ID, o2.ID)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	order := s.placeOrder(t, "50")

	w, env := s.setStatus(t, s.buyer, order.ID, model.OrderStatusAccepted)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Kind)

	w, env = s.setStatus(t, s.seller, order.ID, model.OrderStatusDelivered)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "illegal_transition", env.Kind)

	w, env = s.setStatus(t, s.seller, order.ID, "teleported")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", env.Field)

	w, _ = s.setStatus(t, s.seller, 999, model.OrderStatusAccepted)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(t, http.MethodPut, "/api/v1/orders/abc/status", s.seller, map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", env.Field)

	for _, status := range []string{"accepted", "payment_pending", "paid", "shipped", "delivered"} {
		w, env = s.setStatus(t, s.seller, order.ID, status)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	var delivered model.Order
	require.NoError(t, json.Unmarshal(env.Data, &delivered))
	assert.Equal(t, model.OrderStatusDelivered, delivered.Status)
	assert.Len(t, delivered.Transactions, 3)
}

func TestUpdateOrderStatusEndpoint_InsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	order := s.placeOrder(t, "100") // 25000 > 20000

	s.setStatus(t, s.seller, order.ID, model.OrderStatusPaymentPending)
	w, env := s.setStatus(t, s.seller, order.ID, model.OrderStatusPaid)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient_balance", env.Kind)
}

func TestOrderReadEndpoints(t *testing.T) {
	s := newTestServer(t)
	order := s.placeOrder(t, "10")
	s.placeOrder(t, "20")
	s.placeOrder(t, "30")

	w, _ := s.do(t, http.MethodGet, "/api/v1/orders/"+strconv.FormatInt(order.ID, 10), s.seller, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/v1/orders/buyer/"+strconv.FormatInt(s.buyer.ID, 10)+"?page=1&page_size=2", s.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items    []model.Order `json:"items"`
		Total    int64         `json:"total"`
		Page     int           `json:"page"`
		PageSize int           `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.PageSize)

	w, _ = s.do(t, http.MethodGet, "/api/v1/orders/buyer/"+strconv.FormatInt(s.buyer.ID, 10), s.seller, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/orders/seller/"+strconv.FormatInt(s.seller.ID, 10)+"?page_size=1000", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/orders/seller/"+strconv.FormatInt(s.seller.ID, 10)+"?page=0", s.seller, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "page", env.Field)
}

func TestWalletEndpoints(t *testing.T) {
	s := newTestServer(t)
	sellerPath := "/api/v1/wallet/" + strconv.FormatInt(s.seller.ID, 10)

	w, _ := s.do(t, http.MethodPost, "/api/v1/wallet/transactions", s.seller, map[string]interface{}{
		"userId": s.seller.ID, "type": "deposit", "amount": "100.25", "currency": "ngn",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodGet, sellerPath, s.seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &wallet))
	assert.Equal(t, "100.25", wallet["walletBalance"])
	assert.Equal(t, "0.00", wallet["escrowBalance"])

	w, env = s.do(t, http.MethodPost, "/api/v1/wallet/transactions", s.seller, map[string]interface{}{
		"userId": s.seller.ID, "type": "withdrawal", "amount": "500.00",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient_balance", env.Kind)

	w, env = s.do(t, http.MethodPost, "/api/v1/wallet/transactions", s.seller, map[string]interface{}{
		"userId": s.seller.ID, "type": "deposit", "amount": "1.001",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", env.Field)

	w, _ = s.do(t, http.MethodPost, "/api/v1/wallet/transactions", s.seller, map[string]interface{}{
		"userId": s.seller.ID, "type": "bonus", "amount": "1.00",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, sellerPath, s.buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(t, http.MethodGet, sellerPath+"/transactions", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderIdempotencyKey)
}
