package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/config"
	"github.com/example/bloomstem/internal/handlers"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/store"
	"github.com/example/bloomstem/internal/utils"
)

const (
	jwtSecret = "test-secret"
	adminID   = "42"
	customer  = "1001"
)

type nullMessenger struct {
	mu    sync.Mutex
	count int
}

func (m *nullMessenger) SendMessage(context.Context, string, string) error {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	return nil
}

type testServer struct {
	app    *fiber.App
	ledger *services.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	now := time.Date(2026, 5, 10, 9, 30, 0, 0, loc)
	log := zap.NewNop()

	cfg := &config.Config{JWTSecret: jwtSecret, StoreTimeout: time.Second}
	kv := store.NewMemoryStore()
	pricing := services.DefaultPricing()
	schedule, err := services.NewSlotSchedule("08:00", "22:00", 2*time.Hour, time.Hour, loc)
	require.NoError(t, err)

	notifier := services.NewNotifier(&nullMessenger{}, services.NotifierConfig{StaffChatID: "staff"}, log)
	notifier.Start()
	t.Cleanup(notifier.Close)

	products := catalog.Default()
	gate := services.NewAdminGate([]string{adminID})
	ledger := services.NewLedger(kv, pricing, log)
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Store:    kv,
		Catalog:  products,
		Ledger:   ledger,
		Notifier: notifier,
		Schedule: schedule,
		Pricing:  pricing,
		Gate:     gate,
		NodeID:   3,
		Log:      log,
		Clock:    func() time.Time { return now },
	})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	Register(app, cfg, Deps{
		Store:    kv,
		Catalog:  products,
		Orders:   orders,
		Admin:    services.NewAdminService(orders, ledger, gate, log),
		Ledger:   ledger,
		Reviews:  services.NewReviewService(kv, products, log),
		Notifier: notifier,
		Log:      log,
	})

	return &testServer{app: app, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func customerToken(t *testing.T, id string) string {
	t.Helper()
	token, err := utils.GenerateToken(jwtSecret, id, "Анна", time.Hour)
	require.NoError(t, err)
	return token
}

func orderBody(extra string) string {
	return `{
		"items": [{"product_id": "1", "quantity": 1}],
		"contact": {"name": "Анна", "phone": "+79990001122"},
		"delivery": {"city": "Москва", "street": "Тверская", "house": "7", "date": "2026-05-11", "time_slot": "12:00-14:00"},
		"recipient": {"same_as_orderer": true}` + extra + `
	}`
}

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/orders", orderBody(`, "customerId": "1001"`), "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, orderID, body["order_id"])

	data := body["data"].(map[string]any)
	amounts := data["amounts"].(map[string]any)
	assert.Equal(t, float64(5300), amounts["total"])
	assert.Equal(t, "Принят", data["status_label"])

	status, body = s.do(t, http.MethodGet, "/api/history?customerId=1001", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)
}

func TestGetOrderVisibility(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(t, http.MethodPost, "/api/orders", orderBody(`, "customer_id": 1001`), "")
	orderID := body["orderId"].(string)

	_, body = s.do(t, http.MethodPost, "/api/orders", orderBody(""), "")
	anonymousID := body["orderId"].(string)

	tests := []struct {
		name   string
		id     string
		query  string
		token  string
		status int
	}{
		{name: "owner token", id: orderID, token: customerToken(t, customer), status: http.StatusOK},
		{name: "owner query", id: orderID, query: "?customerId=1001", status: http.StatusOK},
		{name: "no credentials", id: orderID, status: http.StatusNotFound},
		{name: "other customer query", id: orderID, query: "?customer_id=2002", status: http.StatusNotFound},
		{name: "other customer token", id: orderID, token: customerToken(t, "2002"), status: http.StatusNotFound},
		{name: "token with other query", id: orderID, query: "?customerId=1001", token: customerToken(t, "2002"), status: http.StatusNotFound},
		{name: "anonymous order", id: anonymousID, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodGet, "/api/orders/"+tt.id+tt.query, "", tt.token)
			require.Equal(t, tt.status, status, body)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.id, body["data"].(map[string]any)["id"])
			}
		})
	}
}

func TestCreateOrderRejections(t *testing.T) {
	s := newTestServer(t)
	token := customerToken(t, customer)

	tests := []struct {
		name   string
		body   string
		token  string
		status int
	}{
		{name: "empty cart", body: `{"items": [], "contact": {"name": "a", "phone": "1"}}`, status: http.StatusBadRequest},
		{name: "unknown field", body: orderBody(`, "coupon": "FREE"`), status: http.StatusBadRequest},
		{name: "stale slot", body: strings.Replace(strings.Replace(orderBody(""), "2026-05-11", "2026-05-10", 1), "12:00-14:00", "08:00-10:00", 1), status: http.StatusBadRequest},
		{name: "points without token", body: orderBody(`, "customer_id": "1001", "use_points": true`), status: http.StatusUnauthorized},
		{name: "token mismatch", body: orderBody(`, "customer_id": "7"`), token: token, status: http.StatusUnauthorized},
		{name: "too many points", body: orderBody(`, "points": 500`), token: token, status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/orders", tt.body, tt.token)
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRedeemPointsWithToken(t *testing.T) {
	s := newTestServer(t)
	token := customerToken(t, customer)

	_, err := s.ledger.Override(context.Background(), customer, 1000, adminID)
	require.NoError(t, err)

	status, body := s.do(t, http.MethodPost, "/api/orders", orderBody(`, "use_points": true`), token)
	require.Equal(t, http.StatusCreated, status, body)
	amounts := body["data"].(map[string]any)["amounts"].(map[string]any)
	assert.Equal(t, float64(300), amounts["loyalty_discount_applied"])
	assert.Equal(t, float64(5000), amounts["total"])

	status, body = s.do(t, http.MethodGet, "/api/points", "", token)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(745), data["balance"])
	assert.Equal(t, float64(223), data["redeemable"])
	assert.Len(t, data["transactions"], 3)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(t, http.MethodPost, "/api/orders", orderBody(`, "customerId": "1001"`), "")
	orderID := body["orderId"].(string)

	status, _ := s.do(t, http.MethodGet, "/api/admin/orders?admin_id=999", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/api/admin/orders?admin_id=42&status=received", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.do(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", `{"status": "packed", "admin_id": "999"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/admin/orders/missing/status", `{"status": "packed", "admin_id": "999"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/admin/orders/missing/status", `{"status": "packed", "admin_id": "42"}`, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", `{"status": "Заказ собран", "admin_id": "42"}`, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "packed", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodGet, "/api/admin/users?adminId=42", "", "")
	require.Equal(t, http.StatusOK, status)
	users := body["data"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, float64(45), users[0].(map[string]any)["points"])

	status, body = s.do(t, http.MethodGet, "/api/admin/users/1001/orders?admin_id=42", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)

	status, body = s.do(t, http.MethodPost, "/api/admin/users/1001/points", `{"points": 500, "admin_id": "42"}`, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(500), body["data"].(map[string]any)["balance"])

	status, _ = s.do(t, http.MethodPost, "/api/admin/users/1001/points", `{"admin_id": "42"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", `{"status": "out_for_delivery", "adminId": 42}`, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "out_for_delivery", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/admin/users/1001/points", `{"points": 5, "adminId": "42"}`, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(5), body["data"].(map[string]any)["balance"])

	status, _ = s.do(t, http.MethodPost, "/api/admin/users/1001/points", `{"points": 5, "adminId": true}`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/api/admin/dashboard?admin_id=42", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["total_orders"])
}

func TestDeliverySlotsEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/delivery/slots?date=2026-05-10", "", "")
	require.Equal(t, http.StatusOK, status)
	slots := body["slots"].([]any)
	require.Len(t, slots, 5)
	assert.Equal(t, "12:00-14:00", slots[0].(map[string]any)["label"])

	status, body = s.do(t, http.MethodGet, "/api/delivery/slots?date=2026-05-01", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["slots"])

	status, body = s.do(t, http.MethodGet, "/api/delivery/slots", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2026-05-10", body["date"])

	status, _ = s.do(t, http.MethodGet, "/api/delivery/slots?date=soon", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProductsAndReviews(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/products?category="+url.QueryEscape("Тюльпаны"), "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, _ = s.do(t, http.MethodGet, "/api/products/404", "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/api/products/1/reviews", `{"rating": 9}`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/api/products/1/reviews", `{"rating": 5, "text": "Свежие!"}`, customerToken(t, customer))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Анна", body["data"].(map[string]any)["author"])

	status, body = s.do(t, http.MethodGet, "/api/products/1/reviews", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, http.MethodGet, "/api/products/1", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), body["data"].(map[string]any)["rating"])
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["store"])
	assert.Contains(t, body, "notifications")
}
