package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/messaging"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type acceptAll struct{}

func (acceptAll) Send(ctx context.Context, n *types.Notification) service.DeliveryResult {
	return service.DeliveryResult{Success: true, ProviderRef: "test-" + n.Recipient}
}

type testEnv struct {
	app    *fiber.App
	store  *repository.MemoryStore
	events *OrderEventHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()

	alerts := service.NewAlertService(store, nil, logger)
	ledger := service.NewStockLedger(store, alerts, logger)
	channels := map[types.NotificationType]service.Channel{
		types.NotificationTypeEmail: acceptAll{},
		types.NotificationTypeSMS:   acceptAll{},
		types.NotificationTypePush:  acceptAll{},
	}
	notifications := service.NewNotificationService(store, channels, logger)

	inventory := NewInventoryHandler(ledger, alerts,
		service.NewRestockService(store, logger),
		service.NewReportService(store, 10, logger),
		logger)
	notify := NewNotificationHandler(notifications, logger)

	app := fiber.New()
	app.Use(auth.Middleware())
	api := app.Group("/api/v1")
	api.Get("/health", inventory.HealthCheck)
	inventory.RegisterRoutes(api)
	notify.RegisterRoutes(api)

	return &testEnv{
		app:    app,
		store:  store,
		events: NewOrderEventHandler(service.NewOrderHooks(ledger, logger), notifications, logger),
	}
}

func (e *testEnv) addProduct(name string, stock int) types.Product {
	p := types.Product{ID: uuid.New(), Name: name, Stock: stock, Price: decimal.NewFromInt(2), IsActive: true}
	e.store.PutProduct(p)
	return p
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, path string, caller *auth.Caller, body interface{}) (int, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(auth.HeaderUserID, caller.UID)
		req.Header.Set(auth.HeaderRole, caller.Role)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

var (
	adminCaller    = &auth.Caller{UID: "admin-1", Role: auth.RoleAdmin}
	customerCaller = &auth.Caller{UID: "customer-1", Role: "customer"}
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
}

func TestUpdateStockEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := env.addProduct("Mug", 12)
	body := map[string]interface{}{
		"product_id": product.ID.String(),
		"quantity":   5,
		"operation":  "decrement",
	}

	status, resp := env.do(t, http.MethodPost, "/api/v1/stock/update", nil, body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/api/v1/stock/update", customerCaller, body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/api/v1/stock/update", adminCaller, body)
	require.Equal(t, http.StatusOK, status)
	var result service.StockChangeResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 12, result.PreviousStock)
	assert.Equal(t, 7, result.NewStock)
}

func TestUpdateStockEndpointValidation(t *testing.T) {
	env := newTestEnv(t)
	product := env.addProduct("Mug", 12)

	status, _ := env.do(t, http.MethodPost, "/api/v1/stock/update", adminCaller, map[string]interface{}{
		"product_id": "nope", "quantity": 1, "operation": "set",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/stock/update", adminCaller, map[string]interface{}{
		"product_id": product.ID.String(), "operation": "set",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := env.do(t, http.MethodPost, "/api/v1/stock/update", adminCaller, map[string]interface{}{
		"product_id": uuid.NewString(), "quantity": 1, "operation": "set",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	env := newTestEnv(t)
	product := env.addProduct("Mug", 12)
	env.store.FailCommits(assert.AnError)

	status, resp := env.do(t, http.MethodPost, "/api/v1/stock/update", adminCaller, map[string]interface{}{
		"product_id": product.ID.String(), "quantity": 1, "operation": "set",
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", resp.Message)
	assert.NotContains(t, resp.Message, assert.AnError.Error())
}

func TestBulkUpdateStockEndpoint(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 10)

	status, resp := env.do(t, http.MethodPost, "/api/v1/stock/bulk-update", adminCaller, map[string]interface{}{
		"updates": []map[string]interface{}{
			{"product_id": mug.ID.String(), "quantity": 4, "operation": "increment"},
			{"product_id": uuid.NewString(), "quantity": 4, "operation": "increment"},
		},
	})
	require.Equal(t, http.StatusOK, status)

	var result service.BulkStockResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.TotalUpdated)
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
}

func TestSetStockAlertAndReportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 4)
	env.addProduct("Bowl", 40)

	status, _ := env.do(t, http.MethodPost, "/api/v1/stock/alerts", adminCaller, map[string]interface{}{
		"product_id": mug.ID.String(), "threshold": 5,
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/stock/alerts", adminCaller, map[string]interface{}{
		"product_id": mug.ID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := env.do(t, http.MethodGet, "/api/v1/inventory/report", adminCaller, nil)
	require.Equal(t, http.StatusOK, status)
	var report service.InventoryReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	require.Len(t, report.Products, 2)
	assert.Equal(t, "Mug", report.Products[0].Name)
	assert.Equal(t, 1, report.Summary.LowStock)

	status, _ = env.do(t, http.MethodGet, "/api/v1/inventory/report", customerCaller, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateRestockRequestEndpoint(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 2)

	status, resp := env.do(t, http.MethodPost, "/api/v1/restock-requests", customerCaller, map[string]interface{}{
		"product_id": mug.ID.String(), "requested_quantity": 20, "priority": "urgent",
	})
	require.Equal(t, http.StatusCreated, status)

	var request types.RestockRequest
	require.NoError(t, json.Unmarshal(resp.Data, &request))
	assert.Equal(t, types.RestockPriorityUrgent, request.Priority)
	assert.Equal(t, 2, request.CurrentStock)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/v1/notifications", customerCaller, map[string]interface{}{
		"type": "sms", "recipient": "+15550100", "message": "Hi",
	})
	require.Equal(t, http.StatusOK, status)
	var sent types.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &sent))
	assert.Equal(t, types.NotificationStatusSent, sent.Status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/notifications/bulk", customerCaller, map[string]interface{}{
		"type": "sms", "recipients": []string{"a"}, "message": "Hi",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = env.do(t, http.MethodPost, "/api/v1/notifications/bulk", adminCaller, map[string]interface{}{
		"type": "push", "recipients": []string{"d1", "d2"}, "message": "Sale",
	})
	require.Equal(t, http.StatusOK, status)
	var bulk service.BulkNotificationResult
	require.NoError(t, json.Unmarshal(resp.Data, &bulk))
	assert.Equal(t, 2, bulk.TotalSent)

	status, resp = env.do(t, http.MethodGet, "/api/v1/notifications?limit=10", customerCaller, nil)
	require.Equal(t, http.StatusOK, status)
	var history NotificationHistoryResponse
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Equal(t, 1, history.Count)

	status, resp = env.do(t, http.MethodGet, "/api/v1/notifications?type=push", adminCaller, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Equal(t, 2, history.Count)
}

func TestHandleOrderEventLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 10)
	order := &types.Order{
		ID:     uuid.New(),
		Items:  []types.OrderItem{{ProductID: mug.ID, Quantity: 3}},
		Status: types.OrderStatusPending,
	}
	ctx := context.Background()

	created := events.OrderEvent{ID: uuid.New(), Type: events.OrderCreatedEvent, OrderID: order.ID, After: order, Timestamp: time.Now()}
	require.NoError(t, env.events.HandleOrderEvent(ctx, created))
	require.NoError(t, env.events.HandleOrderEvent(ctx, created))

	stored, err := env.store.GetProduct(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Stock)

	cancelled := *order
	cancelled.Status = types.OrderStatusCancelled
	updated := events.OrderEvent{
		ID:            uuid.New(),
		Type:          events.OrderUpdatedEvent,
		OrderID:       order.ID,
		Before:        order,
		After:         &cancelled,
		CustomerEmail: "ada@example.com",
	}
	require.NoError(t, env.events.HandleOrderEvent(ctx, updated))
	require.NoError(t, env.events.HandleOrderEvent(ctx, updated))

	stored, err = env.store.GetProduct(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Stock)

	emails, err := env.store.ListNotifications(ctx, repository.NotificationQuery{Type: types.NotificationTypeEmail})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "ada@example.com", emails[0].Recipient)
	assert.Equal(t, auth.SystemActor, emails[0].CreatedBy)
}

func TestHandleOrderEventReportsTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 10)
	order := &types.Order{ID: uuid.New(), Items: []types.OrderItem{{ProductID: mug.ID, Quantity: 1}}}
	env.store.FailCommits(assert.AnError)

	err := env.events.HandleOrderEvent(context.Background(), events.OrderEvent{Type: events.OrderCreatedEvent, After: order})
	assert.Error(t, err)

	env.store.FailCommits(nil)
	missing := &types.Order{ID: uuid.New(), Items: []types.OrderItem{{ProductID: uuid.New(), Quantity: 1}}}
	assert.NoError(t, env.events.HandleOrderEvent(context.Background(), events.OrderEvent{Type: events.OrderCreatedEvent, After: missing}))

	assert.NoError(t, env.events.HandleOrderEvent(context.Background(), events.OrderEvent{Type: "order.deleted", After: order}))
}

func TestHandleDecodedOrderEventsWithEnvelopeIDs(t *testing.T) {
	env := newTestEnv(t)
	mug := env.addProduct("Mug", 20)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		body := []byte(`{"event_type":"order.created","order_id":"` + uuid.New().String() + `",` +
			`"after":{"status":"pending","items":[{"product_id":"` + mug.ID.String() + `","quantity":3}]}}`)
		event, err := messaging.DecodeOrderEvent(body)
		require.NoError(t, err)
		require.NoError(t, env.events.HandleOrderEvent(ctx, event))
	}

	stored, err := env.store.GetProduct(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, stored.Stock)
	assert.Len(t, env.store.Movements(), 2)
}

func TestRoleChecksRunBeforeBodyValidation(t *testing.T) {
	env := newTestEnv(t)
	bad := map[string]interface{}{"product_id": "not-a-uuid"}

	adminRoutes := []string{"/api/v1/stock/update", "/api/v1/stock/bulk-update", "/api/v1/stock/alerts", "/api/v1/notifications/bulk"}
	for _, path := range adminRoutes {
		status, _ := env.do(t, http.MethodPost, path, nil, bad)
		assert.Equal(t, http.StatusUnauthorized, status, path)

		status, _ = env.do(t, http.MethodPost, path, customerCaller, bad)
		assert.Equal(t, http.StatusForbidden, status, path)

		status, _ = env.do(t, http.MethodPost, path, adminCaller, bad)
		assert.Equal(t, http.StatusBadRequest, status, path)
	}

	for _, path := range []string{"/api/v1/restock-requests", "/api/v1/notifications"} {
		status, _ := env.do(t, http.MethodPost, path, nil, bad)
		assert.Equal(t, http.StatusUnauthorized, status, path)

		status, _ = env.do(t, http.MethodPost, path, customerCaller, bad)
		assert.Equal(t, http.StatusBadRequest, status, path)
	}
}
