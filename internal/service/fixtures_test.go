package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	testNow  = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	admin    = &auth.Caller{UID: "admin-1", Role: auth.RoleAdmin}
	customer = &auth.Caller{UID: "customer-1", Role: "customer"}
)

type fixture struct {
	store     *repository.MemoryStore
	publisher *recordingPublisher
	alerts    *AlertService
	ledger    *StockLedger
	hooks     *OrderHooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	store.SetClock(func() time.Time { return testNow })
	publisher := &recordingPublisher{}
	alerts := NewAlertService(store, publisher, logger)
	ledger := NewStockLedger(store, alerts, logger)
	return &fixture{
		store:     store,
		publisher: publisher,
		alerts:    alerts,
		ledger:    ledger,
		hooks:     NewOrderHooks(ledger, logger),
	}
}

func (f *fixture) addProduct(name string, stock int, price string) types.Product {
	product := types.Product{
		ID:       uuid.New(),
		Name:     name,
		Stock:    stock,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	f.store.PutProduct(product)
	return product
}

func (f *fixture) setThreshold(productID uuid.UUID, threshold int) {
	f.store.PutStockAlert(types.StockAlert{ProductID: productID, Threshold: threshold, IsActive: true})
}

func (f *fixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	product, err := f.store.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("product %s: %v", productID, err)
	}
	return product.Stock
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.InventoryEvent
	err    error
}

func (p *recordingPublisher) PublishInventoryEvent(ctx context.Context, event events.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.InventoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.InventoryEvent(nil), p.events...)
}

// fakeChannel rejects recipients listed in reject and accepts everything else.
type fakeChannel struct {
	mu     sync.Mutex
	reject map[string]bool
	sent   []string
}

func (c *fakeChannel) Send(ctx context.Context, n *types.Notification) DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject[n.Recipient] {
		return DeliveryResult{Error: "recipient rejected"}
	}
	c.sent = append(c.sent, n.Recipient)
	return DeliveryResult{Success: true, ProviderRef: "fake-" + n.Recipient}
}

type failingChecker struct{ err error }

func (c failingChecker) CheckLowStock(ctx context.Context, product *types.Product) (*types.InventoryAlert, error) {
	return nil, c.err
}
