package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store keyed by document id. It backs tests
// and STORE_DRIVER=memory.
type MemoryStore struct {
	mu sync.RWMutex

	products        map[uuid.UUID]types.Product
	movements       []types.StockMovement
	movementKeys    map[string]struct{}
	stockAlerts     map[uuid.UUID]types.StockAlert
	inventoryAlerts []types.InventoryAlert
	restocks        map[uuid.UUID]types.RestockRequest
	notifications   map[uuid.UUID]types.Notification

	now       func() time.Time
	commits   int
	commitErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:      make(map[uuid.UUID]types.Product),
		movementKeys:  make(map[string]struct{}),
		stockAlerts:   make(map[uuid.UUID]types.StockAlert),
		restocks:      make(map[uuid.UUID]types.RestockRequest),
		notifications: make(map[uuid.UUID]types.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the server timestamp source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailCommits makes every following Commit return err. Pass nil to reset.
func (s *MemoryStore) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// PutProduct inserts or replaces a product document.
func (s *MemoryStore) PutProduct(product types.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *MemoryStore) PutStockAlert(alert types.StockAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockAlerts[alert.ProductID] = alert
}

func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryStore) Movements() []types.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.StockMovement(nil), s.movements...)
}

func (s *MemoryStore) InventoryAlerts() []types.InventoryAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.InventoryAlert(nil), s.inventoryAlerts...)
}

func (s *MemoryStore) RestockRequests() []types.RestockRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RestockRequest, 0, len(s.restocks))
	for _, r := range s.restocks {
		out = append(out, r)
	}
	return out
}

func (s *MemoryStore) GetNotification(id uuid.UUID) (types.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	return n, ok
}

func (s *MemoryStore) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &product, nil
}

func (s *MemoryStore) ListActiveProducts(ctx context.Context) ([]*types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Product
	for _, p := range s.products {
		if p.IsActive {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetStockAlert(ctx context.Context, productID uuid.UUID) (*types.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.stockAlerts[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return &alert, nil
}

func (s *MemoryStore) ListActiveStockAlerts(ctx context.Context) ([]*types.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.StockAlert
	for _, a := range s.stockAlerts {
		if a.IsActive {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (s *MemoryStore) MovementExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.movementKeys[idempotencyKey]
	return ok, nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, query NotificationQuery) ([]*types.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Notification
	for _, n := range s.notifications {
		if query.Type != "" && n.Type != query.Type {
			continue
		}
		if query.Status != "" && n.Status != query.Status {
			continue
		}
		if query.CreatedBy != "" && n.CreatedBy != query.CreatedBy {
			continue
		}
		n := n
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

type memoryBatch struct {
	writeSet
	store *MemoryStore
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.validate(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return s.commitErr
	}

	// Check every precondition before applying anything.
	for _, w := range b.writes {
		switch w.kind {
		case writeProductStock:
			if _, ok := s.products[w.product.ID]; !ok {
				return ErrNotFound
			}
		case writeStockMovement:
			if key := w.movement.IdempotencyKey; key != "" {
				if _, dup := s.movementKeys[key]; dup {
					return ErrDuplicateMovement
				}
			}
		}
	}

	now := s.now()
	for _, w := range b.writes {
		switch w.kind {
		case writeProductStock:
			current := s.products[w.product.ID]
			current.Stock = w.product.Stock
			current.UpdatedBy = w.product.UpdatedBy
			current.UpdatedAt = now
			s.products[current.ID] = current
			w.product.UpdatedAt = now
		case writeStockMovement:
			w.movement.CreatedAt = now
			s.movements = append(s.movements, *w.movement)
			if w.movement.IdempotencyKey != "" {
				s.movementKeys[w.movement.IdempotencyKey] = struct{}{}
			}
		case writeStockAlert:
			w.stockAlert.UpdatedAt = now
			s.stockAlerts[w.stockAlert.ProductID] = *w.stockAlert
		case writeInventoryAlert:
			w.alert.CreatedAt = now
			s.inventoryAlerts = append(s.inventoryAlerts, *w.alert)
		case writeRestockRequest:
			if w.restock.CreatedAt.IsZero() {
				w.restock.CreatedAt = now
			}
			w.restock.UpdatedAt = now
			s.restocks[w.restock.ID] = *w.restock
		case writeNotification:
			if w.notification.CreatedAt.IsZero() {
				w.notification.CreatedAt = now
			}
			s.notifications[w.notification.ID] = copyNotification(*w.notification)
		}
	}
	s.commits++
	return nil
}

func copyNotification(n types.Notification) types.Notification {
	if n.Data != nil {
		data := make(map[string]string, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	if n.SentAt != nil {
		sentAt := *n.SentAt
		n.SentAt = &sentAt
	}
	return n
}
