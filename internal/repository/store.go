package repository

import (
	"context"
	"errors"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

// ErrNotFound is returned by single-document reads when no document matches.
var ErrNotFound = errors.New("document not found")

// ErrDuplicateMovement is returned by Commit when a staged movement reuses
// an idempotency key that is already recorded.
var ErrDuplicateMovement = errors.New("stock movement already applied")

// MaxBatchWrites bounds the number of writes committed in one batch. A bulk
// stock update stages a product write and a movement per item.
const MaxBatchWrites = 1000

// Store is the shared document store used by every handler. Reads see the
// latest committed state; there is no read isolation across a batch.
type Store interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	ListActiveProducts(ctx context.Context) ([]*types.Product, error)
	GetStockAlert(ctx context.Context, productID uuid.UUID) (*types.StockAlert, error)
	ListActiveStockAlerts(ctx context.Context) ([]*types.StockAlert, error)
	MovementExists(ctx context.Context, idempotencyKey string) (bool, error)
	ListNotifications(ctx context.Context, query NotificationQuery) ([]*types.Notification, error)
	NewBatch() Batch
}

// Batch stages writes that are committed all-or-nothing. Commit assigns
// server timestamps to the staged documents.
type Batch interface {
	UpdateProductStock(product *types.Product)
	CreateStockMovement(movement *types.StockMovement)
	UpsertStockAlert(alert *types.StockAlert)
	CreateInventoryAlert(alert *types.InventoryAlert)
	CreateRestockRequest(request *types.RestockRequest)
	SaveNotification(notification *types.Notification)
	Size() int
	Commit(ctx context.Context) error
}

type NotificationQuery struct {
	Type      types.NotificationType
	Status    types.NotificationStatus
	CreatedBy string
	Limit     int
}

// writeKind tags staged writes so implementations can replay them in order.
type writeKind int

const (
	writeProductStock writeKind = iota
	writeStockMovement
	writeStockAlert
	writeInventoryAlert
	writeRestockRequest
	writeNotification
)

type pendingWrite struct {
	kind         writeKind
	product      *types.Product
	movement     *types.StockMovement
	stockAlert   *types.StockAlert
	alert        *types.InventoryAlert
	restock      *types.RestockRequest
	notification *types.Notification
}

// writeSet is the staging list shared by all Batch implementations.
type writeSet struct {
	writes []pendingWrite
}

func (w *writeSet) UpdateProductStock(product *types.Product) {
	w.writes = append(w.writes, pendingWrite{kind: writeProductStock, product: product})
}

func (w *writeSet) CreateStockMovement(movement *types.StockMovement) {
	w.writes = append(w.writes, pendingWrite{kind: writeStockMovement, movement: movement})
}

func (w *writeSet) UpsertStockAlert(alert *types.StockAlert) {
	w.writes = append(w.writes, pendingWrite{kind: writeStockAlert, stockAlert: alert})
}

func (w *writeSet) CreateInventoryAlert(alert *types.InventoryAlert) {
	w.writes = append(w.writes, pendingWrite{kind: writeInventoryAlert, alert: alert})
}

func (w *writeSet) CreateRestockRequest(request *types.RestockRequest) {
	w.writes = append(w.writes, pendingWrite{kind: writeRestockRequest, restock: request})
}

func (w *writeSet) SaveNotification(notification *types.Notification) {
	w.writes = append(w.writes, pendingWrite{kind: writeNotification, notification: notification})
}

func (w *writeSet) Size() int {
	return len(w.writes)
}

func (w *writeSet) validate() error {
	if len(w.writes) > MaxBatchWrites {
		return errors.New("batch exceeds maximum number of writes")
	}
	return nil
}
