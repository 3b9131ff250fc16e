package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	store.SetClock(func() time.Time { return fixedNow })
	return store
}

func testProduct(name string, stock int) types.Product {
	return types.Product{
		ID:       uuid.New(),
		Name:     name,
		Stock:    stock,
		Price:    decimal.NewFromInt(10),
		IsActive: true,
	}
}

func TestMemoryBatchCommitAppliesAllWrites(t *testing.T) {
	store := newTestStore(t)
	product := testProduct("Mug", 12)
	store.PutProduct(product)

	updated := product
	updated.Stock = 7
	updated.UpdatedBy = "admin-1"
	movement := &types.StockMovement{
		ID:             uuid.New(),
		ProductID:      product.ID,
		PreviousStock:  12,
		NewStock:       7,
		Quantity:       -5,
		Operation:      types.StockOperationDecrement,
		IdempotencyKey: "order:o1:p1:placed",
	}

	batch := store.NewBatch()
	batch.UpdateProductStock(&updated)
	batch.CreateStockMovement(movement)
	require.Equal(t, 2, batch.Size())
	require.NoError(t, batch.Commit(context.Background()))

	got, err := store.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
	assert.Equal(t, "admin-1", got.UpdatedBy)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	assert.Equal(t, fixedNow, movement.CreatedAt)

	exists, err := store.MovementExists(context.Background(), "order:o1:p1:placed")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, store.Movements(), 1)
	assert.Equal(t, 1, store.Commits())
}

func TestMemoryBatchCommitIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	product := testProduct("Mug", 12)
	store.PutProduct(product)

	updated := product
	updated.Stock = 20
	missing := testProduct("Ghost", 1)

	batch := store.NewBatch()
	batch.UpdateProductStock(&updated)
	batch.UpdateProductStock(&missing)
	err := batch.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Stock)
	assert.Equal(t, 0, store.Commits())
}

func TestMemoryBatchRejectsDuplicateMovementKey(t *testing.T) {
	store := newTestStore(t)
	product := testProduct("Mug", 5)
	store.PutProduct(product)

	stage := func() Batch {
		batch := store.NewBatch()
		batch.CreateStockMovement(&types.StockMovement{
			ID:             uuid.New(),
			ProductID:      product.ID,
			IdempotencyKey: "order:o1:p1:cancelled",
		})
		return batch
	}

	require.NoError(t, stage().Commit(context.Background()))
	assert.ErrorIs(t, stage().Commit(context.Background()), ErrDuplicateMovement)
	assert.Len(t, store.Movements(), 1)
}

func TestMemoryBatchRejectsOversizedBatch(t *testing.T) {
	store := newTestStore(t)
	batch := store.NewBatch()
	for i := 0; i <= MaxBatchWrites; i++ {
		batch.SaveNotification(&types.Notification{ID: uuid.New()})
	}

	assert.Error(t, batch.Commit(context.Background()))
	assert.Equal(t, 0, store.Commits())
}

func TestMemoryBatchFailCommits(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("store unavailable")
	store.FailCommits(boom)

	batch := store.NewBatch()
	batch.SaveNotification(&types.Notification{ID: uuid.New()})
	assert.ErrorIs(t, batch.Commit(context.Background()), boom)

	store.FailCommits(nil)
	assert.NoError(t, batch.Commit(context.Background()))
}

func TestMemoryBatchHonoursCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := store.NewBatch()
	batch.SaveNotification(&types.Notification{ID: uuid.New()})
	assert.ErrorIs(t, batch.Commit(ctx), context.Canceled)
}

func TestListActiveProductsSkipsInactive(t *testing.T) {
	store := newTestStore(t)
	active := testProduct("Bag", 3)
	inactive := testProduct("Apron", 3)
	inactive.IsActive = false
	store.PutProduct(active)
	store.PutProduct(inactive)
	store.PutProduct(testProduct("Apple", 1))

	products, err := store.ListActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Apple", products[0].Name)
	assert.Equal(t, "Bag", products[1].Name)
}

func TestListNotificationsFiltersAndLimits(t *testing.T) {
	store := newTestStore(t)
	batch := store.NewBatch()
	for i := 0; i < 3; i++ {
		batch.SaveNotification(&types.Notification{
			ID:        uuid.New(),
			Type:      types.NotificationTypeEmail,
			Status:    types.NotificationStatusSent,
			CreatedBy: "user-1",
			CreatedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}
	batch.SaveNotification(&types.Notification{
		ID:        uuid.New(),
		Type:      types.NotificationTypeSMS,
		Status:    types.NotificationStatusFailed,
		CreatedBy: "user-2",
	})
	require.NoError(t, batch.Commit(context.Background()))

	own, err := store.ListNotifications(context.Background(), NotificationQuery{CreatedBy: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.True(t, own[0].CreatedAt.After(own[1].CreatedAt))

	failed, err := store.ListNotifications(context.Background(), NotificationQuery{Status: types.NotificationStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "user-2", failed[0].CreatedBy)
	assert.Equal(t, fixedNow, failed[0].CreatedAt)
}

func TestStoredNotificationIsCopied(t *testing.T) {
	store := newTestStore(t)
	n := &types.Notification{ID: uuid.New(), Data: map[string]string{"orderId": "o1"}}
	batch := store.NewBatch()
	batch.SaveNotification(n)
	require.NoError(t, batch.Commit(context.Background()))

	n.Data["orderId"] = "changed"
	stored, ok := store.GetNotification(n.ID)
	require.True(t, ok)
	assert.Equal(t, "o1", stored.Data["orderId"])
}
