package domain

import (
	"testing"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(types.OrderStatusPending, types.OrderStatusConfirmed))
	assert.True(t, CanTransition(types.OrderStatusConfirmed, types.OrderStatusProcessing))
	assert.True(t, CanTransition(types.OrderStatusProcessing, types.OrderStatusShipped))
	assert.True(t, CanTransition(types.OrderStatusShipped, types.OrderStatusDelivered))
	assert.True(t, CanTransition(types.OrderStatusShipped, types.OrderStatusCancelled))

	assert.False(t, CanTransition(types.OrderStatusPending, types.OrderStatusShipped))
	assert.False(t, CanTransition(types.OrderStatusDelivered, types.OrderStatusCancelled))
	assert.False(t, CanTransition(types.OrderStatusCancelled, types.OrderStatusPending))
}

func TestIsCancellation(t *testing.T) {
	pending := &types.Order{Status: types.OrderStatusPending}
	cancelled := &types.Order{Status: types.OrderStatusCancelled}

	assert.True(t, IsCancellation(pending, cancelled))
	assert.False(t, IsCancellation(cancelled, cancelled))
	assert.False(t, IsCancellation(pending, &types.Order{Status: types.OrderStatusConfirmed}))
	assert.False(t, IsCancellation(pending, nil))
}

func TestMergeLineItems(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	items := []types.OrderItem{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 1},
		{ProductID: a, Quantity: 3},
	}

	merged := MergeLineItems(items)

	assert.Equal(t, []LineQuantity{{ProductID: a, Quantity: 5}, {ProductID: b, Quantity: 1}}, merged)
}
