package domain

import (
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

var orderTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.OrderStatusPending:    {types.OrderStatusConfirmed, types.OrderStatusCancelled},
	types.OrderStatusConfirmed:  {types.OrderStatusProcessing, types.OrderStatusCancelled},
	types.OrderStatusProcessing: {types.OrderStatusShipped, types.OrderStatusCancelled},
	types.OrderStatusShipped:    {types.OrderStatusDelivered, types.OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
// Delivered and cancelled are terminal.
func CanTransition(from, to types.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCancellation is true only for the first observed transition into cancelled.
func IsCancellation(before, after *types.Order) bool {
	if after == nil || after.Status != types.OrderStatusCancelled {
		return false
	}
	return before == nil || before.Status != types.OrderStatusCancelled
}

type LineQuantity struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLineItems sums quantities per product, keeping first-seen order.
func MergeLineItems(items []types.OrderItem) []LineQuantity {
	index := make(map[uuid.UUID]int, len(items))
	var merged []LineQuantity
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, LineQuantity{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return merged
}
