package events

import (
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

type OrderEventType string

const (
	OrderCreatedEvent OrderEventType = "order.created"
	OrderUpdatedEvent OrderEventType = "order.updated"
)

// OrderEvent is a document-level change on the orders collection. Before is
// nil for creations. Delivery is at-least-once.
type OrderEvent struct {
	ID            uuid.UUID      `json:"id"`
	Type          OrderEventType `json:"event_type"`
	OrderID       uuid.UUID      `json:"order_id"`
	Before        *types.Order   `json:"before,omitempty"`
	After         *types.Order   `json:"after"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Service       string         `json:"service"`
}

type InventoryEventType string

const LowStockEvent InventoryEventType = "inventory.stock.low"

type InventoryEvent struct {
	ID        uuid.UUID          `json:"id"`
	Type      InventoryEventType `json:"event_type"`
	Service   string             `json:"service"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   interface{}        `json:"payload"`
}

type LowStockPayload struct {
	Alert types.InventoryAlert `json:"alert"`
}
