package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	CategoryID     string           `json:"category_id,omitempty"`
	Stock          int              `json:"stock"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	IsActive       bool             `json:"is_active"`
	UpdatedBy      string           `json:"updated_by,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type StockOperation string

const (
	StockOperationSet       StockOperation = "set"
	StockOperationIncrement StockOperation = "increment"
	StockOperationDecrement StockOperation = "decrement"
)

func (o StockOperation) Valid() bool {
	switch o {
	case StockOperationSet, StockOperationIncrement, StockOperationDecrement:
		return true
	}
	return false
}

// StockMovement is the audit entry written alongside every stock change.
// Quantity is the signed delta NewStock - PreviousStock.
type StockMovement struct {
	ID             uuid.UUID      `json:"id"`
	ProductID      uuid.UUID      `json:"product_id"`
	PreviousStock  int            `json:"previous_stock"`
	NewStock       int            `json:"new_stock"`
	Quantity       int            `json:"quantity"`
	Operation      StockOperation `json:"operation"`
	Reason         string         `json:"reason"`
	PerformedBy    string         `json:"performed_by"`
	OrderID        *uuid.UUID     `json:"order_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type StockAlert struct {
	ProductID uuid.UUID `json:"product_id"`
	Threshold int       `json:"threshold"`
	IsActive  bool      `json:"is_active"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AlertPriority string

const (
	AlertPriorityMedium AlertPriority = "medium"
	AlertPriorityHigh   AlertPriority = "high"
)

const InventoryAlertTypeLowStock = "low_stock"

type InventoryAlert struct {
	ID           uuid.UUID     `json:"id"`
	Type         string        `json:"type"`
	ProductID    uuid.UUID     `json:"product_id"`
	ProductName  string        `json:"product_name"`
	CurrentStock int           `json:"current_stock"`
	Threshold    int           `json:"threshold"`
	Priority     AlertPriority `json:"priority"`
	Read         bool          `json:"read"`
	CreatedAt    time.Time     `json:"created_at"`
}

type RestockPriority string

const (
	RestockPriorityLow    RestockPriority = "low"
	RestockPriorityMedium RestockPriority = "medium"
	RestockPriorityHigh   RestockPriority = "high"
	RestockPriorityUrgent RestockPriority = "urgent"
)

func (p RestockPriority) Valid() bool {
	switch p {
	case RestockPriorityLow, RestockPriorityMedium, RestockPriorityHigh, RestockPriorityUrgent:
		return true
	}
	return false
}

type RestockStatus string

const RestockStatusPending RestockStatus = "pending"

type RestockRequest struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	CurrentStock      int             `json:"current_stock"`
	RequestedQuantity int             `json:"requested_quantity"`
	Priority          RestockPriority `json:"priority"`
	Status            RestockStatus   `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	RequestedBy       string          `json:"requested_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
