package domain

import (
	"fmt"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

type ProductAggregate struct {
	*types.Product
}

// ComputeNewStock applies op to current. Decrements clamp at zero.
func ComputeNewStock(current, quantity int, op types.StockOperation) (int, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("quantity must be non-negative, got %d", quantity)
	}
	switch op {
	case types.StockOperationSet:
		return quantity, nil
	case types.StockOperationIncrement:
		return current + quantity, nil
	case types.StockOperationDecrement:
		if quantity > current {
			return 0, nil
		}
		return current - quantity, nil
	default:
		return 0, fmt.Errorf("invalid stock operation: %q", op)
	}
}

// ApplyStockChange mutates the product stock and returns the matching
// movement. The product is left unchanged on error.
func (p *ProductAggregate) ApplyStockChange(op types.StockOperation, quantity int, reason, actor string) (*types.StockMovement, error) {
	newStock, err := ComputeNewStock(p.Stock, quantity, op)
	if err != nil {
		return nil, err
	}

	movement := &types.StockMovement{
		ID:            uuid.New(),
		ProductID:     p.ID,
		PreviousStock: p.Stock,
		NewStock:      newStock,
		Quantity:      newStock - p.Stock,
		Operation:     op,
		Reason:        reason,
		PerformedBy:   actor,
	}

	p.Stock = newStock
	p.UpdatedBy = actor
	return movement, nil
}

// MovementKey builds the idempotency key for a stock movement caused by an
// order event.
func MovementKey(orderID, productID uuid.UUID, phase string) string {
	return fmt.Sprintf("order:%s:%s:%s", orderID, productID, phase)
}

// EvaluateLowStock reports whether stock crosses an active threshold and
// with which priority.
func EvaluateLowStock(alert *types.StockAlert, stock int) (types.AlertPriority, bool) {
	if alert == nil || !alert.IsActive || stock > alert.Threshold {
		return "", false
	}
	if stock == 0 {
		return types.AlertPriorityHigh, true
	}
	return types.AlertPriorityMedium, true
}

func NewInventoryAlert(product *types.Product, threshold int, priority types.AlertPriority) *types.InventoryAlert {
	return &types.InventoryAlert{
		ID:           uuid.New(),
		Type:         types.InventoryAlertTypeLowStock,
		ProductID:    product.ID,
		ProductName:  product.Name,
		CurrentStock: product.Stock,
		Threshold:    threshold,
		Priority:     priority,
	}
}

func NewRestockRequest(product *types.Product, quantity int, priority types.RestockPriority, notes, requestedBy string) *types.RestockRequest {
	return &types.RestockRequest{
		ID:                uuid.New(),
		ProductID:         product.ID,
		ProductName:       product.Name,
		CurrentStock:      product.Stock,
		RequestedQuantity: quantity,
		Priority:          priority,
		Status:            types.RestockStatusPending,
		Notes:             notes,
		RequestedBy:       requestedBy,
	}
}
