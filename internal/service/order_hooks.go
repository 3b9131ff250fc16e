package service

import (
	"context"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/observability"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	ReasonOrderPlaced    = "Order placed"
	ReasonOrderCancelled = "Order cancelled"

	phasePlaced    = "placed"
	phaseCancelled = "cancelled"
)

// LineItemOutcome is the per-product result of an order hook.
type LineItemOutcome struct {
	ProductID uuid.UUID
	Quantity  int
	Result    *StockChangeResult
	Err       error
}

// OrderHooks adjusts stock in response to order events. Each line item is
// committed on its own; a failed item is logged and does not undo the
// others.
type OrderHooks struct {
	ledger *StockLedger
	logger *zap.Logger
}

func NewOrderHooks(ledger *StockLedger, logger *zap.Logger) *OrderHooks {
	return &OrderHooks{
		ledger: ledger,
		logger: logger,
	}
}

// OnOrderCreated decrements stock for every product on the order.
func (h *OrderHooks) OnOrderCreated(ctx context.Context, order *types.Order) []LineItemOutcome {
	if order == nil {
		return nil
	}
	h.logger.Info("Order created, reserving stock",
		zap.String("order_id", order.ID.String()),
		zap.Int("items", len(order.Items)))

	return h.apply(ctx, "OrderHooks.OnOrderCreated", order,
		types.StockOperationDecrement, ReasonOrderPlaced, phasePlaced)
}

// OnOrderUpdated restores stock on the first transition into cancelled.
// Any other update is a no-op and returns nil.
func (h *OrderHooks) OnOrderUpdated(ctx context.Context, before, after *types.Order) []LineItemOutcome {
	if !domain.IsCancellation(before, after) {
		return nil
	}
	h.logger.Info("Order cancelled, restoring stock",
		zap.String("order_id", after.ID.String()),
		zap.Int("items", len(after.Items)))

	return h.apply(ctx, "OrderHooks.OnOrderUpdated", after,
		types.StockOperationIncrement, ReasonOrderCancelled, phaseCancelled)
}

func (h *OrderHooks) apply(ctx context.Context, spanName string, order *types.Order, op types.StockOperation, reason, phase string) []LineItemOutcome {
	ctx, span := observability.Tracer().Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("order.id", order.ID.String()),
			attribute.String("stock.operation", string(op)),
		),
	)
	defer span.End()

	orderID := order.ID
	lines := domain.MergeLineItems(order.Items)
	outcomes := make([]LineItemOutcome, 0, len(lines))

	// Movement keys are derived from the order id; without one every order
	// would collide on the same key.
	if orderID == uuid.Nil {
		err := apperrors.NewInvalidArgument("order id is required")
		h.logger.Error("Order without id, stock not adjusted",
			zap.String("operation", string(op)),
			zap.Int("lines", len(lines)))
		for _, line := range lines {
			outcomes = append(outcomes, LineItemOutcome{ProductID: line.ProductID, Quantity: line.Quantity, Err: err})
		}
		span.SetAttributes(attribute.Int("order.lines_failed", len(lines)))
		return outcomes
	}

	failed := 0

	for _, line := range lines {
		result, err := h.ledger.ApplyStockChange(ctx, StockChange{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			Operation:      op,
			Reason:         reason,
			Actor:          auth.SystemActor,
			OrderID:        &orderID,
			IdempotencyKey: domain.MovementKey(orderID, line.ProductID, phase),
		})
		if err != nil {
			failed++
			h.logger.Error("Order stock adjustment failed",
				zap.String("order_id", orderID.String()),
				zap.String("product_id", line.ProductID.String()),
				zap.Int("quantity", line.Quantity),
				zap.String("operation", string(op)),
				zap.Error(err))
		}
		outcomes = append(outcomes, LineItemOutcome{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Result:    result,
			Err:       err,
		})
	}

	span.SetAttributes(
		attribute.Int("order.lines", len(lines)),
		attribute.Int("order.lines_failed", failed),
	)
	return outcomes
}
