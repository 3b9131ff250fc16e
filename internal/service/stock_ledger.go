package service

import (
	"context"
	"errors"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/observability"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultStockReason     = "Manual stock update"
	DefaultBulkStockReason = "Bulk stock update"

	MaxBulkStockUpdates = 500
)

// LowStockChecker is run after every committed stock write.
type LowStockChecker interface {
	CheckLowStock(ctx context.Context, product *types.Product) (*types.InventoryAlert, error)
}

type StockChange struct {
	ProductID      uuid.UUID
	Quantity       int
	Operation      types.StockOperation
	Reason         string
	Actor          string
	OrderID        *uuid.UUID
	IdempotencyKey string
}

// StockChangeResult describes a committed change. Skipped is set when the
// idempotency key was already recorded and nothing was written.
type StockChangeResult struct {
	ProductID     uuid.UUID             `json:"product_id"`
	PreviousStock int                   `json:"previous_stock"`
	NewStock      int                   `json:"new_stock"`
	Movement      *types.StockMovement  `json:"movement,omitempty"`
	Alert         *types.InventoryAlert `json:"alert,omitempty"`
	Skipped       bool                  `json:"skipped,omitempty"`
}

type UpdateStockRequest struct {
	ProductID uuid.UUID
	Quantity  int
	Operation types.StockOperation
	Reason    string
}

type BulkStockUpdate struct {
	ProductID string               `json:"product_id"`
	Quantity  int                  `json:"quantity"`
	Operation types.StockOperation `json:"operation"`
}

type BulkStockRequest struct {
	Updates []BulkStockUpdate
	Reason  string
}

type BulkItemResult struct {
	ProductID     string `json:"product_id"`
	Success       bool   `json:"success"`
	PreviousStock *int   `json:"previous_stock,omitempty"`
	NewStock      *int   `json:"new_stock,omitempty"`
	Error         string `json:"error,omitempty"`
}

type BulkStockResult struct {
	Success      bool             `json:"success"`
	Results      []BulkItemResult `json:"results"`
	TotalUpdated int              `json:"total_updated"`
}

type StockLedger struct {
	store   repository.Store
	alerter LowStockChecker
	logger  *zap.Logger
}

func NewStockLedger(store repository.Store, alerter LowStockChecker, logger *zap.Logger) *StockLedger {
	return &StockLedger{
		store:   store,
		alerter: alerter,
		logger:  logger,
	}
}

// UpdateStock is the admin-facing entry point for a single stock change.
func (s *StockLedger) UpdateStock(ctx context.Context, caller *auth.Caller, req UpdateStockRequest) (*StockChangeResult, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return s.ApplyStockChange(ctx, StockChange{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Operation: req.Operation,
		Reason:    req.Reason,
		Actor:     caller.UID,
	})
}

// ApplyStockChange writes the new stock and its movement in one batch and
// then runs the low-stock check. It performs no role check.
func (s *StockLedger) ApplyStockChange(ctx context.Context, change StockChange) (*StockChangeResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "StockLedger.ApplyStockChange",
		trace.WithAttributes(
			attribute.String("product.id", change.ProductID.String()),
			attribute.String("stock.operation", string(change.Operation)),
			attribute.Int("stock.quantity", change.Quantity),
		),
	)
	defer span.End()

	result, err := s.applyStockChange(ctx, change)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("stock.new", result.NewStock),
		attribute.Bool("stock.skipped", result.Skipped),
	)
	return result, nil
}

func (s *StockLedger) applyStockChange(ctx context.Context, change StockChange) (*StockChangeResult, error) {
	if change.ProductID == uuid.Nil {
		return nil, apperrors.NewInvalidArgument("productId is required")
	}
	if change.Quantity < 0 {
		return nil, apperrors.NewInvalidArgument("Quantity must be a non-negative integer")
	}
	if !change.Operation.Valid() {
		return nil, apperrors.NewInvalidArgument("Invalid operation: %q", change.Operation)
	}
	if change.Reason == "" {
		change.Reason = DefaultStockReason
	}

	if change.IdempotencyKey != "" {
		applied, err := s.store.MovementExists(ctx, change.IdempotencyKey)
		if err != nil {
			return nil, apperrors.NewInternal("Failed to check stock movement", err)
		}
		if applied {
			s.logger.Info("Stock movement already applied, skipping",
				zap.String("product_id", change.ProductID.String()),
				zap.String("idempotency_key", change.IdempotencyKey))
			return &StockChangeResult{ProductID: change.ProductID, Skipped: true}, nil
		}
	}

	product, err := s.store.GetProduct(ctx, change.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("Product %s not found", change.ProductID)
	}
	if err != nil {
		return nil, apperrors.NewInternal("Failed to read product", err)
	}

	aggregate := &domain.ProductAggregate{Product: product}
	previous := aggregate.Stock
	movement, err := aggregate.ApplyStockChange(change.Operation, change.Quantity, change.Reason, change.Actor)
	if err != nil {
		return nil, apperrors.NewInvalidArgument("%s", err.Error())
	}
	movement.OrderID = change.OrderID
	movement.IdempotencyKey = change.IdempotencyKey

	batch := s.store.NewBatch()
	batch.UpdateProductStock(aggregate.Product)
	batch.CreateStockMovement(movement)
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, repository.ErrDuplicateMovement) {
			return &StockChangeResult{ProductID: change.ProductID, Skipped: true}, nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("Product %s not found", change.ProductID)
		}
		return nil, apperrors.NewInternal("Failed to update stock", err)
	}

	s.logger.Info("Stock updated",
		zap.String("product_id", product.ID.String()),
		zap.String("operation", string(change.Operation)),
		zap.Int("previous_stock", previous),
		zap.Int("new_stock", product.Stock),
		zap.String("performed_by", change.Actor))

	return &StockChangeResult{
		ProductID:     product.ID,
		PreviousStock: previous,
		NewStock:      product.Stock,
		Movement:      movement,
		Alert:         s.checkLowStock(ctx, product),
	}, nil
}

// BulkUpdateStock validates every update on its own and commits all
// successful ones in a single batch. Updates to the same product compose.
func (s *StockLedger) BulkUpdateStock(ctx context.Context, caller *auth.Caller, req BulkStockRequest) (*BulkStockResult, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if len(req.Updates) == 0 {
		return nil, apperrors.NewInvalidArgument("updates must be a non-empty array")
	}
	if len(req.Updates) > MaxBulkStockUpdates {
		return nil, apperrors.NewInvalidArgument("updates cannot exceed %d items", MaxBulkStockUpdates)
	}

	ctx, span := observability.Tracer().Start(ctx, "StockLedger.BulkUpdateStock",
		trace.WithAttributes(attribute.Int("bulk.size", len(req.Updates))),
	)
	defer span.End()

	reason := req.Reason
	if reason == "" {
		reason = DefaultBulkStockReason
	}

	batch := s.store.NewBatch()
	products := make(map[uuid.UUID]*domain.ProductAggregate)
	var touched []uuid.UUID
	results := make([]BulkItemResult, 0, len(req.Updates))
	updated := 0

	for _, update := range req.Updates {
		item := BulkItemResult{ProductID: update.ProductID}

		productID, err := uuid.Parse(update.ProductID)
		if err != nil {
			item.Error = "Invalid productId"
			results = append(results, item)
			continue
		}
		if update.Quantity < 0 {
			item.Error = "Quantity must be a non-negative integer"
			results = append(results, item)
			continue
		}
		if !update.Operation.Valid() {
			item.Error = "Invalid operation"
			results = append(results, item)
			continue
		}

		aggregate, seen := products[productID]
		if !seen {
			product, err := s.store.GetProduct(ctx, productID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					item.Error = "Product not found"
				} else {
					s.logger.Error("Bulk stock product read error",
						zap.String("product_id", update.ProductID), zap.Error(err))
					item.Error = "Failed to read product"
				}
				results = append(results, item)
				continue
			}
			aggregate = &domain.ProductAggregate{Product: product}
		}

		previous := aggregate.Stock
		movement, err := aggregate.ApplyStockChange(update.Operation, update.Quantity, reason, caller.UID)
		if err != nil {
			item.Error = err.Error()
			results = append(results, item)
			continue
		}

		if !seen {
			products[productID] = aggregate
			touched = append(touched, productID)
			batch.UpdateProductStock(aggregate.Product)
		}
		batch.CreateStockMovement(movement)

		newStock := aggregate.Stock
		item.Success = true
		item.PreviousStock = &previous
		item.NewStock = &newStock
		results = append(results, item)
		updated++
	}

	if updated > 0 {
		if err := batch.Commit(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, apperrors.NewInternal("Bulk stock update failed", err)
		}
	}

	s.logger.Info("Bulk stock update committed",
		zap.Int("requested", len(req.Updates)),
		zap.Int("updated", updated),
		zap.String("performed_by", caller.UID))
	span.SetAttributes(attribute.Int("bulk.updated", updated))

	for _, id := range touched {
		s.checkLowStock(ctx, products[id].Product)
	}

	return &BulkStockResult{
		Success:      true,
		Results:      results,
		TotalUpdated: updated,
	}, nil
}

// checkLowStock runs the alerter and discards its error after logging it.
// Alerting never fails the stock write that triggered it.
func (s *StockLedger) checkLowStock(ctx context.Context, product *types.Product) *types.InventoryAlert {
	if s.alerter == nil {
		return nil
	}
	alert, err := s.alerter.CheckLowStock(ctx, product)
	if err != nil {
		s.logger.Warn("Low stock check failed",
			zap.String("product_id", product.ID.String()),
			zap.Error(err))
		return nil
	}
	return alert
}
