package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/config"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPublishTimeout bounds a low-stock publish, retries included, so a
// broker outage cannot stall the stock write that raised the alert.
const DefaultPublishTimeout = 500 * time.Millisecond

// EventPublisher sends inventory events to the broker.
type EventPublisher interface {
	PublishInventoryEvent(ctx context.Context, event events.InventoryEvent) error
}

type SetStockAlertRequest struct {
	ProductID uuid.UUID
	Threshold int
	// IsActive defaults to true.
	IsActive *bool
}

type AlertService struct {
	store          repository.Store
	publisher      EventPublisher
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewAlertService builds the alerter. publisher may be nil, in which case
// alerts are only stored.
func NewAlertService(store repository.Store, publisher EventPublisher, logger *zap.Logger) *AlertService {
	return &AlertService{
		store:          store,
		publisher:      publisher,
		publishTimeout: DefaultPublishTimeout,
		logger:         logger,
	}
}

func (s *AlertService) SetStockAlert(ctx context.Context, caller *auth.Caller, req SetStockAlertRequest) (*types.StockAlert, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if req.ProductID == uuid.Nil {
		return nil, apperrors.NewInvalidArgument("productId is required")
	}
	if req.Threshold < 0 {
		return nil, apperrors.NewInvalidArgument("Threshold must be a non-negative integer")
	}

	if _, err := s.store.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("Product %s not found", req.ProductID)
		}
		return nil, apperrors.NewInternal("Failed to read product", err)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	alert := &types.StockAlert{
		ProductID: req.ProductID,
		Threshold: req.Threshold,
		IsActive:  active,
		UpdatedBy: caller.UID,
	}

	batch := s.store.NewBatch()
	batch.UpsertStockAlert(alert)
	if err := batch.Commit(ctx); err != nil {
		return nil, apperrors.NewInternal("Failed to save stock alert", err)
	}

	s.logger.Info("Stock alert saved",
		zap.String("product_id", req.ProductID.String()),
		zap.Int("threshold", req.Threshold),
		zap.Bool("active", active))
	return alert, nil
}

// CheckLowStock stores an alert when the product's stock is at or below its
// active threshold. Products without a threshold record never alert. The
// returned alert is nil when nothing fired.
func (s *AlertService) CheckLowStock(ctx context.Context, product *types.Product) (*types.InventoryAlert, error) {
	threshold, err := s.store.GetStockAlert(ctx, product.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stock alert read error: %w", err)
	}

	priority, fire := domain.EvaluateLowStock(threshold, product.Stock)
	if !fire {
		return nil, nil
	}

	alert := domain.NewInventoryAlert(product, threshold.Threshold, priority)
	batch := s.store.NewBatch()
	batch.CreateInventoryAlert(alert)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("inventory alert write error: %w", err)
	}

	s.logger.Info("Low stock alert created",
		zap.String("product_id", product.ID.String()),
		zap.String("product_name", product.Name),
		zap.Int("current_stock", product.Stock),
		zap.Int("threshold", threshold.Threshold),
		zap.String("priority", string(priority)))

	s.publishLowStock(ctx, alert)
	return alert, nil
}

func (s *AlertService) publishLowStock(ctx context.Context, alert *types.InventoryAlert) {
	if s.publisher == nil {
		return
	}
	event := events.InventoryEvent{
		ID:        uuid.New(),
		Type:      events.LowStockEvent,
		Service:   config.ServiceName,
		Timestamp: time.Now().UTC(),
		Payload:   events.LowStockPayload{Alert: *alert},
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishInventoryEvent(ctx, event); err != nil {
		s.logger.Warn("Low stock event publish error",
			zap.String("product_id", alert.ProductID.String()),
			zap.Error(err))
	}
}
