package service

import (
	"context"
	"errors"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RestockRequestInput struct {
	ProductID         uuid.UUID
	RequestedQuantity int
	Priority          types.RestockPriority
	Notes             string
}

type RestockService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewRestockService(store repository.Store, logger *zap.Logger) *RestockService {
	return &RestockService{store: store, logger: logger}
}

// CreateRestockRequest opens a pending request with a snapshot of the
// product's current stock.
func (s *RestockService) CreateRestockRequest(ctx context.Context, caller *auth.Caller, input RestockRequestInput) (*types.RestockRequest, error) {
	if err := auth.RequireAuth(caller); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, apperrors.NewInvalidArgument("productId is required")
	}
	if input.RequestedQuantity <= 0 {
		return nil, apperrors.NewInvalidArgument("requestedQuantity must be a positive integer")
	}
	priority := input.Priority
	if priority == "" {
		priority = types.RestockPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewInvalidArgument("Invalid priority: %q", input.Priority)
	}

	product, err := s.store.GetProduct(ctx, input.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("Product %s not found", input.ProductID)
	}
	if err != nil {
		return nil, apperrors.NewInternal("Failed to read product", err)
	}

	request := domain.NewRestockRequest(product, input.RequestedQuantity, priority, input.Notes, caller.UID)
	batch := s.store.NewBatch()
	batch.CreateRestockRequest(request)
	if err := batch.Commit(ctx); err != nil {
		return nil, apperrors.NewInternal("Failed to create restock request", err)
	}

	s.logger.Info("Restock request created",
		zap.String("request_id", request.ID.String()),
		zap.String("product_id", product.ID.String()),
		zap.Int("requested_quantity", request.RequestedQuantity),
		zap.String("priority", string(priority)),
		zap.String("requested_by", caller.UID))
	return request, nil
}
