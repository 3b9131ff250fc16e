package service

import (
	"context"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryReport struct {
	Products    []domain.ReportItem  `json:"products"`
	Summary     domain.ReportSummary `json:"summary"`
	GeneratedAt time.Time            `json:"generated_at"`
}

type ReportService struct {
	store            repository.Store
	defaultThreshold int
	logger           *zap.Logger
	now              func() time.Time
}

func NewReportService(store repository.Store, defaultThreshold int, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:            store,
		defaultThreshold: defaultThreshold,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReportService) GetInventoryReport(ctx context.Context, caller *auth.Caller) (*InventoryReport, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}

	products, err := s.store.ListActiveProducts(ctx)
	if err != nil {
		return nil, apperrors.NewInternal("Failed to read products", err)
	}
	alerts, err := s.store.ListActiveStockAlerts(ctx)
	if err != nil {
		return nil, apperrors.NewInternal("Failed to read stock alerts", err)
	}

	thresholds := make(map[uuid.UUID]int, len(alerts))
	for _, a := range alerts {
		thresholds[a.ProductID] = a.Threshold
	}

	items, summary := domain.BuildReport(products, thresholds, s.defaultThreshold)
	s.logger.Info("Inventory report generated",
		zap.Int("total_products", summary.TotalProducts),
		zap.Int("out_of_stock", summary.OutOfStock),
		zap.Int("low_stock", summary.LowStock))

	return &InventoryReport{
		Products:    items,
		Summary:     summary,
		GeneratedAt: s.now(),
	}, nil
}
