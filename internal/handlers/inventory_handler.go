package handlers

import (
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/config"
	sharedHTTP "github.com/distributed-ecommerce-saga/storefront-functions/internal/http"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	ledger  *service.StockLedger
	alerts  *service.AlertService
	restock *service.RestockService
	report  *service.ReportService
	logger  *zap.Logger
}

func NewInventoryHandler(ledger *service.StockLedger, alerts *service.AlertService, restock *service.RestockService, report *service.ReportService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		ledger:  ledger,
		alerts:  alerts,
		restock: restock,
		report:  report,
		logger:  logger,
	}
}

func (h *InventoryHandler) RegisterRoutes(router fiber.Router) {
	admin := requireCaller(h.logger, auth.RequireAdmin)
	authenticated := requireCaller(h.logger, auth.RequireAuth)

	router.Post("/stock/update", admin, h.UpdateStock)
	router.Post("/stock/bulk-update", admin, h.BulkUpdateStock)
	router.Post("/stock/alerts", admin, h.SetStockAlert)
	router.Post("/restock-requests", authenticated, h.CreateRestockRequest)
	router.Get("/inventory/report", admin, h.GetInventoryReport)
}

func (h *InventoryHandler) HealthCheck(c *fiber.Ctx) error {
	return sharedHTTP.SuccessResponse(c, "Inventory functions are healthy", map[string]interface{}{
		"service": config.ServiceName,
		"version": config.ServiceVersion,
		"status":  "healthy",
	})
}

func (h *InventoryHandler) UpdateStock(c *fiber.Ctx) error {
	var request UpdateStockRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	productID, err := uuid.Parse(request.ProductID)
	if err != nil {
		return sharedHTTP.BadRequestResponse(c, "Invalid product ID", map[string]interface{}{
			"product_id": request.ProductID,
		})
	}
	if request.Quantity == nil {
		return sharedHTTP.BadRequestResponse(c, "Quantity is required", nil)
	}

	result, err := h.ledger.UpdateStock(c.UserContext(), auth.FromContext(c), service.UpdateStockRequest{
		ProductID: productID,
		Quantity:  *request.Quantity,
		Operation: request.Operation,
		Reason:    request.Reason,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Stock updated successfully", result)
}

func (h *InventoryHandler) BulkUpdateStock(c *fiber.Ctx) error {
	var request BulkUpdateStockRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	result, err := h.ledger.BulkUpdateStock(c.UserContext(), auth.FromContext(c), service.BulkStockRequest{
		Updates: request.Updates,
		Reason:  request.Reason,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Bulk stock update completed", result)
}

func (h *InventoryHandler) SetStockAlert(c *fiber.Ctx) error {
	var request SetStockAlertRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	productID, err := uuid.Parse(request.ProductID)
	if err != nil {
		return sharedHTTP.BadRequestResponse(c, "Invalid product ID", map[string]interface{}{
			"product_id": request.ProductID,
		})
	}
	if request.Threshold == nil {
		return sharedHTTP.BadRequestResponse(c, "Threshold is required", nil)
	}

	alert, err := h.alerts.SetStockAlert(c.UserContext(), auth.FromContext(c), service.SetStockAlertRequest{
		ProductID: productID,
		Threshold: *request.Threshold,
		IsActive:  request.IsActive,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Stock alert saved", alert)
}

func (h *InventoryHandler) CreateRestockRequest(c *fiber.Ctx) error {
	var request CreateRestockRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	productID, err := uuid.Parse(request.ProductID)
	if err != nil {
		return sharedHTTP.BadRequestResponse(c, "Invalid product ID", map[string]interface{}{
			"product_id": request.ProductID,
		})
	}

	restock, err := h.restock.CreateRestockRequest(c.UserContext(), auth.FromContext(c), service.RestockRequestInput{
		ProductID:         productID,
		RequestedQuantity: request.RequestedQuantity,
		Priority:          request.Priority,
		Notes:             request.Notes,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.CreatedResponse(c, "Restock request created", restock)
}

func (h *InventoryHandler) GetInventoryReport(c *fiber.Ctx) error {
	report, err := h.report.GetInventoryReport(c.UserContext(), auth.FromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Inventory report generated", report)
}
