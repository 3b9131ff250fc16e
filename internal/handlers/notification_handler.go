package handlers

import (
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	sharedHTTP "github.com/distributed-ecommerce-saga/storefront-functions/internal/http"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	authenticated := requireCaller(h.logger, auth.RequireAuth)

	router.Post("/notifications", authenticated, h.SendNotification)
	router.Post("/notifications/bulk", requireCaller(h.logger, auth.RequireAdmin), h.SendBulkNotification)
	router.Get("/notifications", authenticated, h.GetNotificationHistory)
}

func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var request SendNotificationRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	notification, err := h.notifications.SendNotification(c.UserContext(), auth.FromContext(c), service.SendNotificationRequest{
		Type:       request.Type,
		Recipient:  request.Recipient,
		Subject:    request.Subject,
		Message:    request.Message,
		TemplateID: request.TemplateID,
		Data:       request.Data,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "Notification sent"
	if notification.Status == types.NotificationStatusFailed {
		message = "Notification delivery failed"
	}
	return sharedHTTP.SuccessResponse(c, message, notification)
}

func (h *NotificationHandler) SendBulkNotification(c *fiber.Ctx) error {
	var request SendBulkNotificationRequest
	if err := c.BodyParser(&request); err != nil {
		return parseError(c, err)
	}

	result, err := h.notifications.SendBulkNotification(c.UserContext(), auth.FromContext(c), service.BulkNotificationRequest{
		Type:       request.Type,
		Recipients: request.Recipients,
		Subject:    request.Subject,
		Message:    request.Message,
		TemplateID: request.TemplateID,
		Data:       request.Data,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Bulk notification completed", result)
}

func (h *NotificationHandler) GetNotificationHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	notifications, err := h.notifications.GetNotificationHistory(c.UserContext(), auth.FromContext(c), service.HistoryQuery{
		Type:   types.NotificationType(c.Query("type")),
		Status: types.NotificationStatus(c.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return sharedHTTP.SuccessResponse(c, "Notifications retrieved", NotificationHistoryResponse{
		Notifications: notifications,
		Count:         len(notifications),
	})
}
