package handlers

import (
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
)

type UpdateStockRequest struct {
	ProductID string               `json:"product_id"`
	Quantity  *int                 `json:"quantity"`
	Operation types.StockOperation `json:"operation"`
	Reason    string               `json:"reason,omitempty"`
}

type BulkUpdateStockRequest struct {
	Updates []service.BulkStockUpdate `json:"updates"`
	Reason  string                    `json:"reason,omitempty"`
}

type SetStockAlertRequest struct {
	ProductID string `json:"product_id"`
	Threshold *int   `json:"threshold"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

type CreateRestockRequest struct {
	ProductID         string                `json:"product_id"`
	RequestedQuantity int                   `json:"requested_quantity"`
	Priority          types.RestockPriority `json:"priority,omitempty"`
	Notes             string                `json:"notes,omitempty"`
}

type SendNotificationRequest struct {
	Type       types.NotificationType `json:"type"`
	Recipient  string                 `json:"recipient"`
	Subject    string                 `json:"subject,omitempty"`
	Message    string                 `json:"message,omitempty"`
	TemplateID string                 `json:"template_id,omitempty"`
	Data       map[string]string      `json:"data,omitempty"`
}

type SendBulkNotificationRequest struct {
	Type       types.NotificationType `json:"type"`
	Recipients []string               `json:"recipients"`
	Subject    string                 `json:"subject,omitempty"`
	Message    string                 `json:"message,omitempty"`
	TemplateID string                 `json:"template_id,omitempty"`
	Data       map[string]string      `json:"data,omitempty"`
}

type NotificationHistoryResponse struct {
	Notifications []*types.Notification `json:"notifications"`
	Count         int                   `json:"count"`
}
