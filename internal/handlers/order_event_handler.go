package handlers

import (
	"context"
	"fmt"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"go.uber.org/zap"
)

const orderCancelledTemplate = "order_cancelled"

// OrderEventHandler routes order change events to the order hooks.
type OrderEventHandler struct {
	hooks         *service.OrderHooks
	notifications *service.NotificationService
	logger        *zap.Logger
}

// NewOrderEventHandler builds the trigger handler. notifications may be nil
// to disable cancellation emails.
func NewOrderEventHandler(hooks *service.OrderHooks, notifications *service.NotificationService, logger *zap.Logger) *OrderEventHandler {
	return &OrderEventHandler{
		hooks:         hooks,
		notifications: notifications,
		logger:        logger,
	}
}

// HandleOrderEvent returns an error only when a line item hit an internal
// failure. Redelivery is safe because every movement carries an
// idempotency key; missing products and bad quantities are not retried.
func (h *OrderEventHandler) HandleOrderEvent(ctx context.Context, event events.OrderEvent) error {
	switch event.Type {
	case events.OrderCreatedEvent:
		return transientFailure(h.hooks.OnOrderCreated(ctx, event.After))

	case events.OrderUpdatedEvent:
		outcomes := h.hooks.OnOrderUpdated(ctx, event.Before, event.After)
		if appliedAny(outcomes) {
			h.sendCancellationEmail(ctx, event)
		}
		return transientFailure(outcomes)

	default:
		h.logger.Debug("Unhandled event type", zap.String("event_type", string(event.Type)))
		return nil
	}
}

func (h *OrderEventHandler) sendCancellationEmail(ctx context.Context, event events.OrderEvent) {
	if h.notifications == nil || event.CustomerEmail == "" {
		return
	}

	notification, err := h.notifications.SendSystemNotification(ctx, service.SendNotificationRequest{
		Type:       types.NotificationTypeEmail,
		Recipient:  event.CustomerEmail,
		TemplateID: orderCancelledTemplate,
		Data:       map[string]string{"orderId": event.After.ID.String()},
	})
	if err != nil {
		h.logger.Warn("Cancellation email failed",
			zap.String("order_id", event.After.ID.String()),
			zap.Error(err))
		return
	}
	h.logger.Info("Cancellation email dispatched",
		zap.String("order_id", event.After.ID.String()),
		zap.String("status", string(notification.Status)))
}

func appliedAny(outcomes []service.LineItemOutcome) bool {
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil && !o.Result.Skipped {
			return true
		}
	}
	return false
}

func transientFailure(outcomes []service.LineItemOutcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil && apperrors.KindOf(o.Err) == apperrors.Internal {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d line items failed", failed, len(outcomes))
	}
	return nil
}
