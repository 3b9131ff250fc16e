package domain

import (
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
)

type NotificationAggregate struct {
	*types.Notification
}

func NewNotificationAggregate(notificationType types.NotificationType, recipient, subject, message, createdBy string) *NotificationAggregate {
	return &NotificationAggregate{
		Notification: &types.Notification{
			ID:        uuid.New(),
			Type:      notificationType,
			Status:    types.NotificationStatusPending,
			Recipient: recipient,
			Subject:   subject,
			Message:   message,
			CreatedBy: createdBy,
		},
	}
}

func (n *NotificationAggregate) MarkAsSent(providerRef string, at time.Time) {
	n.Status = types.NotificationStatusSent
	n.ProviderRef = providerRef
	n.Error = ""
	n.SentAt = &at
}

func (n *NotificationAggregate) MarkAsFailed(reason string) {
	n.Status = types.NotificationStatusFailed
	n.Error = reason
}
