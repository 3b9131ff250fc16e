package domain

import (
	"testing"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationAggregate_Lifecycle(t *testing.T) {
	n := NewNotificationAggregate(types.NotificationTypeEmail, "a@example.com", "Hi", "Body", "u1")
	assert.Equal(t, types.NotificationStatusPending, n.Status)

	n.MarkAsFailed("mailbox full")
	assert.Equal(t, types.NotificationStatusFailed, n.Status)
	assert.Equal(t, "mailbox full", n.Error)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n.MarkAsSent("ref-1", at)
	assert.Equal(t, types.NotificationStatusSent, n.Status)
	assert.Empty(t, n.Error)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, at, *n.SentAt)
}

func TestRenderTemplate(t *testing.T) {
	msg, err := RenderTemplate("order_shipped", map[string]string{"orderId": "A1", "trackingNumber": "TN9"})
	require.NoError(t, err)

	assert.Equal(t, "Order A1 shipped", msg.Subject)
	assert.Equal(t, "Your order A1 is on its way. Tracking number: TN9.", msg.Message)
}

func TestRenderTemplate_MissingData(t *testing.T) {
	msg, err := RenderTemplate("order_confirmation", map[string]string{"orderId": "A1"})
	require.NoError(t, err)

	assert.Contains(t, msg.Message, "Hi there")
}

func TestRenderTemplate_Unknown(t *testing.T) {
	assert.False(t, HasTemplate("nope"))
	_, err := RenderTemplate("nope", nil)
	assert.Error(t, err)
}
