package types

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeEmail NotificationType = "email"
	NotificationTypeSMS   NotificationType = "sms"
	NotificationTypePush  NotificationType = "push"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeEmail, NotificationTypeSMS, NotificationTypePush:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID          uuid.UUID          `json:"id"`
	Type        NotificationType   `json:"type"`
	Status      NotificationStatus `json:"status"`
	Recipient   string             `json:"recipient"`
	Subject     string             `json:"subject,omitempty"`
	Message     string             `json:"message"`
	TemplateID  string             `json:"template_id,omitempty"`
	Data        map[string]string  `json:"data,omitempty"`
	Error       string             `json:"error,omitempty"`
	ProviderRef string             `json:"provider_ref,omitempty"`
	CreatedBy   string             `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	SentAt      *time.Time         `json:"sent_at,omitempty"`
}
