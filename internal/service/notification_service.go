package service

import (
	"context"
	"strings"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/domain"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"go.uber.org/zap"
)

const (
	MaxBulkRecipients = 500

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type SendNotificationRequest struct {
	Type       types.NotificationType
	Recipient  string
	Subject    string
	Message    string
	TemplateID string
	Data       map[string]string
}

type BulkNotificationRequest struct {
	Type       types.NotificationType
	Recipients []string
	Subject    string
	Message    string
	TemplateID string
	Data       map[string]string
}

type RecipientResult struct {
	Recipient      string `json:"recipient"`
	Success        bool   `json:"success"`
	NotificationID string `json:"notification_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type BulkNotificationResult struct {
	Success     bool              `json:"success"`
	Results     []RecipientResult `json:"results"`
	TotalSent   int               `json:"total_sent"`
	TotalFailed int               `json:"total_failed"`
}

type HistoryQuery struct {
	Type   types.NotificationType
	Status types.NotificationStatus
	Limit  int
}

type NotificationService struct {
	store    repository.Store
	channels map[types.NotificationType]Channel
	logger   *zap.Logger
	now      func() time.Time
}

func NewNotificationService(store repository.Store, channels map[types.NotificationType]Channel, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		store:    store,
		channels: channels,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendNotification stores a pending record, attempts delivery and stores
// the outcome. A failed delivery is not an error; the returned record
// carries status failed.
func (s *NotificationService) SendNotification(ctx context.Context, caller *auth.Caller, req SendNotificationRequest) (*types.Notification, error) {
	if err := auth.RequireAuth(caller); err != nil {
		return nil, err
	}
	return s.send(ctx, caller.UID, req)
}

// SendSystemNotification dispatches on behalf of an event trigger.
func (s *NotificationService) SendSystemNotification(ctx context.Context, req SendNotificationRequest) (*types.Notification, error) {
	return s.send(ctx, auth.SystemActor, req)
}

func (s *NotificationService) send(ctx context.Context, createdBy string, req SendNotificationRequest) (*types.Notification, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, apperrors.NewInvalidArgument("recipient is required")
	}
	content, err := resolveContent(req.Type, req.Subject, req.Message, req.TemplateID, req.Data)
	if err != nil {
		return nil, err
	}

	notification := s.newNotification(req.Type, recipient, content, req.TemplateID, req.Data, createdBy)

	batch := s.store.NewBatch()
	batch.SaveNotification(notification.Notification)
	if err := batch.Commit(ctx); err != nil {
		return nil, apperrors.NewInternal("Failed to create notification", err)
	}

	s.deliver(ctx, notification)

	batch = s.store.NewBatch()
	batch.SaveNotification(notification.Notification)
	if err := batch.Commit(ctx); err != nil {
		return nil, apperrors.NewInternal("Failed to update notification status", err)
	}
	return notification.Notification, nil
}

// SendBulkNotification delivers to each recipient in turn and commits all
// records in one batch. One recipient failing never aborts the others.
func (s *NotificationService) SendBulkNotification(ctx context.Context, caller *auth.Caller, req BulkNotificationRequest) (*BulkNotificationResult, error) {
	if err := auth.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if len(req.Recipients) == 0 {
		return nil, apperrors.NewInvalidArgument("recipients must be a non-empty array")
	}
	if len(req.Recipients) > MaxBulkRecipients {
		return nil, apperrors.NewInvalidArgument("recipients cannot exceed %d entries", MaxBulkRecipients)
	}
	content, err := resolveContent(req.Type, req.Subject, req.Message, req.TemplateID, req.Data)
	if err != nil {
		return nil, err
	}

	result := &BulkNotificationResult{
		Success: true,
		Results: make([]RecipientResult, 0, len(req.Recipients)),
	}
	batch := s.store.NewBatch()

	for _, raw := range req.Recipients {
		recipient := strings.TrimSpace(raw)
		if recipient == "" {
			result.Results = append(result.Results, RecipientResult{Recipient: raw, Error: "recipient is required"})
			result.TotalFailed++
			continue
		}

		notification := s.newNotification(req.Type, recipient, content, req.TemplateID, req.Data, caller.UID)
		s.deliver(ctx, notification)
		batch.SaveNotification(notification.Notification)

		entry := RecipientResult{
			Recipient:      recipient,
			NotificationID: notification.ID.String(),
		}
		if notification.Status == types.NotificationStatusSent {
			entry.Success = true
			result.TotalSent++
		} else {
			entry.Error = notification.Error
			result.TotalFailed++
		}
		result.Results = append(result.Results, entry)
	}

	if batch.Size() > 0 {
		if err := batch.Commit(ctx); err != nil {
			return nil, apperrors.NewInternal("Failed to save notifications", err)
		}
	}

	s.logger.Info("Bulk notification completed",
		zap.String("type", string(req.Type)),
		zap.Int("recipients", len(req.Recipients)),
		zap.Int("sent", result.TotalSent),
		zap.Int("failed", result.TotalFailed))
	return result, nil
}

// GetNotificationHistory lists notifications newest first. Non-admin callers
// only see the records they created.
func (s *NotificationService) GetNotificationHistory(ctx context.Context, caller *auth.Caller, query HistoryQuery) ([]*types.Notification, error) {
	if err := auth.RequireAuth(caller); err != nil {
		return nil, err
	}
	if query.Type != "" && !query.Type.Valid() {
		return nil, apperrors.NewInvalidArgument("Invalid notification type: %q", query.Type)
	}
	switch query.Status {
	case "", types.NotificationStatusPending, types.NotificationStatusSent, types.NotificationStatusFailed:
	default:
		return nil, apperrors.NewInvalidArgument("Invalid notification status: %q", query.Status)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	storeQuery := repository.NotificationQuery{
		Type:   query.Type,
		Status: query.Status,
		Limit:  limit,
	}
	if !caller.IsAdmin() {
		storeQuery.CreatedBy = caller.UID
	}

	notifications, err := s.store.ListNotifications(ctx, storeQuery)
	if err != nil {
		return nil, apperrors.NewInternal("Failed to read notifications", err)
	}
	if notifications == nil {
		notifications = []*types.Notification{}
	}
	return notifications, nil
}

func (s *NotificationService) newNotification(t types.NotificationType, recipient string, content domain.RenderedMessage, templateID string, data map[string]string, createdBy string) *domain.NotificationAggregate {
	notification := domain.NewNotificationAggregate(t, recipient, content.Subject, content.Message, createdBy)
	notification.TemplateID = templateID
	if len(data) > 0 {
		notification.Data = make(map[string]string, len(data))
		for k, v := range data {
			notification.Data[k] = v
		}
	}
	return notification
}

func (s *NotificationService) deliver(ctx context.Context, notification *domain.NotificationAggregate) {
	channel, ok := s.channels[notification.Type]
	if !ok {
		notification.MarkAsFailed("No delivery channel for " + string(notification.Type))
		return
	}

	result := channel.Send(ctx, notification.Notification)
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "Delivery failed"
		}
		notification.MarkAsFailed(reason)
		s.logger.Warn("Notification delivery failed",
			zap.String("notification_id", notification.ID.String()),
			zap.String("type", string(notification.Type)),
			zap.String("recipient", notification.Recipient),
			zap.String("error", reason))
		return
	}
	notification.MarkAsSent(result.ProviderRef, s.now())
}

// resolveContent renders the template, if any, and lets explicit subject
// and message override it.
func resolveContent(t types.NotificationType, subject, message, templateID string, data map[string]string) (domain.RenderedMessage, error) {
	if !t.Valid() {
		return domain.RenderedMessage{}, apperrors.NewInvalidArgument("Invalid notification type: %q", t)
	}

	var content domain.RenderedMessage
	if templateID != "" {
		if !domain.HasTemplate(templateID) {
			return domain.RenderedMessage{}, apperrors.NewInvalidArgument("Unknown template: %s", templateID)
		}
		rendered, err := domain.RenderTemplate(templateID, data)
		if err != nil {
			return domain.RenderedMessage{}, apperrors.NewInternal("Failed to render template", err)
		}
		content = rendered
	}
	if subject != "" {
		content.Subject = subject
	}
	if message != "" {
		content.Message = message
	}

	if strings.TrimSpace(content.Message) == "" {
		return domain.RenderedMessage{}, apperrors.NewInvalidArgument("message or templateId is required")
	}
	if t == types.NotificationTypeEmail && strings.TrimSpace(content.Subject) == "" {
		return domain.RenderedMessage{}, apperrors.NewInvalidArgument("subject is required for email notifications")
	}
	return content, nil
}
