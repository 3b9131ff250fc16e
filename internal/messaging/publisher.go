package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Publisher struct {
	client     *RabbitMQClient
	maxRetries int
	logger     *zap.Logger
}

func NewPublisher(client *RabbitMQClient, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:     client,
		maxRetries: client.config.RetryCount,
		logger:     logger,
	}
}

// InventoryRoutingKey is the topic routing key for an inventory event.
func InventoryRoutingKey(event events.InventoryEvent) string {
	return fmt.Sprintf("inventory.%s.%s", event.Service, string(event.Type))
}

// PublishInventoryEvent publishes with up to maxRetries attempts and a
// linear backoff between them.
func (p *Publisher) PublishInventoryEvent(ctx context.Context, event events.InventoryEvent) error {
	var lastErr error

	for i := 0; i < p.maxRetries; i++ {
		if lastErr = p.publish(ctx, event); lastErr == nil {
			return nil
		}
		p.logger.Warn("Publish error",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", p.maxRetries),
			zap.Error(lastErr))

		if i < p.maxRetries-1 {
			select {
			case <-time.After(time.Second * time.Duration(i+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("event publish failed after %d attempts: %w", p.maxRetries, lastErr)
}

func (p *Publisher) publish(ctx context.Context, event events.InventoryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event serialization error: %w", err)
	}

	routingKey := InventoryRoutingKey(event)

	err = p.client.Channel().Publish(
		p.client.config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.Timestamp,
			Headers: amqp.Table{
				"service":    event.Service,
				"event_type": string(event.Type),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("event publish error: %w", err)
	}

	p.logger.Info("Event published",
		zap.String("routing_key", routingKey),
		zap.String("event_type", string(event.Type)))
	return nil
}
