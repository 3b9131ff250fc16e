package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/config"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/events"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConsumer reads order events from a consumer group. Offsets are
// committed after the handler runs, so delivery is at-least-once.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewKafkaConsumer(cfg config.KafkaConfig, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.OrderTopic,
			GroupID: cfg.GroupID,
		}),
		logger: logger,
	}
}

// Run blocks until ctx is cancelled. A failed event is retried once in
// place and then skipped so it does not stall the partition.
func (c *KafkaConsumer) Run(ctx context.Context, handler OrderEventHandler) error {
	c.logger.Info("Consuming Kafka order events",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("kafka fetch error: %w", err)
		}

		c.handleMessage(ctx, msg, handler)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Kafka commit error",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message, handler OrderEventHandler) {
	event, err := DecodeOrderEvent(msg.Value)
	if err != nil {
		c.logger.Error("Event deserialize error",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}

	for attempt := 0; attempt <= maxRedeliveries; attempt++ {
		if err = handler(ctx, event); err == nil {
			return
		}
		c.logger.Error("Event process error",
			zap.String("event_type", string(event.Type)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	c.logger.Warn("Max retry is reached, skipping event",
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID.String()))
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaPublisher writes inventory events keyed by product id, so events for
// one product stay on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.InventoryTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishInventoryEvent(ctx context.Context, event events.InventoryEvent) error {
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

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   inventoryMessageKey(event),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "service", Value: []byte(event.Service)},
			{Key: "event_type", Value: []byte(string(event.Type))},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}

	p.logger.Info("Event published",
		zap.String("topic", p.writer.Topic),
		zap.String("event_type", string(event.Type)))
	return nil
}

// inventoryMessageKey is the product id for low-stock events and the event
// type otherwise.
func inventoryMessageKey(event events.InventoryEvent) []byte {
	switch payload := event.Payload.(type) {
	case events.LowStockPayload:
		return []byte(payload.Alert.ProductID.String())
	case *events.LowStockPayload:
		if payload != nil {
			return []byte(payload.Alert.ProductID.String())
		}
	}
	return []byte(string(event.Type))
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
