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

const (
	retryHeader     = "x-retry-count"
	maxRedeliveries = 1
	republishDelay  = 2 * time.Second
)

// OrderEventHandler processes one decoded order event.
type OrderEventHandler func(ctx context.Context, event events.OrderEvent) error

type Consumer struct {
	client      *RabbitMQClient
	queueName   string
	serviceName string
	logger      *zap.Logger
}

func NewConsumer(client *RabbitMQClient, queueName, serviceName string, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:      client,
		queueName:   queueName,
		serviceName: serviceName,
		logger:      logger,
	}
}

// ConsumeOrderEvents binds the queue to routingKeys and handles deliveries
// until ctx is cancelled. Deliveries are acked manually; a failed event is
// republished once and then rejected without requeue.
func (c *Consumer) ConsumeOrderEvents(ctx context.Context, routingKeys []string, handler OrderEventHandler) error {
	messages, err := c.subscribe(routingKeys)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					messages = c.resubscribe(ctx, routingKeys)
					if messages == nil {
						return
					}
					continue
				}
				c.handleMessage(ctx, msg, handler)
			case <-ctx.Done():
				c.logger.Info("Consumer is stopped", zap.String("consumer", c.serviceName))
				return
			case <-c.client.Done():
				c.logger.Info("Consumer is stopped", zap.String("consumer", c.serviceName))
				return
			}
		}
	}()

	return nil
}

func (c *Consumer) subscribe(routingKeys []string) (<-chan amqp.Delivery, error) {
	if !c.client.IsConnected() {
		return nil, ErrNotConnected
	}

	channel := c.client.Channel()

	queue, err := channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("queue declare error: %w", err)
	}

	for _, routingKey := range routingKeys {
		err = channel.QueueBind(
			queue.Name,               // queue name
			routingKey,               // routing key
			c.client.config.Exchange, // exchange
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return nil, fmt.Errorf("queue bind error (%s): %w", routingKey, err)
		}
		c.logger.Info("Queue bound",
			zap.String("queue", queue.Name),
			zap.String("routing_key", routingKey))
	}

	messages, err := channel.Consume(
		queue.Name,    // queue
		c.serviceName, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume start error: %w", err)
	}

	c.logger.Info("Consuming events", zap.String("queue", queue.Name))
	return messages, nil
}

// resubscribe waits for the client to reconnect and subscribes again. It
// returns nil once the consumer should stop.
func (c *Consumer) resubscribe(ctx context.Context, routingKeys []string) <-chan amqp.Delivery {
	for {
		select {
		case <-c.client.Reconnected():
			messages, err := c.subscribe(routingKeys)
			if err != nil {
				c.logger.Error("Resubscribe error", zap.Error(err))
				continue
			}
			return messages
		case <-ctx.Done():
			return nil
		case <-c.client.Done():
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery, handler OrderEventHandler) {
	event, err := DecodeOrderEvent(msg.Body)
	if err != nil {
		c.logger.Error("Event deserialize error", zap.Error(err))
		msg.Nack(false, false)
		return
	}

	c.logger.Info("Event received",
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID.String()),
		zap.String("service", event.Service))

	if err := handler(ctx, event); err != nil {
		c.logger.Error("Event process error",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))

		if shouldRetry(msg.Headers) {
			c.republishWithRetry(msg, event)
		} else {
			c.logger.Warn("Max retry is reached, dead lettering",
				zap.String("event_type", string(event.Type)))
			msg.Nack(false, false)
		}
		return
	}

	msg.Ack(false)
	c.logger.Debug("Event processed successfully", zap.String("event_type", string(event.Type)))
}

func (c *Consumer) republishWithRetry(msg amqp.Delivery, event events.OrderEvent) {
	time.Sleep(republishDelay)

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retryCount(msg.Headers) + 1)

	err := c.client.Channel().Publish(
		msg.Exchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			DeliveryMode: msg.DeliveryMode,
			Headers:      headers,
		},
	)

	if err != nil {
		c.logger.Error("Retry publish error", zap.Error(err))
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
	c.logger.Info("Re-published", zap.String("event_type", string(event.Type)))
}

// DecodeOrderEvent parses a delivery body and rejects events without a type,
// an after-image or an order id. An order document without an id takes the
// envelope's order_id.
func DecodeOrderEvent(body []byte) (events.OrderEvent, error) {
	var event events.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return events.OrderEvent{}, fmt.Errorf("order event decode: %w", err)
	}
	if event.Type == "" {
		return events.OrderEvent{}, fmt.Errorf("order event without event_type")
	}
	if event.After == nil {
		return events.OrderEvent{}, fmt.Errorf("order event %s without order document", event.ID)
	}
	if event.OrderID == uuid.Nil {
		event.OrderID = event.After.ID
	}
	if event.OrderID == uuid.Nil {
		return events.OrderEvent{}, fmt.Errorf("order event %s without order id", event.ID)
	}
	if event.After.ID == uuid.Nil {
		event.After.ID = event.OrderID
	}
	if event.Before != nil && event.Before.ID == uuid.Nil {
		event.Before.ID = event.OrderID
	}
	return event, nil
}

func shouldRetry(headers amqp.Table) bool {
	return retryCount(headers) < maxRedeliveries
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
