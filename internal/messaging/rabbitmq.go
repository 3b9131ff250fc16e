package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("there is no connection to RabbitMQ")

// RabbitMQClient owns one connection and channel and reconnects when the
// broker drops the connection. Consumers watch Reconnected to resubscribe.
type RabbitMQClient struct {
	config     *RabbitMQConfig
	logger     *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	isClosing  bool
	ctx        context.Context
	cancel     context.CancelFunc

	reconnected chan struct{}
}

func NewRabbitMQClient(ctx context.Context, config *RabbitMQConfig, logger *zap.Logger) *RabbitMQClient {
	ctx, cancel := context.WithCancel(ctx)
	return &RabbitMQClient{
		config:      config,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		reconnected: make(chan struct{}, 1),
	}
}

func (r *RabbitMQClient) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for i := 0; i < r.config.RetryCount; i++ {
		r.connection, err = amqp.DialConfig(r.config.ConnectionURL(), amqp.Config{
			Dial: amqp.DefaultDial(r.config.ConnectionTimeout),
		})
		if err != nil {
			r.logger.Warn("RabbitMQ connection error",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", r.config.RetryCount),
				zap.Error(err))
			if i < r.config.RetryCount-1 {
				select {
				case <-time.After(r.config.RetryDelay):
					continue
				case <-r.ctx.Done():
					return r.ctx.Err()
				}
			}
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}

		r.channel, err = r.connection.Channel()
		if err != nil {
			r.connection.Close()
			return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
		}

		err = r.channel.ExchangeDeclare(
			r.config.Exchange, // name
			"topic",           // type
			true,              // durable
			false,             // auto-deleted
			false,             // internal
			false,             // no-wait
			nil,               // arguments
		)
		if err != nil {
			r.channel.Close()
			r.connection.Close()
			return fmt.Errorf("failed to create exchange: %w", err)
		}

		r.logger.Info("Successfully connected to RabbitMQ", zap.String("host", r.config.Host))

		go r.handleReconnection(r.connection)

		return nil
	}

	return err
}

func (r *RabbitMQClient) handleReconnection(conn *amqp.Connection) {
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case err := <-notifyClose:
		r.mu.RLock()
		closing := r.isClosing
		r.mu.RUnlock()
		if closing {
			return
		}

		r.logger.Warn("RabbitMQ connection is lost, trying reconnect", zap.Any("reason", err))
		for {
			select {
			case <-time.After(time.Second * 2):
			case <-r.ctx.Done():
				return
			}
			if reconnectErr := r.Connect(); reconnectErr != nil {
				r.logger.Error("Reconnect error", zap.Error(reconnectErr))
				continue
			}
			select {
			case r.reconnected <- struct{}{}:
			default:
			}
			return
		}
	case <-r.ctx.Done():
	}
}

func (r *RabbitMQClient) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Reconnected receives a value after every successful reconnect.
func (r *RabbitMQClient) Reconnected() <-chan struct{} {
	return r.reconnected
}

func (r *RabbitMQClient) Done() <-chan struct{} {
	return r.ctx.Done()
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClosing {
		return nil
	}

	r.isClosing = true
	r.cancel()

	var closeErr error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			closeErr = fmt.Errorf("channel close error: %w", err)
			r.logger.Warn("Failed to close channel", zap.Error(err))
		}
	}

	if r.connection != nil {
		if err := r.connection.Close(); err != nil {
			if closeErr != nil {
				closeErr = fmt.Errorf("%v; connection close error: %w", closeErr, err)
			} else {
				closeErr = fmt.Errorf("connection close error: %w", err)
			}
			r.logger.Warn("Failed to close connection", zap.Error(err))
		}
	}

	if closeErr == nil {
		r.logger.Info("RabbitMQ connection closed successfully")
	}

	return closeErr
}

func (r *RabbitMQClient) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.connection != nil && !r.connection.IsClosed()
}
