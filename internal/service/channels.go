package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/config"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DeliveryResult struct {
	Success     bool
	ProviderRef string
	Error       string
}

// Channel delivers a notification through one provider.
type Channel interface {
	Send(ctx context.Context, notification *types.Notification) DeliveryResult
}

// SimulatedChannel stands in for a real provider. Each send succeeds with
// the configured probability.
type SimulatedChannel struct {
	channel     types.NotificationType
	successRate float64
	latency     time.Duration
	logger      *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulatedChannel(channel types.NotificationType, successRate float64, latency time.Duration, src rand.Source, logger *zap.Logger) *SimulatedChannel {
	return &SimulatedChannel{
		channel:     channel,
		successRate: successRate,
		latency:     latency,
		logger:      logger,
		rnd:         rand.New(src),
	}
}

// NewSimulatedChannels builds one simulated channel per notification type.
func NewSimulatedChannels(cfg config.DeliveryConfig, latency time.Duration, seed int64, logger *zap.Logger) map[types.NotificationType]Channel {
	return map[types.NotificationType]Channel{
		types.NotificationTypeEmail: NewSimulatedChannel(types.NotificationTypeEmail, cfg.EmailSuccessRate, latency, rand.NewSource(seed), logger),
		types.NotificationTypeSMS:   NewSimulatedChannel(types.NotificationTypeSMS, cfg.SMSSuccessRate, latency, rand.NewSource(seed+1), logger),
		types.NotificationTypePush:  NewSimulatedChannel(types.NotificationTypePush, cfg.PushSuccessRate, latency, rand.NewSource(seed+2), logger),
	}
}

func (c *SimulatedChannel) Send(ctx context.Context, notification *types.Notification) DeliveryResult {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return DeliveryResult{Error: ctx.Err().Error()}
		}
	}

	c.mu.Lock()
	roll := c.rnd.Float64()
	c.mu.Unlock()

	if roll >= c.successRate {
		return DeliveryResult{Error: fmt.Sprintf("%s provider unavailable", c.channel)}
	}

	c.logger.Info("Mock notification sent",
		zap.String("type", string(c.channel)),
		zap.String("recipient", notification.Recipient),
		zap.String("subject", notification.Subject))
	return DeliveryResult{
		Success:     true,
		ProviderRef: fmt.Sprintf("%s-%s", c.channel, uuid.NewString()),
	}
}
