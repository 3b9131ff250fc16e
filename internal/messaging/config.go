package messaging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultExchange = "storefront.events"
	DefaultQueue    = "inventory-functions-queue"

	RoutingKeyOrderCreated = "orders.order.created"
	RoutingKeyOrderUpdated = "orders.order.updated"
)

// OrderRoutingKeys are the bindings the inventory consumer listens on.
var OrderRoutingKeys = []string{RoutingKeyOrderCreated, RoutingKeyOrderUpdated}

type RabbitMQConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	VHost             string
	Exchange          string
	Queue             string
	RetryCount        int
	RetryDelay        time.Duration
	ConnectionTimeout time.Duration
}

func NewRabbitMQConfig() (*RabbitMQConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("RABBITMQ_PORT", "5672"))
	if err != nil {
		return nil, fmt.Errorf("RABBITMQ_PORT: %w", err)
	}
	retryCount, err := strconv.Atoi(getEnvOrDefault("RABBITMQ_RETRY_COUNT", "3"))
	if err != nil || retryCount < 1 {
		return nil, fmt.Errorf("RABBITMQ_RETRY_COUNT must be a positive integer")
	}

	return &RabbitMQConfig{
		Host:              getEnvOrDefault("RABBITMQ_HOST", "localhost"),
		Port:              port,
		Username:          getEnvOrDefault("RABBITMQ_USERNAME", "guest"),
		Password:          getEnvOrDefault("RABBITMQ_PASSWORD", "guest"),
		VHost:             getEnvOrDefault("RABBITMQ_VHOST", "/"),
		Exchange:          getEnvOrDefault("RABBITMQ_EXCHANGE", DefaultExchange),
		Queue:             getEnvOrDefault("RABBITMQ_QUEUE", DefaultQueue),
		RetryCount:        retryCount,
		RetryDelay:        time.Second * 5,
		ConnectionTimeout: time.Second * 30,
	}, nil
}

func (c *RabbitMQConfig) ConnectionURL() string {
	vhost := c.VHost
	if vhost != "/" && !strings.HasPrefix(vhost, "/") {
		vhost = "/" + vhost
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.Username, c.Password, c.Host, c.Port, vhost)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
