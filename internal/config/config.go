package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "inventory-functions"
	ServiceVersion = "1.0.0"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	EventBrokerRabbitMQ = "rabbitmq"
	EventBrokerKafka    = "kafka"
	EventBrokerNone     = "none"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreDriver string
	Postgres    PostgresConfig
	Mongo       MongoConfig

	EventBroker string
	Kafka       KafkaConfig

	OtelEndpoint string

	Delivery DeliveryConfig

	DefaultLowStockThreshold int
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name,
	)
}

type MongoConfig struct {
	URI      string
	Database string
}

type KafkaConfig struct {
	Brokers        []string
	OrderTopic     string
	InventoryTopic string
	GroupID        string
}

// DeliveryConfig holds success rates for the simulated notification providers.
type DeliveryConfig struct {
	EmailSuccessRate float64
	SMSSuccessRate   float64
	PushSuccessRate  float64
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8006"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "json"),
		StoreDriver: getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres),
		Postgres: PostgresConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvOrDefault("DB_NAME", "storefront_db"),
		},
		Mongo: MongoConfig{
			URI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnvOrDefault("MONGODB_DATABASE", "storefront"),
		},
		EventBroker: getEnvOrDefault("EVENT_BROKER", EventBrokerRabbitMQ),
		Kafka: KafkaConfig{
			Brokers:        splitList(getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
			OrderTopic:     getEnvOrDefault("KAFKA_ORDER_TOPIC", "order-events"),
			InventoryTopic: getEnvOrDefault("KAFKA_INVENTORY_TOPIC", "inventory-events"),
			GroupID:        getEnvOrDefault("KAFKA_GROUP_ID", ServiceName),
		},
		OtelEndpoint: os.Getenv("OTEL_ENDPOINT"),
	}

	var err error
	if cfg.Delivery.EmailSuccessRate, err = getEnvRate("NOTIFY_EMAIL_SUCCESS_RATE", 0.95); err != nil {
		return nil, err
	}
	if cfg.Delivery.SMSSuccessRate, err = getEnvRate("NOTIFY_SMS_SUCCESS_RATE", 0.90); err != nil {
		return nil, err
	}
	if cfg.Delivery.PushSuccessRate, err = getEnvRate("NOTIFY_PUSH_SUCCESS_RATE", 0.85); err != nil {
		return nil, err
	}
	if cfg.DefaultLowStockThreshold, err = getEnvInt("LOW_STOCK_DEFAULT_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.DefaultLowStockThreshold < 0 {
		return nil, fmt.Errorf("LOW_STOCK_DEFAULT_THRESHOLD must be non-negative")
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverMongo:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %q", cfg.StoreDriver)
	}

	switch cfg.EventBroker {
	case EventBrokerRabbitMQ, EventBrokerNone:
	case EventBrokerKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required when EVENT_BROKER=kafka")
		}
	default:
		return nil, fmt.Errorf("unsupported EVENT_BROKER: %q", cfg.EventBroker)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return parsed, nil
}

func getEnvRate(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return 0, fmt.Errorf("%s: expected a rate between 0 and 1, got %q", key, value)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
