package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8006", cfg.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, EventBrokerRabbitMQ, cfg.EventBroker)
	assert.Equal(t, 10, cfg.DefaultLowStockThreshold)
	assert.InDelta(t, 0.95, cfg.Delivery.EmailSuccessRate, 1e-9)
	assert.InDelta(t, 0.90, cfg.Delivery.SMSSuccessRate, 1e-9)
	assert.InDelta(t, 0.85, cfg.Delivery.PushSuccessRate, 1e-9)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "inventory-events", cfg.Kafka.InventoryTopic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("EVENT_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("NOTIFY_SMS_SUCCESS_RATE", "1")
	t.Setenv("LOW_STOCK_DEFAULT_THRESHOLD", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 1.0, cfg.Delivery.SMSSuccessRate, 1e-9)
	assert.Equal(t, 5, cfg.DefaultLowStockThreshold)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":                "sqlite",
		"EVENT_BROKER":                "nats",
		"NOTIFY_EMAIL_SUCCESS_RATE":   "1.5",
		"LOW_STOCK_DEFAULT_THRESHOLD": "ten",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPostgresConfig_ConnectionString(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n"}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", c.ConnectionString())
}
