package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/config"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/handlers"
	sharedHTTP "github.com/distributed-ecommerce-saga/storefront-functions/internal/http"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/logging"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/messaging"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/observability"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/repository"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, config.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("🚀 Starting Inventory Functions...", zap.String("version", config.ServiceVersion))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown error", zap.Error(err))
		}
	}()

	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	broker, err := initBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer broker.close()

	alerts := service.NewAlertService(store, broker.publisher, logger)
	ledger := service.NewStockLedger(store, alerts, logger)
	hooks := service.NewOrderHooks(ledger, logger)
	restock := service.NewRestockService(store, logger)
	report := service.NewReportService(store, cfg.DefaultLowStockThreshold, logger)
	channels := service.NewSimulatedChannels(cfg.Delivery, 200*time.Millisecond, time.Now().UnixNano(), logger)
	notifications := service.NewNotificationService(store, channels, logger)

	inventoryHandler := handlers.NewInventoryHandler(ledger, alerts, restock, report, logger)
	notificationHandler := handlers.NewNotificationHandler(notifications, logger)
	orderEventHandler := handlers.NewOrderEventHandler(hooks, notifications, logger)

	if err := broker.start(ctx, orderEventHandler.HandleOrderEvent); err != nil {
		return err
	}

	app := setupFiberApp(logger)
	setupRoutes(app, inventoryHandler, notificationHandler)

	go func() {
		<-ctx.Done()
		logger.Info("🛑 Shutting down Inventory Functions...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}()

	logger.Info("🌍 Inventory Functions running", zap.String("address", "http://localhost:"+cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server startup error: %w", err)
	}
	return nil
}

func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("Using in-memory store, data is not persisted")
		return repository.NewMemoryStore(), func() {}, nil

	case config.StoreDriverMongo:
		client, err := initMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("MongoDB disconnect error", zap.Error(err))
			}
		}
		return store, closeFn, nil

	default:
		db, err := initDatabase(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
}

func initDatabase(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("database open error: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping error: %w", err)
	}

	logger.Info("✅ Database connection successful", zap.String("database", cfg.Name))
	return db, nil
}

func initMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping error: %w", err)
	}

	logger.Info("✅ MongoDB connection successful", zap.String("database", cfg.Database))
	return client, nil
}

// broker bundles the order event source and the inventory event sink for
// the configured EVENT_BROKER.
type broker struct {
	publisher service.EventPublisher
	start     func(ctx context.Context, handler messaging.OrderEventHandler) error
	close     func()
}

func initBroker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*broker, error) {
	switch cfg.EventBroker {
	case config.EventBrokerRabbitMQ:
		rabbitConfig, err := messaging.NewRabbitMQConfig()
		if err != nil {
			return nil, err
		}
		rabbitClient := messaging.NewRabbitMQClient(ctx, rabbitConfig, logger)
		if err := rabbitClient.Connect(); err != nil {
			return nil, fmt.Errorf("RabbitMQ connection error: %w", err)
		}

		consumer := messaging.NewConsumer(rabbitClient, rabbitConfig.Queue, config.ServiceName, logger)
		return &broker{
			publisher: messaging.NewPublisher(rabbitClient, logger),
			start: func(ctx context.Context, handler messaging.OrderEventHandler) error {
				logger.Info("🐰 Starting RabbitMQ event consumption...")
				return consumer.ConsumeOrderEvents(ctx, messaging.OrderRoutingKeys, handler)
			},
			close: func() { rabbitClient.Close() },
		}, nil

	case config.EventBrokerKafka:
		consumer := messaging.NewKafkaConsumer(cfg.Kafka, logger)
		publisher := messaging.NewKafkaPublisher(cfg.Kafka, logger)
		return &broker{
			publisher: publisher,
			start: func(ctx context.Context, handler messaging.OrderEventHandler) error {
				go func() {
					if err := consumer.Run(ctx, handler); err != nil {
						logger.Error("Kafka consumption error", zap.Error(err))
					}
				}()
				return nil
			},
			close: func() {
				if err := consumer.Close(); err != nil {
					logger.Warn("Kafka reader close error", zap.Error(err))
				}
				if err := publisher.Close(); err != nil {
					logger.Warn("Kafka writer close error", zap.Error(err))
				}
			},
		}, nil

	default:
		logger.Warn("No event broker configured, order triggers are disabled")
		return &broker{
			start: func(context.Context, messaging.OrderEventHandler) error { return nil },
			close: func() {},
		}, nil
	}
}

func setupFiberApp(logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Inventory Functions v" + config.ServiceVersion,
		ErrorHandler: errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID," + auth.HeaderUserID + "," + auth.HeaderRole,
	}))
	app.Use(observability.Middleware())
	app.Use(auth.Middleware())

	return app
}

func setupRoutes(app *fiber.App, inventoryHandler *handlers.InventoryHandler, notificationHandler *handlers.NotificationHandler) {
	api := app.Group("/api/v1")
	api.Get("/health", inventoryHandler.HealthCheck)
	inventoryHandler.RegisterRoutes(api)
	notificationHandler.RegisterRoutes(api)

	app.Use("*", func(c *fiber.Ctx) error {
		return sharedHTTP.NotFoundResponse(c, "Route not found")
	})
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
			return c.Status(fiberErr.Code).JSON(sharedHTTP.APIResponse{
				Success:   false,
				Message:   fiberErr.Message,
				Error:     &sharedHTTP.APIError{Code: "REQUEST_ERROR", Message: fiberErr.Message},
				Timestamp: time.Now(),
				RequestID: c.Get("X-Request-ID"),
			})
		}

		logger.Error("Unhandled request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return sharedHTTP.InternalServerErrorResponse(c, "Internal server error")
	}
}
