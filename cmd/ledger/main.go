package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/ledger"
	"github.com/tair/stock-ledger/internal/ledger/cache"
	httpDelivery "github.com/tair/stock-ledger/internal/ledger/delivery/http"
	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/repository"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/database"
	"github.com/tair/stock-ledger/pkg/logger"
	"github.com/tair/stock-ledger/pkg/tracing"
)

func main() {
	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "ledger-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting ledger service")

	// Initialize tracing
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shut down tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "ledgerdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := db.AutoMigrate(&domain.ProductStock{}, &domain.LedgerEntry{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Redis stock snapshot cache (optional)
	var stockCache *cache.StockCache
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
		})
		stockCache = cache.NewStockCache(redisClient, cache.DefaultTTL)
		logger.Logger.Info().Str("addr", redisAddr).Msg("Stock snapshot cache enabled")
	}

	// Kafka publisher (optional)
	var publisher *kafka.Publisher
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		publisher, err = kafka.NewPublisher(strings.Split(brokers, ","))
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer publisher.Close()
	}

	// Initialize handler with Wire DI
	handler, err := ledger.InitializeHTTPHandler(db, stockCache, publisher)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	// Kafka consumer for order lifecycle events (optional)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	if brokers != "" {
		if err := startOrderConsumer(consumerCtx, strings.Split(brokers, ","), db, stockCache, publisher); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start order consumer")
		}
	}

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8083")
	go startHTTPServer(handler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func startHTTPServer(handler *httpDelivery.LedgerHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register middlewares and routes
	httpDelivery.RegisterMiddlewares(router, httpDelivery.DefaultMiddlewareConfig())
	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := httpDelivery.SetupCORS(httpDelivery.DefaultMiddlewareConfig())

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	if err := http.ListenAndServe(":"+port, c(router)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

// startOrderConsumer subscribes to the order workflow topics and drives
// sales and returns through the same apply-change path as the HTTP API.
func startOrderConsumer(ctx context.Context, brokers []string, db *gorm.DB, stockCache *cache.StockCache, publisher *kafka.Publisher) error {
	consumer, err := kafka.NewConsumer(
		brokers,
		getEnv("KAFKA_GROUP_ID", "ledger-service"),
		[]string{kafka.TopicOrderCompleted, kafka.TopicOrderReturned},
	)
	if err != nil {
		return err
	}

	apply := command.NewApplyChangeHandler(
		repository.NewTracingStockRepository(repository.NewGormStockRepository(db)),
		repository.NewTracingLedgerRepository(repository.NewGormLedgerRepository(db)),
		publisher,
		stockCache,
	)

	consumer.RegisterHandler(kafka.EventTypeOrderCompleted, orderHandler(apply, "sale"))
	consumer.RegisterHandler(kafka.EventTypeOrderReturned, orderHandler(apply, "return"))

	return consumer.Start(ctx)
}

func orderHandler(apply *command.ApplyChangeHandler, operation string) kafka.OrderEventHandler {
	return func(ctx context.Context, event kafka.OrderLifecycleEvent) error {
		for _, item := range event.Items {
			orderID := event.OrderID
			_, err := apply.Handle(ctx, command.ApplyChangeCommand{
				ProductID: item.ProductID,
				Operation: operation,
				Quantity:  item.Quantity,
				OrderID:   &orderID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
