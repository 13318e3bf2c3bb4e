package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bwitty-orders/internal/auth"
	"bwitty-orders/internal/config"
	"bwitty-orders/internal/database"
	"bwitty-orders/internal/events"
	"bwitty-orders/internal/handler"
	"bwitty-orders/internal/idempotency"
	"bwitty-orders/internal/metrics"
	"bwitty-orders/internal/paystack"
	"bwitty-orders/internal/repository"
	"bwitty-orders/internal/router"
	"bwitty-orders/internal/service"
	"bwitty-orders/internal/shipping"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting bwitty-orders API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	rates, err := loadRates(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load shipping rates: %w", err)
	}

	deliveries, closeDeliveries := deliveryStore(ctx, cfg.Redis, logger)
	defer closeDeliveries()

	publisher := eventPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	gateway := paystack.NewClient(paystack.Config{
		SecretKey:   cfg.Paystack.SecretKey,
		BaseURL:     cfg.Paystack.BaseURL,
		Timeout:     cfg.Paystack.Timeout(),
		MaxAttempts: cfg.Paystack.VerifyMaxAttempts,
	}, logger)

	m := metrics.New()

	// Initialize services
	deps := service.Dependencies{
		Orders:    orderRepo,
		Products:  productRepo,
		Gateway:   gateway,
		Rates:     rates,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,

		VerifyDeadline: cfg.Paystack.VerifyDeadline(),
	}
	productService := service.NewProductService(productRepo, logger)
	checkoutService := service.NewCheckoutService(deps, service.CheckoutSettings{
		Currency:    cfg.Paystack.Currency,
		CallbackURL: cfg.Paystack.CallbackURL,
	})
	paymentService := service.NewPaymentService(deps)
	orderService := service.NewOrderService(deps)

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Payments: handler.NewPaymentHandler(paymentService, cfg.Paystack.PublicKey, cfg.Paystack.Currency, logger),
		Webhook:  handler.NewWebhookHandler(paymentService, deliveries, cfg.Paystack.SecretKey, cfg.Redis.DeliveryTTL(), m, logger),
	}

	// Initialize router
	mux := router.New(handlers, router.Options{
		Tokens:        auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Metrics:       m,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// loadRates reads the shipping rate table, preferring S3 when it is enabled.
func loadRates(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*shipping.RateTable, error) {
	fileLoader := shipping.NewFileLoader(logger)

	var s3Loader shipping.Loader
	if cfg.S3.Enabled {
		loader, err := shipping.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for the shipping rate table (S3 disabled)")
	}

	loader := shipping.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	return shipping.LoadTable(ctx, loader, cfg.Shipping.RatesFile, logger)
}

// deliveryStore connects the webhook delivery store. Without Redis, deliveries
// are kept in memory and only deduplicate within this process.
func deliveryStore(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (idempotency.DeliveryStore, func()) {
	if cfg.Addr == "" {
		logger.Info().Msg("redis not configured, using in-memory webhook deliveries")
		return idempotency.NewMemoryStore(), func() {}
	}

	client, err := idempotency.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory webhook deliveries")
		return idempotency.NewMemoryStore(), func() {}
	}

	logger.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return idempotency.NewRedisStore(client, logger), func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
}

func eventPublisher(cfg config.KafkaConfig, logger zerolog.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info().Msg("kafka not configured, order events are not published")
		return events.NopPublisher{}
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.OrderTopic).Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(cfg.Brokers, cfg.OrderTopic, logger)
}
