package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/config"
	payments_http "payment-service/internal/handler/http/payments"
	kafka_handler "payment-service/internal/handler/kafka"
	"payment-service/internal/infrastructure/database"
	kafka_infra "payment-service/internal/infrastructure/kafka"
	"payment-service/internal/infrastructure/random"
	"payment-service/internal/metrics"
	"payment-service/internal/publisher"
	"payment-service/internal/repository/payments_repo"
)

func newServeCommand() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the order-events consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, !skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, appLogger *zap.Logger, runMigrations bool) error {
	appLogger.Info("Payment Service starting...")

	db, err := database.Connect(ctx, database.ConnectOptions{
		DSN:        cfg.GetDBConnectionString(),
		MaxRetries: 10,
		RetryDelay: 5 * time.Second,
	}, appLogger.With(zap.String("component", "Database")))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	if runMigrations {
		if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString(), database.MigrateUp, 0,
			appLogger.With(zap.String("component", "Migrations"))); err != nil {
			return err
		}
	}

	topicsCtx, cancelTopics := context.WithTimeout(ctx, 10*time.Second)
	err = ensureKafkaTopics(topicsCtx, cfg.GetKafkaBrokers(),
		topicSpecs([]string{cfg.KafkaOrderEventsTopic, cfg.KafkaPaymentEventsTopic}, cfg.KafkaTopicPartitions),
		appLogger.With(zap.String("component", "KafkaAdmin")))
	cancelTopics()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	paymentRepository := payments_repo.NewPaymentRepository(db)

	randomClient := random.NewClient(random.ClientConfig{
		BaseURL: cfg.RandomAPI.BaseURL,
		Path:    cfg.RandomAPI.Path,
		Min:     cfg.RandomAPI.Min,
		Max:     cfg.RandomAPI.Max,
		Count:   cfg.RandomAPI.Count,
		Timeout: cfg.RandomAPI.Timeout,
	}, appLogger.With(zap.String("component", "RandomClient")))

	kafkaProducer := kafka_infra.NewProducer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaPaymentEventsTopic,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	eventPublisher := publisher.New(kafkaProducer, publisher.Config{
		QueueSize:      cfg.PublishQueueSize,
		Workers:        cfg.PublishWorkers,
		EnqueueTimeout: cfg.PublishEnqueueTimeout,
	}, appMetrics, appLogger.With(zap.String("component", "PaymentEventPublisher")))

	paymentService := payments.NewPaymentService(
		paymentRepository,
		payments.NewDecisionPolicy(randomClient, paymentRepository, appMetrics, appLogger.With(zap.String("component", "DecisionPolicy"))),
		eventPublisher,
		appMetrics,
		appLogger.With(zap.String("component", "PaymentService")),
		payments.WithCreateTimeout(cfg.CreateTimeout),
	)
	appLogger.Info("Payment Service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(appMetrics.Middleware)
	router.Handle("/metrics", appMetrics.Handler())
	payments_http.RegisterRoutes(router, paymentService, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	orderEventsConsumer := kafka_infra.NewConsumer(kafka_infra.ConsumerConfig{
		Brokers:     cfg.GetKafkaBrokers(),
		Topic:       cfg.KafkaOrderEventsTopic,
		GroupID:     cfg.KafkaConsumerGroup,
		Workers:     cfg.KafkaWorkers,
		MaxAttempts: cfg.KafkaHandlerMaxAttempts,
		Backoff:     cfg.KafkaHandlerBackoff,
	},
		kafka_handler.OrderCreatedMessageHandler(paymentService, appMetrics, appLogger.With(zap.String("component", "OrderCreatedHandler"))),
		appMetrics,
		appLogger.With(zap.String("component", "OrderEventsConsumer")),
	)

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	var consumerWG sync.WaitGroup
	consumerWG.Add(1)
	go func() {
		defer consumerWG.Done()
		appLogger.Info("Starting Order Events Kafka Consumer...")
		if err := orderEventsConsumer.Consume(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Order Events Kafka Consumer failed", zap.Error(err))
		}
		appLogger.Info("Order Events Kafka Consumer stopped.")
	}()

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down application...")
	case runErr = <-serverErr:
		appLogger.Error("HTTP server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// HTTP first so no new creates start, then drain the consumer, then the
	// publisher so queued outcome events still go out.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelConsumer()
	consumerWG.Wait()
	if err := orderEventsConsumer.Close(); err != nil {
		appLogger.Error("Error closing Order Events Kafka Consumer", zap.Error(err))
	}

	if err := eventPublisher.Close(); err != nil {
		appLogger.Error("Error closing payment event publisher", zap.Error(err))
	}

	appLogger.Info("Application gracefully shut down.")
	return runErr
}
