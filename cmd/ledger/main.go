package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ledger/internal/app/customers"
	"ledger/internal/app/ledger"
	"ledger/internal/config"
	ledger_http "ledger/internal/handler/http/ledger"
	"ledger/internal/infrastructure/database"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/infrastructure/observability"
	"ledger/internal/infrastructure/resilience"
	"ledger/internal/outbox"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/cards_repo"
	"ledger/internal/repository/customers_repo"
	"ledger/internal/repository/ledger_repo"
	"ledger/internal/repository/outbox_repo"
)

const serviceName = "ledger-service"

func connectDB(cfg database.DBConfig, logger *zap.Logger) (*sql.DB, error) {
	maxRetries := 10
	retryDelay := 5 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := database.NewPostgresDB(cfg)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database!")
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, lastErr)
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Running database migrations...", zap.String("source", cfg.MigrationsPath))
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully (or no new migrations).")
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Ledger Service starting...")

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), cfg.OTelEndpoint, serviceName)
		if err != nil {
			appLogger.Warn("Tracing disabled, exporter could not be created", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracer(ctx); err != nil {
					appLogger.Error("Error flushing traces", zap.Error(err))
				}
			}()
		}
	}

	appLogger.Info("Waiting for database to be available...")
	db, err := connectDB(cfg.DBConfig, appLogger)
	if err != nil {
		appLogger.Fatal("Database unavailable. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	if err := runMigrations(cfg, appLogger); err != nil {
		appLogger.Fatal("Migrations failed", zap.Error(err))
	}

	kafkaBrokers := cfg.GetKafkaBrokers()
	topicCtx, topicCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = kafka_infra.EnsureTopics(topicCtx, kafkaBrokers, []string{cfg.LedgerEventsTopic}, appLogger)
	topicCancel()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	txManager := database.NewTxManager(db, cfg.TxConfig(),
		appLogger.With(zap.String("component", "TxManager")), metrics.IncrTxRetry)

	directory := customers.NewDirectory(db, customers_repo.NewCustomerRepository(),
		appLogger.With(zap.String("component", "CustomerDirectory")))

	outboxRepository := outbox_repo.NewOutboxRepository()
	ledgerService := ledger.NewService(
		directory,
		directory,
		txManager,
		ledger.Repositories{
			Accounts: accounts_repo.NewAccountRepository(),
			Entries:  ledger_repo.NewLedgerRepository(),
			Cards:    cards_repo.NewCardRepository(),
			Outbox:   outboxRepository,
		},
		metrics,
		appLogger.With(zap.String("component", "LedgerService")),
	)
	appLogger.Info("Ledger Service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(observability.TracingMiddleware)
	router.Use(observability.RequestLogger(appLogger.With(zap.String("component", "HTTP")), ledger_http.HeaderIdentificationNo))
	ledger_http.RegisterRoutes(router, ledgerService, metrics.Registry, appLogger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	kafkaProducer := kafka_infra.NewProducer(
		kafkaBrokers,
		cfg.LedgerEventsTopic,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}()

	breaker := resilience.NewCircuitBreaker("kafka-publish", func(name string, from, to gobreaker.State) {
		appLogger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
	})

	outboxProcessor := outbox.NewProcessor(
		txManager,
		outboxRepository,
		kafkaProducer,
		breaker,
		metrics,
		outbox.Config{
			PollInterval: cfg.OutboxPollInterval,
			PollTimeout:  cfg.OutboxPollTimeout,
			BatchSize:    cfg.OutboxBatchSize,
		},
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return outboxProcessor.Start(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutting down application...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Ledger Service stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("Application gracefully shut down.")
}
