package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/puris-api/internal/api/middleware"
	"github.com/phrazzld/puris-api/internal/config"
	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/kafka"
	"github.com/phrazzld/puris-api/internal/platform/postgres"
	"github.com/phrazzld/puris-api/internal/platform/redis"
	"github.com/phrazzld/puris-api/internal/service"
	"github.com/phrazzld/puris-api/internal/store"
	"github.com/phrazzld/puris-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger   *slog.Logger
	db       *sql.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Stores
	requestStore  store.RequestStore
	responseStore store.ResponseStore

	// Service interfaces
	requestService  service.RequestService
	responseService service.ResponseService

	// Authentication
	partners *middleware.PartnerRegistry

	// Event system
	eventEmitter *events.InMemoryEventEmitter
	dispatcher   *task.Dispatcher

	// Optional integrations; nil when disabled
	publisher   *kafka.Publisher
	replayGuard *redis.ReplayGuard
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.registry = metrics.NewRegistry()
	app.metrics = metrics.New(app.registry)

	var err error
	app.partners, err = middleware.NewPartnerRegistry(cfg.Auth.Partners)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize partner registry: %w", err)
	}
	logger.Info("Partner registry initialized", "partners", app.partners.Len())

	app.requestStore = postgres.NewPostgresRequestStore(db, logger)
	app.responseStore = postgres.NewPostgresResponseStore(db, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	if cfg.Redis.Enabled {
		app.replayGuard = redis.NewReplayGuard(redis.NewClient(cfg.Redis.Addr), cfg.Redis.ReplayTTL, logger)
		if err := app.replayGuard.Ping(ctx); err != nil {
			// The guard is best effort; consumption still works without it.
			logger.Warn("Redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		logger.Info("Replay guard initialized", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.ReplayTTL)
	}

	app.requestService, err = service.NewRequestService(db, app.requestStore, app.eventEmitter, app.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create request service: %w", err)
	}

	// A nil *redis.ReplayGuard must not reach the service as a non-nil interface.
	var guard service.ReplayGuard
	if app.replayGuard != nil {
		guard = app.replayGuard
	}
	app.responseService, err = service.NewResponseService(
		db,
		app.requestStore,
		app.responseStore,
		guard,
		app.eventEmitter,
		app.metrics,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create response service: %w", err)
	}

	app.dispatcher = task.NewDispatcher(app.requestService, task.DispatcherConfig{
		WorkerCount:        cfg.Dispatcher.WorkerCount,
		QueueSize:          cfg.Dispatcher.QueueSize,
		StuckRequestAge:    cfg.Dispatcher.StuckRequestAge,
		StuckCheckInterval: cfg.Dispatcher.StuckCheckInterval,
	}, logger)
	app.eventEmitter.RegisterHandler(app.dispatcher)

	if cfg.Kafka.Enabled {
		writer := kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		app.publisher = kafka.NewPublisher(writer, cfg.Kafka.Topic, app.metrics, logger)
		app.eventEmitter.RegisterHandler(app.publisher)
		logger.Info("Kafka publisher initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	return app, nil
}

// Run starts the dispatcher and serves the API and operations servers until
// ctx is done, then releases all resources.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	app.logger.Info("Dispatcher started",
		"worker_count", app.config.Dispatcher.WorkerCount,
		"queue_size", app.config.Dispatcher.QueueSize)

	return app.startHTTPServers(ctx, app.setupRouter(), app.setupOpsRouter())
}

// cleanup releases application resources in reverse order of creation.
func (app *application) cleanup() {
	app.logger.Info("Cleaning up application resources")

	app.dispatcher.Stop()

	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("Failed to close Kafka publisher", "error", err)
		}
	}

	if app.replayGuard != nil {
		if err := app.replayGuard.Close(); err != nil {
			app.logger.Error("Failed to close Redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Failed to close database connection", "error", err)
		}
	}
}
