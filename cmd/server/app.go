package main

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/castpost/castpost-api/internal/config"
	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/events"
	"github.com/castpost/castpost-api/internal/platform/facebook"
	"github.com/castpost/castpost-api/internal/platform/instagram"
	"github.com/castpost/castpost-api/internal/platform/linkedin"
	"github.com/castpost/castpost-api/internal/platform/postgres"
	"github.com/castpost/castpost-api/internal/platform/threads"
	"github.com/castpost/castpost-api/internal/platform/x"
	"github.com/castpost/castpost-api/internal/publish"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/service/auth"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/castpost/castpost-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore      store.TaskStore
	selectionStore store.SelectionStore
	platformStore  store.PlatformStore
	contentStore   store.ContentStore
	attemptStore   store.AttemptStore
	errorLogStore  store.ErrorLogStore

	// Services
	jwtService      auth.JWTService
	credentialStore credential.Store
	registry        *publish.Registry
	orchestrator    *service.ExecutionOrchestrator
	dispatchService *service.DispatchService
	scheduler       *service.Scheduler

	// Event system
	eventEmitter events.EventEmitter

	// Execution queue
	runner *task.Runner
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.selectionStore = postgres.NewPostgresSelectionStore(db)
	app.platformStore = postgres.NewPostgresPlatformStore(db)
	app.contentStore = postgres.NewPostgresContentStore(db)
	app.attemptStore = postgres.NewPostgresAttemptStore(db)
	app.errorLogStore = postgres.NewPostgresErrorLogStore(db)

	clock := publish.SystemClock{}

	sealKey, err := hex.DecodeString(cfg.Auth.TokenSealKey)
	if err != nil {
		return nil, fmt.Errorf("invalid token seal key: %w", err)
	}
	app.credentialStore, err = credential.NewStore(app.platformStore, sealKey, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	app.registry, err = buildAdapterRegistry(cfg.Publisher, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build adapter registry: %w", err)
	}
	logger.Info("platform adapters registered", "platforms", app.registry.Names())

	txRunner := store.NewTxRunner(db)

	app.orchestrator = service.NewExecutionOrchestrator(
		txRunner,
		app.taskStore,
		app.selectionStore,
		app.platformStore,
		app.contentStore,
		app.attemptStore,
		app.errorLogStore,
		app.credentialStore,
		app.registry,
		clock,
		logger,
	)

	app.runner = task.NewRunner(app.orchestrator, task.RunnerConfig{
		WorkerCount:    cfg.Publisher.WorkerCount,
		QueueSize:      cfg.Publisher.QueueSize,
		MaxRetries:     cfg.Publisher.JobMaxRetries,
		RetryBaseDelay: 5 * time.Second,
	}, clock, logger)

	app.dispatchService = service.NewDispatchService(txRunner, app.taskStore, app.runner, logger)

	app.scheduler, err = service.NewScheduler(app.dispatchService, service.SchedulerConfig{
		CronSpec:  cfg.Scheduler.CronSpec,
		BatchSize: cfg.Scheduler.BatchSize,
	}, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	// Post-now requests flow through the event emitter so API handlers stay
	// decoupled from the dispatch service.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewDispatchEventHandler(app.dispatchService, logger))
	app.eventEmitter = emitter

	logger.Info("application initialized")
	return app, nil
}

// buildAdapterRegistry constructs one adapter per supported platform and
// registers them under their API names.
func buildAdapterRegistry(cfg config.PublisherConfig, clock publish.Clock, logger *slog.Logger) (*publish.Registry, error) {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	retry := publish.NewRetryPolicy(
		cfg.NetworkMaxRetries,
		2*time.Second,
		30*time.Second,
		clock,
	)

	processorCfg := publish.DefaultProcessorConfig()
	processorCfg.PollBudget = time.Duration(cfg.MediaPollBudgetSeconds) * time.Second
	processor := publish.NewProcessor(processorCfg, clock)

	registry := publish.NewRegistry()
	adapters := []publish.Adapter{
		facebook.New(facebook.Config{Timeout: timeout}, retry, logger),
		instagram.New(instagram.Config{Timeout: timeout}, processor, retry, logger),
		threads.New(threads.Config{Timeout: timeout}, processor, retry, logger),
		linkedin.New(linkedin.Config{Timeout: timeout}, retry, logger),
		x.New(x.Config{Timeout: timeout}, retry, logger),
	}

	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// start brings up the background machinery: the execution worker pool and
// the due-task scheduler.
func (app *application) start() {
	app.runner.Start()
	app.scheduler.Start()
	app.logger.Info("background workers started",
		"worker_count", app.config.Publisher.WorkerCount,
		"scan_spec", app.config.Scheduler.CronSpec)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
