package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mediagrab/grab-api/internal/config"
	"github.com/mediagrab/grab-api/internal/events"
	"github.com/mediagrab/grab-api/internal/fetch"
	"github.com/mediagrab/grab-api/internal/job"
	"github.com/mediagrab/grab-api/internal/service"
	"github.com/mediagrab/grab-api/internal/store"
)

// runnerEventHandler bridges the event emitter and the job runner: when a
// download is requested it hands the persisted job to the runner's queue.
type runnerEventHandler struct {
	runner *job.Runner
	logger *slog.Logger
}

// HandleEvent enqueues the referenced job for background processing.
func (h *runnerEventHandler) HandleEvent(ctx context.Context, event *events.JobRequestEvent) error {
	if event.Type != events.EventTypeDownloadRequested {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.DownloadRequestedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := h.runner.Enqueue(ctx, payload.JobID); err != nil {
		h.logger.Error("failed to enqueue job",
			"error", err,
			"job_id", payload.JobID,
			"event_id", event.ID)
		return err
	}

	return nil
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	jobStore    store.JobStore
	storeCloser io.Closer

	fetcher      fetch.Fetcher
	jobRunner    *job.Runner
	eventEmitter events.EventEmitter

	downloadService *service.DownloadService
}

// newApplication creates a new application instance with all dependencies
// initialized: the job store for the configured backend, the download
// engine, the background runner, and the download service wired to the
// runner through the event emitter.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jobStore, app.storeCloser, err = setupJobStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}
	logger.Info("job store initialized", "backend", cfg.Store.Backend)

	app.fetcher = fetch.NewYtdlpFetcher(cfg.Download.YtdlpPath, cfg.Download.Dir, logger)

	app.jobRunner = job.NewRunner(app.jobStore, app.fetcher, job.RunnerConfig{
		WorkerCount:     cfg.Job.WorkerCount,
		QueueSize:       cfg.Job.QueueSize,
		DownloadDir:     cfg.Download.Dir,
		JobTimeout:      time.Duration(cfg.Download.TimeoutMinutes) * time.Minute,
		Retention:       time.Duration(cfg.Job.RetentionMinutes) * time.Minute,
		StuckJobAge:     time.Duration(cfg.Job.StuckAgeMinutes) * time.Minute,
		CleanupInterval: time.Duration(cfg.Job.CleanupIntervalMinutes) * time.Minute,
	}, logger)

	if err := app.jobRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job runner: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(&runnerEventHandler{
		runner: app.jobRunner,
		logger: logger.With("component", "runner_event_handler"),
	})
	app.eventEmitter = emitter

	app.downloadService = service.NewDownloadService(
		app.jobStore,
		app.eventEmitter,
		app.jobRunner,
		logger,
	)

	logger.Info("application initialized")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.storeCloser != nil {
		if err := app.storeCloser.Close(); err != nil {
			app.logger.Error("error closing job store", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
