package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/fetch"
	"github.com/mediagrab/grab-api/internal/redact"
	"github.com/mediagrab/grab-api/internal/store"
)

// Common errors returned by the Runner
var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is closed")
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// DownloadDir is where finished files (and playlist archives) live
	DownloadDir string

	// JobTimeout bounds how long a single download may run
	JobTimeout time.Duration

	// Retention defines how long jobs are kept before the janitor purges them
	Retention time.Duration

	// StuckJobAge defines how long a job can sit in an active status without
	// an update before it's considered stalled and aborted
	StuckJobAge time.Duration

	// CleanupInterval defines how often the janitor runs
	// If zero, defaults to 5 minutes
	CleanupInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:     2,
		QueueSize:       100,
		DownloadDir:     "downloads",
		JobTimeout:      time.Hour,
		Retention:       time.Hour,
		StuckJobAge:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Runner manages background processing of download jobs: a buffered queue
// feeding a pool of workers, plus a janitor that purges old jobs and aborts
// stalled ones. Cancellation is cooperative; each running job has its own
// context that Cancel terminates.
type Runner struct {
	store      store.JobStore
	fetcher    fetch.Fetcher
	queue      chan uuid.UUID
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewRunner creates a new Runner
func NewRunner(jobStore store.JobStore, fetcher fetch.Fetcher, config RunnerConfig, logger *slog.Logger) *Runner {
	// Apply default check interval if not specified
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      jobStore,
		fetcher:    fetcher,
		queue:      make(chan uuid.UUID, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "job_runner"),
		running:    make(map[uuid.UUID]context.CancelFunc),
	}
}

// Enqueue adds a previously persisted job to the queue.
// Returns ErrQueueFull when the queue has no room and ErrQueueClosed after
// the runner has been stopped.
func (r *Runner) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if r.ctx.Err() != nil {
		return ErrQueueClosed
	}

	select {
	case r.queue <- jobID:
		r.logger.Debug("job enqueued",
			"job_id", jobID,
			"queue_len", len(r.queue),
			"queue_cap", cap(r.queue))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(r.queue))
	}
}

// Cancel terminates the job's download if it is currently running.
// Reports whether a running job was found. Queued jobs are not affected;
// workers check the store's cancel flag before starting them.
func (r *Runner) Cancel(jobID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.running[jobID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Start initializes the worker pool and begins processing jobs
func (r *Runner) Start() error {
	// Requeue unfinished jobs from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	// Start worker goroutines
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	// Start the janitor goroutine
	r.wg.Add(1)
	go r.janitor()

	return nil
}

// Stop gracefully shuts down the runner. The queue channel is left open so
// a late Enqueue fails with ErrQueueClosed instead of panicking.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

// Recover requeues jobs left in an active status by a previous run. Jobs
// that were mid-download when the process died are reset to queued so the
// download restarts from scratch.
func (r *Runner) Recover() error {
	ctx := context.Background()

	activeJobs, err := r.store.ListActiveJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list active jobs: %w", err)
	}

	if len(activeJobs) == 0 {
		return nil
	}

	r.logger.Info("recovering unfinished jobs", "count", len(activeJobs))

	for _, j := range activeJobs {
		if j.Status != domain.JobStatusQueued {
			if err := r.store.UpdateJobStatus(ctx, j.ID, domain.JobStatusQueued, ""); err != nil {
				r.logger.Error("failed to reset interrupted job",
					"job_id", j.ID,
					"error", err)
				continue
			}
		}

		select {
		case r.queue <- j.ID:
			// Successfully requeued
		default:
			r.logger.Error("failed to requeue job, queue is full", "job_id", j.ID)
		}
	}

	return nil
}

// worker processes jobs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case jobID := <-r.queue:
			r.process(jobID, id)
		}
	}
}

// process handles execution of a single download job
func (r *Runner) process(jobID uuid.UUID, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"job_id", jobID,
		"worker_id", workerID,
	)

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("failed to load job", "error", err)
		return
	}

	// Cancelled while still queued: never start the download.
	if job.CancelRequested {
		logger.Info("job cancelled before start")
		if err := r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCancelled, ""); err != nil {
			logger.Error("failed to mark job cancelled", "error", err)
		}
		return
	}

	if err := job.TransitionTo(domain.JobStatusStarting); err != nil {
		logger.Error("job in unexpected status", "status", job.Status, "error", err)
		return
	}
	job.Progress = 0
	if err := r.store.UpdateJob(ctx, job); err != nil {
		logger.Error("failed to update job status to starting", "error", err)
		return
	}

	// Per-job context so Cancel can terminate just this download.
	jobCtx, cancelJob := context.WithTimeout(r.ctx, r.config.JobTimeout)
	defer cancelJob()

	r.track(jobID, cancelJob)
	defer r.untrack(jobID)

	// A cancel landing between the load above and track cannot find a
	// running download to terminate, so re-read the flag now that Cancel
	// would find one.
	if r.cancelRequested(ctx, jobID) {
		logger.Info("job cancelled before download started")
		if err := r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCancelled, ""); err != nil {
			logger.Error("failed to mark job cancelled", "error", err)
		}
		return
	}

	logger.Info("processing job", "url", redact.String(job.URL))

	result, fetchErr := r.fetcher.Fetch(jobCtx, fetch.Request{
		URL:     job.URL,
		Quality: job.Quality,
		Kind:    job.Kind,
	}, func(p fetch.Progress) {
		r.recordProgress(ctx, jobID, cancelJob, p, logger)
	})

	if fetchErr != nil {
		r.finishWithError(ctx, jobID, jobCtx, fetchErr, logger)
		return
	}

	r.finish(ctx, jobID, result, logger)
}

// cancelRequested reports whether the store carries the cancel flag for the
// job. Load failures count as not cancelled; the download surfaces them.
func (r *Runner) cancelRequested(ctx context.Context, jobID uuid.UUID) bool {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		r.logger.Error("failed to reload job for cancel check", "job_id", jobID, "error", err)
		return false
	}
	return job.CancelRequested
}

// recordProgress persists one progress snapshot. The job is reloaded from
// the store each tick so a cancel flag set by another process is honored;
// this is also what keeps downloads cancellable when several server
// processes share a SQL-backed store and the cancel request landed elsewhere.
func (r *Runner) recordProgress(ctx context.Context, jobID uuid.UUID, cancelJob context.CancelFunc, p fetch.Progress, logger *slog.Logger) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("failed to reload job for progress update", "error", err)
		return
	}

	if job.CancelRequested {
		cancelJob()
	}

	status := domain.JobStatusDownloading
	if p.FileDone {
		// Individual file finished; playlist may still continue
		status = domain.JobStatusProcessing
	}

	if err := job.TransitionTo(status); err != nil {
		logger.Debug("skipping progress status change", "from", job.Status, "to", status)
	}
	job.RecordProgress(p.OverallPercent(), p.DownloadedBytes, p.TotalBytes, p.SpeedBPS, p.ETASeconds)

	if err := r.store.UpdateJob(ctx, job); err != nil {
		logger.Error("failed to persist job progress", "error", err)
	}
}

// finish completes a successful job, bundling playlist files into a single
// archive first.
func (r *Runner) finish(ctx context.Context, jobID uuid.UUID, result *fetch.Result, logger *slog.Logger) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("failed to reload finished job", "error", err)
		return
	}

	if len(result.Files) == 0 {
		r.fail(ctx, jobID, "download produced no files", logger)
		return
	}

	if result.Playlist {
		if err := job.TransitionTo(domain.JobStatusProcessing); err == nil {
			if err := r.store.UpdateJob(ctx, job); err != nil {
				logger.Error("failed to update job status to processing", "error", err)
			}
		}

		zipName, err := fetch.BundleZip(r.config.DownloadDir, result.Title, result.Files)
		if err != nil {
			logger.Error("failed to bundle playlist archive", "error", err)
			r.fail(ctx, jobID, "failed to bundle playlist archive", logger)
			return
		}
		job.Filename = zipName
	} else {
		job.Filename = filepath.Base(result.Files[0])
	}

	if err := job.TransitionTo(domain.JobStatusCompleted); err != nil {
		logger.Error("failed to complete job", "status", job.Status, "error", err)
		return
	}
	job.RecordProgress(100, job.DownloadedBytes, job.TotalBytes, 0, 0)
	job.ErrorMessage = ""

	if err := r.store.UpdateJob(ctx, job); err != nil {
		logger.Error("failed to update job status to completed", "error", err)
		return
	}

	logger.Info("job completed", "filename", job.Filename)
}

// finishWithError maps a fetch failure to the cancelled or failed status.
// Progress accumulated so far is preserved either way.
func (r *Runner) finishWithError(ctx context.Context, jobID uuid.UUID, jobCtx context.Context, fetchErr error, logger *slog.Logger) {
	switch {
	case errors.Is(fetchErr, context.Canceled) || jobCtx.Err() == context.Canceled:
		logger.Info("job cancelled")
		if err := r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCancelled, ""); err != nil {
			logger.Error("failed to mark job cancelled", "error", err)
		}

	case errors.Is(fetchErr, context.DeadlineExceeded):
		logger.Error("job timed out")
		r.fail(ctx, jobID, "download timed out", logger)

	default:
		logger.Error("job failed", "error", redact.Error(fetchErr))
		r.fail(ctx, jobID, redact.Error(fetchErr), logger)
	}
}

func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, message string, logger *slog.Logger) {
	if err := r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, message); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}
}

func (r *Runner) track(jobID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[jobID] = cancel
}

func (r *Runner) untrack(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, jobID)
}

// janitor periodically purges old jobs and aborts jobs that have been in an
// active status for too long without an update.
func (r *Runner) janitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			removed, err := r.store.DeleteJobsOlderThan(ctx, r.config.Retention)
			if err != nil {
				r.logger.Error("failed to purge old jobs", "error", err)
			} else if removed > 0 {
				r.logger.Info("purged old jobs", "count", removed)
			}

			stuck, err := r.store.ListActiveJobs(ctx, r.config.StuckJobAge)
			if err != nil {
				r.logger.Error("failed to check for stalled jobs", "error", err)
				continue
			}

			for _, j := range stuck {
				r.logger.Warn("aborting stalled job",
					"job_id", j.ID,
					"status", j.Status,
					"updated_at", j.UpdatedAt)

				// Kill the download if this process is still running it.
				r.Cancel(j.ID)

				if err := r.store.UpdateJobStatus(ctx, j.ID, domain.JobStatusFailed,
					"job stalled and was aborted"); err != nil {
					r.logger.Error("failed to mark stalled job failed",
						"job_id", j.ID,
						"error", err)
				}
			}
		}
	}
}
