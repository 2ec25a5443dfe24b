package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/events"
	"github.com/mediagrab/grab-api/internal/redact"
	"github.com/mediagrab/grab-api/internal/store"
)

// JobCanceller terminates a job's in-flight download, reporting whether one
// was running. The job runner implements this.
type JobCanceller interface {
	Cancel(jobID uuid.UUID) bool
}

// DownloadService orchestrates the lifecycle of download jobs: creating them,
// reporting their progress, and cancelling them. Job execution itself happens
// in the background runner, reached through the event emitter.
type DownloadService struct {
	jobStore  store.JobStore
	emitter   events.EventEmitter
	canceller JobCanceller
	logger    *slog.Logger
}

// NewDownloadService creates a new DownloadService.
func NewDownloadService(jobStore store.JobStore, emitter events.EventEmitter, canceller JobCanceller, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		jobStore:  jobStore,
		emitter:   emitter,
		canceller: canceller,
		logger:    logger.With("component", "download_service"),
	}
}

// Start validates the request, persists a new queued job, and emits an event
// that hands the job to the background runner. Unknown quality and kind
// values fall back to their defaults rather than failing.
func (s *DownloadService) Start(ctx context.Context, url, quality, kind string) (*domain.DownloadJob, error) {
	job, err := domain.NewDownloadJob(url, domain.Quality(quality), domain.Kind(kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	event, err := events.NewJobRequestEvent(events.EventTypeDownloadRequested,
		events.DownloadRequestedPayload{JobID: job.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		// The job row exists but nothing will process it; surface the
		// failure so the client can retry.
		s.logger.Error("failed to emit download event",
			"job_id", job.ID,
			"error", err)
		if uerr := s.jobStore.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, "failed to schedule download"); uerr != nil {
			s.logger.Error("failed to mark unscheduled job failed",
				"job_id", job.ID,
				"error", uerr)
		}
		return nil, fmt.Errorf("failed to schedule download: %w", err)
	}

	s.logger.Info("download job created",
		"job_id", job.ID,
		"url", redact.String(url),
		"quality", job.Quality,
		"kind", job.Kind)

	return job, nil
}

// Get returns the current state of a job.
func (s *DownloadService) Get(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error) {
	return s.jobStore.GetJob(ctx, id)
}

// Cancel requests cancellation of a job. Terminal jobs are returned
// unchanged. Jobs that have not reached the download stage keep their
// status and only carry the cancel flag; the runner resolves them to
// cancelled when it dequeues them. Running jobs move to cancelling and
// their download is terminated.
func (s *DownloadService) Cancel(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error) {
	job, err := s.jobStore.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.IsTerminal() {
		return job, nil
	}

	if err := s.jobStore.MarkCancelRequested(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to flag job for cancellation: %w", err)
	}
	job.CancelRequested = true

	if job.Status == domain.JobStatusDownloading || job.Status == domain.JobStatusProcessing {
		if err := s.jobStore.UpdateJobStatus(ctx, id, domain.JobStatusCancelling, ""); err != nil {
			return nil, fmt.Errorf("failed to update job status: %w", err)
		}
		job.Status = domain.JobStatusCancelling
	}

	if s.canceller != nil {
		interrupted := s.canceller.Cancel(id)
		s.logger.Info("cancellation requested",
			"job_id", id,
			"status", job.Status,
			"interrupted", interrupted)
	}

	return job, nil
}
