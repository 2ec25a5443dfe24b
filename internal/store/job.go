package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
)

// JobStore defines the interface for persisting download jobs. It is the
// seam that makes process topology a scaling knob: the in-memory
// implementation is valid for exactly one process, while the SQL-backed
// implementations can be shared by several.
type JobStore interface {
	// SaveJob persists a new job. Returns ErrDuplicate if a job with the
	// same ID already exists.
	SaveJob(ctx context.Context, job *domain.DownloadJob) error

	// GetJob retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error)

	// UpdateJob overwrites the stored job with the given state, except the
	// cancellation flag: once set by MarkCancelRequested it stays set, so a
	// worker writing back a stale copy cannot erase a concurrent cancel.
	// Returns ErrJobNotFound if the job does not exist.
	UpdateJob(ctx context.Context, job *domain.DownloadJob) error

	// UpdateJobStatus updates only the status and error message of a job.
	// Returns ErrJobNotFound if the job does not exist.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error

	// MarkCancelRequested sets the cooperative cancellation flag on a job.
	// Workers consult the flag before starting work on a queued job.
	// Returns ErrJobNotFound if the job does not exist.
	MarkCancelRequested(ctx context.Context, id uuid.UUID) error

	// ListActiveJobs returns jobs in a non-terminal status. If olderThan is
	// non-zero, only jobs whose last update is older than the duration are
	// returned; the janitor uses this to find stuck jobs.
	ListActiveJobs(ctx context.Context, olderThan time.Duration) ([]*domain.DownloadJob, error)

	// DeleteJobsOlderThan removes jobs created more than age ago,
	// regardless of status, and returns how many were removed.
	DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
