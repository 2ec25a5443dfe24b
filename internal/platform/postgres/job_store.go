package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/platform/logger"
	"github.com/mediagrab/grab-api/internal/store"
)

// jobColumns is the column list shared by all job queries, in scanJob order.
const jobColumns = `id, url, quality, kind, status, progress, downloaded_bytes,
	total_bytes, speed_bps, eta_seconds, filename, error_message,
	cancel_requested, created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface using a
// PostgreSQL database as the storage backend. A jobs table shared by all
// worker processes is what lifts the single-process topology constraint.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	return &PostgresJobStore{db: db}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// SaveJob persists a new job row.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job *domain.DownloadJob) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO download_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		job.Quality,
		job.Kind,
		job.Status,
		job.Progress,
		job.DownloadedBytes,
		job.TotalBytes,
		job.SpeedBPS,
		job.ETASeconds,
		job.Filename,
		job.ErrorMessage,
		job.CancelRequested,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to save job: %w", MapError(err))
	}

	return nil
}

// GetJob retrieves a job by its unique ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}

	return job, nil
}

// UpdateJob overwrites the stored row with the given job state. The
// cancellation flag is only ever raised, never lowered, so a stale write
// cannot undo a concurrent MarkCancelRequested.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job *domain.DownloadJob) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE download_jobs
		SET status = $1, progress = $2, downloaded_bytes = $3, total_bytes = $4,
			speed_bps = $5, eta_seconds = $6, filename = $7, error_message = $8,
			cancel_requested = cancel_requested OR $9, updated_at = $10
		WHERE id = $11
	`

	result, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.Progress,
		job.DownloadedBytes,
		job.TotalBytes,
		job.SpeedBPS,
		job.ETASeconds,
		job.Filename,
		job.ErrorMessage,
		job.CancelRequested,
		time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to update job: %w", MapError(err))
	}

	return requireRowAffected(result, store.ErrJobNotFound)
}

// UpdateJobStatus updates only the status and error message of a job.
func (s *PostgresJobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE download_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update job status: %w", MapError(err))
	}

	return requireRowAffected(result, store.ErrJobNotFound)
}

// MarkCancelRequested sets the cooperative cancellation flag on a job.
func (s *PostgresJobStore) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE download_jobs
		SET cancel_requested = TRUE, updated_at = $1
		WHERE id = $2
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job cancelled: %w", MapError(err))
	}

	return requireRowAffected(result, store.ErrJobNotFound)
}

// ListActiveJobs returns jobs in a non-terminal status, optionally filtered
// to those whose last update is older than olderThan.
func (s *PostgresJobStore) ListActiveJobs(ctx context.Context, olderThan time.Duration) ([]*domain.DownloadJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM download_jobs
		WHERE status NOT IN ($1, $2, $3)
	`
	args := []any{domain.JobStatusCompleted, domain.JobStatusCancelled, domain.JobStatusFailed}

	if olderThan > 0 {
		query += ` AND updated_at < $4`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", MapError(err))
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", MapError(err))
	}

	return jobs, nil
}

// DeleteJobsOlderThan removes jobs created more than age ago and returns how
// many rows were removed.
func (s *PostgresJobStore) DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM download_jobs WHERE created_at < $1`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", MapError(err))
	}

	return removed, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*domain.DownloadJob, error) {
	var job domain.DownloadJob
	err := row.Scan(
		&job.ID,
		&job.URL,
		&job.Quality,
		&job.Kind,
		&job.Status,
		&job.Progress,
		&job.DownloadedBytes,
		&job.TotalBytes,
		&job.SpeedBPS,
		&job.ETASeconds,
		&job.Filename,
		&job.ErrorMessage,
		&job.CancelRequested,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// requireRowAffected converts a zero-row update into notFoundErr.
func requireRowAffected(result interface{ RowsAffected() (int64, error) }, notFoundErr error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFoundErr
	}
	return nil
}
