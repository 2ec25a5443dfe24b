// Package sqlite provides a SQLite-backed implementation of store.JobStore
// using the pure-Go modernc.org/sqlite driver. Jobs survive process
// restarts on a single node without requiring a database server. The schema
// is ensured when the store is opened.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/store"
)

// jobColumns is the column list shared by all job queries, in scan order.
const jobColumns = `id, url, quality, kind, status, progress, downloaded_bytes,
	total_bytes, speed_bps, eta_seconds, filename, error_message,
	cancel_requested, created_at, updated_at`

const schema = `
CREATE TABLE IF NOT EXISTS download_jobs (
	id               TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	quality          TEXT NOT NULL,
	kind             TEXT NOT NULL,
	status           TEXT NOT NULL,
	progress         REAL NOT NULL DEFAULT 0,
	downloaded_bytes INTEGER NOT NULL DEFAULT 0,
	total_bytes      INTEGER NOT NULL DEFAULT 0,
	speed_bps        REAL NOT NULL DEFAULT 0,
	eta_seconds      INTEGER NOT NULL DEFAULT 0,
	filename         TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
)`

// JobStore is a SQLite implementation of store.JobStore.
type JobStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the job schema exists.
func Open(path string) (*JobStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Serialize writers instead of failing immediately on lock contention.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &JobStore{db: db}, nil
}

// Ensure JobStore implements store.JobStore
var _ store.JobStore = (*JobStore)(nil)

// Close closes the underlying database handle.
func (s *JobStore) Close() error {
	return s.db.Close()
}

// SaveJob persists a new job row.
func (s *JobStore) SaveJob(ctx context.Context, job *domain.DownloadJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO download_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID.String(),
		job.URL,
		string(job.Quality),
		string(job.Kind),
		string(job.Status),
		job.Progress,
		job.DownloadedBytes,
		job.TotalBytes,
		job.SpeedBPS,
		job.ETASeconds,
		job.Filename,
		job.ErrorMessage,
		boolToInt(job.CancelRequested),
		job.CreatedAt.UnixMilli(),
		job.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by its unique ID.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// UpdateJob overwrites the stored row with the given job state. The
// cancellation flag is only ever raised, never lowered, so a stale write
// cannot undo a concurrent MarkCancelRequested.
func (s *JobStore) UpdateJob(ctx context.Context, job *domain.DownloadJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE download_jobs
		SET status = ?, progress = ?, downloaded_bytes = ?, total_bytes = ?,
			speed_bps = ?, eta_seconds = ?, filename = ?, error_message = ?,
			cancel_requested = cancel_requested OR ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(job.Status),
		job.Progress,
		job.DownloadedBytes,
		job.TotalBytes,
		job.SpeedBPS,
		job.ETASeconds,
		job.Filename,
		job.ErrorMessage,
		boolToInt(job.CancelRequested),
		time.Now().UTC().UnixMilli(),
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return requireRowAffected(result)
}

// UpdateJobStatus updates only the status and error message of a job.
func (s *JobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	query := `
		UPDATE download_jobs
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(status), errorMsg, time.Now().UTC().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return requireRowAffected(result)
}

// MarkCancelRequested sets the cooperative cancellation flag on a job.
func (s *JobStore) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE download_jobs
		SET cancel_requested = 1, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark job cancelled: %w", err)
	}

	return requireRowAffected(result)
}

// ListActiveJobs returns jobs in a non-terminal status, optionally filtered
// to those whose last update is older than olderThan.
func (s *JobStore) ListActiveJobs(ctx context.Context, olderThan time.Duration) ([]*domain.DownloadJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM download_jobs
		WHERE status NOT IN (?, ?, ?)
	`
	args := []any{
		string(domain.JobStatusCompleted),
		string(domain.JobStatusCancelled),
		string(domain.JobStatusFailed),
	}

	if olderThan > 0 {
		query += ` AND updated_at < ?`
		args = append(args, time.Now().UTC().Add(-olderThan).UnixMilli())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}

// DeleteJobsOlderThan removes jobs created more than age ago and returns how
// many rows were removed.
func (s *JobStore) DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM download_jobs WHERE created_at < ?`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Add(-age).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}

	return removed, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.DownloadJob, error) {
	var (
		job                  domain.DownloadJob
		id                   string
		quality, kind        string
		status               string
		cancelRequested      int
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&id,
		&job.URL,
		&quality,
		&kind,
		&status,
		&job.Progress,
		&job.DownloadedBytes,
		&job.TotalBytes,
		&job.SpeedBPS,
		&job.ETASeconds,
		&job.Filename,
		&job.ErrorMessage,
		&cancelRequested,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", id, err)
	}

	job.ID = parsed
	job.Quality = domain.Quality(quality)
	job.Kind = domain.Kind(kind)
	job.Status = domain.JobStatus(status)
	job.CancelRequested = cancelRequested != 0
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrJobNotFound
	}
	return nil
}
