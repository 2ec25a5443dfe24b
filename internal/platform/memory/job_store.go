// Package memory provides an in-process implementation of store.JobStore.
// It holds the job registry in a mutex-guarded map whose lifetime is tied
// to the server process. Because the state is per-process, deployments
// using this backend must run exactly one worker process; configuration
// validation enforces that.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/store"
)

// JobStore is a thread-safe in-memory implementation of store.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.DownloadJob
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]*domain.DownloadJob),
	}
}

// Ensure JobStore implements store.JobStore
var _ store.JobStore = (*JobStore)(nil)

// SaveJob persists a new job. Returns store.ErrDuplicate if a job with the
// same ID already exists, store.ErrInvalidEntity if validation fails.
func (s *JobStore) SaveJob(ctx context.Context, job *domain.DownloadJob) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("download_job", "create", "validation failed", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}

	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetJob retrieves a job by ID. The returned job is a copy; callers may
// mutate it freely and write it back with UpdateJob.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.DownloadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, store.ErrJobNotFound
	}

	return copyJob(job), nil
}

// UpdateJob overwrites the stored job with the given state. An already-set
// cancellation flag survives the write; without that, a worker persisting a
// stale copy would erase a cancel requested since its last read.
func (s *JobStore) UpdateJob(ctx context.Context, job *domain.DownloadJob) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("download_job", "update", "validation failed", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.jobs[job.ID]
	if !exists {
		return store.ErrJobNotFound
	}

	updated := copyJob(job)
	updated.CancelRequested = updated.CancelRequested || existing.CancelRequested
	s.jobs[job.ID] = updated
	return nil
}

// UpdateJobStatus updates only the status and error message of a job.
func (s *JobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return store.ErrJobNotFound
	}

	job.Status = status
	job.ErrorMessage = errorMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCancelRequested sets the cooperative cancellation flag on a job.
func (s *JobStore) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return store.ErrJobNotFound
	}

	job.CancelRequested = true
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// ListActiveJobs returns jobs in a non-terminal status, optionally filtered
// to those whose last update is older than olderThan.
func (s *JobStore) ListActiveJobs(ctx context.Context, olderThan time.Duration) ([]*domain.DownloadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var active []*domain.DownloadJob
	for _, job := range s.jobs {
		if job.IsTerminal() {
			continue
		}
		if olderThan > 0 && job.UpdatedAt.After(cutoff) {
			continue
		}
		active = append(active, copyJob(job))
	}

	return active, nil
}

// DeleteJobsOlderThan removes jobs created more than age ago and returns how
// many were removed.
func (s *JobStore) DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)

	var removed int64
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	return removed, nil
}

// copyJob returns a shallow copy. DownloadJob contains no reference fields,
// so a value copy fully detaches the caller from stored state.
func copyJob(job *domain.DownloadJob) *domain.DownloadJob {
	c := *job
	return &c
}
