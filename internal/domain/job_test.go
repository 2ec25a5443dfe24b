package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagrab/grab-api/internal/domain"
)

func TestNewDownloadJob(t *testing.T) {
	t.Parallel()

	t.Run("creates queued job with normalized fields", func(t *testing.T) {
		t.Parallel()

		job, err := domain.NewDownloadJob("https://example.com/watch?v=abc", domain.Quality720p, domain.KindSingle)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, domain.JobStatusQueued, job.Status)
		assert.Equal(t, domain.Quality720p, job.Quality)
		assert.Equal(t, domain.KindSingle, job.Kind)
		assert.Zero(t, job.Progress)
		assert.False(t, job.CreatedAt.IsZero())
	})

	t.Run("coerces unknown quality and kind", func(t *testing.T) {
		t.Parallel()

		job, err := domain.NewDownloadJob("https://example.com/v", domain.Quality("8k"), domain.Kind("mixtape"))

		require.NoError(t, err)
		assert.Equal(t, domain.QualityBest, job.Quality)
		assert.Equal(t, domain.KindAuto, job.Kind)
	})

	t.Run("rejects empty URL", func(t *testing.T) {
		t.Parallel()

		job, err := domain.NewDownloadJob("", domain.QualityBest, domain.KindAuto)

		assert.Nil(t, job)
		assert.ErrorIs(t, err, domain.ErrEmptyJobURL)
	})
}

func TestDownloadJobTransitions(t *testing.T) {
	t.Parallel()

	newJob := func(t *testing.T) *domain.DownloadJob {
		t.Helper()
		job, err := domain.NewDownloadJob("https://example.com/v", domain.QualityBest, domain.KindAuto)
		require.NoError(t, err)
		return job
	}

	t.Run("full successful lifecycle", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		for _, status := range []domain.JobStatus{
			domain.JobStatusStarting,
			domain.JobStatusDownloading,
			domain.JobStatusProcessing,
			domain.JobStatusDownloading, // next playlist entry
			domain.JobStatusProcessing,
			domain.JobStatusCompleted,
		} {
			require.NoError(t, job.TransitionTo(status), "transition to %s", status)
		}

		assert.True(t, job.IsTerminal())
	})

	t.Run("cancellation path", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		require.NoError(t, job.TransitionTo(domain.JobStatusStarting))
		require.NoError(t, job.TransitionTo(domain.JobStatusDownloading))
		require.NoError(t, job.TransitionTo(domain.JobStatusCancelling))
		require.NoError(t, job.TransitionTo(domain.JobStatusCancelled))

		assert.True(t, job.IsTerminal())
	})

	t.Run("cancelling job may still complete", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		require.NoError(t, job.TransitionTo(domain.JobStatusStarting))
		require.NoError(t, job.TransitionTo(domain.JobStatusDownloading))
		require.NoError(t, job.TransitionTo(domain.JobStatusCancelling))
		assert.NoError(t, job.TransitionTo(domain.JobStatusCompleted))
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		assert.NoError(t, job.TransitionTo(domain.JobStatusQueued))
		assert.Equal(t, domain.JobStatusQueued, job.Status)
	})

	t.Run("rejects skipping the lifecycle", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		err := job.TransitionTo(domain.JobStatusCompleted)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.JobStatusQueued, job.Status)
	})

	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		require.NoError(t, job.TransitionTo(domain.JobStatusFailed))
		err := job.TransitionTo(domain.JobStatusDownloading)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()
		job := newJob(t)

		err := job.TransitionTo(domain.JobStatus("paused"))
		assert.ErrorIs(t, err, domain.ErrInvalidJobStatus)
	})
}

func TestRecordProgress(t *testing.T) {
	t.Parallel()

	job, err := domain.NewDownloadJob("https://example.com/v", domain.QualityBest, domain.KindAuto)
	require.NoError(t, err)

	job.RecordProgress(42.5, 425, 1000, 2048, 17)

	assert.Equal(t, 42.5, job.Progress)
	assert.Equal(t, int64(425), job.DownloadedBytes)
	assert.Equal(t, int64(1000), job.TotalBytes)
	assert.Equal(t, float64(2048), job.SpeedBPS)
	assert.Equal(t, int64(17), job.ETASeconds)

	t.Run("clamps percent", func(t *testing.T) {
		job.RecordProgress(150, 0, 0, 0, 0)
		assert.Equal(t, float64(100), job.Progress)

		job.RecordProgress(-3, 0, 0, 0, 0)
		assert.Equal(t, float64(0), job.Progress)
	})
}
