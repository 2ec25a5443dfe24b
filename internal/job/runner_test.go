package job

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/fetch"
	"github.com/mediagrab/grab-api/internal/platform/memory"
	"github.com/mediagrab/grab-api/internal/store"
)

// mockFetcher implements fetch.Fetcher with a configurable outcome.
type mockFetcher struct {
	result    *fetch.Result
	err       error
	progress  []fetch.Progress
	callCount atomic.Int32
	blockCtx  bool
	tick      bool
}

func (m *mockFetcher) Fetch(ctx context.Context, req fetch.Request, onProgress fetch.ProgressFunc) (*fetch.Result, error) {
	m.callCount.Add(1)

	if m.blockCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if m.tick {
		// Emit progress until the job context is cancelled.
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				onProgress(fetch.Progress{DownloadedBytes: 10, TotalBytes: 100, FilePercent: 10})
				time.Sleep(5 * time.Millisecond)
			}
		}
	}

	for _, p := range m.progress {
		onProgress(p)
	}

	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func testRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.WorkerCount = 1
	cfg.QueueSize = 10
	// Keep the janitor out of short tests
	cfg.CleanupInterval = time.Hour
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func saveQueuedJob(t *testing.T, jobStore store.JobStore) *domain.DownloadJob {
	t.Helper()

	job, err := domain.NewDownloadJob("https://example.com/watch?v=abc", "720p", "auto")
	require.NoError(t, err)
	require.NoError(t, jobStore.SaveJob(context.Background(), job))
	return job
}

func waitForStatus(t *testing.T, jobStore store.JobStore, id uuid.UUID, want domain.JobStatus) *domain.DownloadJob {
	t.Helper()

	var got *domain.DownloadJob
	require.Eventually(t, func() bool {
		j, err := jobStore.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job never reached status %s", want)
	return got
}

func TestRunnerCompletesSingleDownload(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{
		result: &fetch.Result{
			Title: "My Video",
			Files: []string{filepath.Join("downloads", "My Video.mp4")},
		},
		progress: []fetch.Progress{
			{DownloadedBytes: 512, TotalBytes: 1024, SpeedBPS: 100, ETASeconds: 5, FilePercent: 50},
		},
	}

	runner := NewRunner(jobStore, fetcher, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	final := waitForStatus(t, jobStore, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, "My Video.mp4", final.Filename)
	assert.Equal(t, float64(100), final.Progress)
	assert.Zero(t, final.SpeedBPS)
	assert.Zero(t, final.ETASeconds)
	assert.Empty(t, final.ErrorMessage)
	assert.Equal(t, int32(1), fetcher.callCount.Load())
}

func TestRunnerBundlesPlaylist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fileA := filepath.Join(dir, "Track 1.mp4")
	fileB := filepath.Join(dir, "Track 2.mp4")
	require.NoError(t, os.WriteFile(fileA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("b"), 0o644))

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{
		result: &fetch.Result{
			Title:    "Mix: Volume 1",
			Files:    []string{fileA, fileB},
			Playlist: true,
		},
	}

	cfg := testRunnerConfig()
	cfg.DownloadDir = dir
	runner := NewRunner(jobStore, fetcher, cfg, testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	final := waitForStatus(t, jobStore, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, "Mix_ Volume 1.zip", final.Filename)
	assert.FileExists(t, filepath.Join(dir, final.Filename))
}

func TestRunnerMarksFailedOnFetchError(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{err: errors.New("yt-dlp exited with status 1: unsupported url")}

	runner := NewRunner(jobStore, fetcher, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	final := waitForStatus(t, jobStore, job.ID, domain.JobStatusFailed)
	assert.Contains(t, final.ErrorMessage, "unsupported url")
}

func TestRunnerCancelRunningJob(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{blockCtx: true}

	runner := NewRunner(jobStore, fetcher, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	// Wait until the worker picked it up, then cancel it.
	waitForStatus(t, jobStore, job.ID, domain.JobStatusStarting)
	require.Eventually(t, func() bool {
		return runner.Cancel(job.ID)
	}, 5*time.Second, 10*time.Millisecond)

	final := waitForStatus(t, jobStore, job.ID, domain.JobStatusCancelled)
	assert.Empty(t, final.ErrorMessage)
}

func TestRunnerSkipsJobCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{result: &fetch.Result{Files: []string{"never.mp4"}}}

	runner := NewRunner(jobStore, fetcher, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, jobStore.MarkCancelRequested(context.Background(), job.ID))
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	waitForStatus(t, jobStore, job.ID, domain.JobStatusCancelled)
	assert.Equal(t, int32(0), fetcher.callCount.Load())
}

func TestRunnerCancelUnknownJob(t *testing.T) {
	t.Parallel()

	runner := NewRunner(memory.NewJobStore(), &mockFetcher{}, testRunnerConfig(), testLogger())
	assert.False(t, runner.Cancel(uuid.New()))
}

func TestEnqueueQueueFull(t *testing.T) {
	t.Parallel()

	cfg := testRunnerConfig()
	cfg.QueueSize = 1

	// Never started, so nothing drains the queue.
	runner := NewRunner(memory.NewJobStore(), &mockFetcher{}, cfg, testLogger())

	require.NoError(t, runner.Enqueue(context.Background(), uuid.New()))
	err := runner.Enqueue(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRecoverRequeuesInterruptedJobs(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	job := saveQueuedJob(t, jobStore)
	require.NoError(t, jobStore.UpdateJobStatus(context.Background(), job.ID, domain.JobStatusDownloading, ""))

	runner := NewRunner(jobStore, &mockFetcher{}, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Recover())

	reloaded, err := jobStore.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, reloaded.Status)
	assert.Len(t, runner.queue, 1)
}

func TestJanitorPurgesOldJobs(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()

	old, err := domain.NewDownloadJob("https://example.com/old", "best", "auto")
	require.NoError(t, err)
	old.Status = domain.JobStatusCompleted
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	old.UpdatedAt = old.CreatedAt
	require.NoError(t, jobStore.SaveJob(context.Background(), old))

	cfg := testRunnerConfig()
	cfg.Retention = time.Hour
	cfg.CleanupInterval = 20 * time.Millisecond

	runner := NewRunner(jobStore, &mockFetcher{}, cfg, testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.Eventually(t, func() bool {
		_, err := jobStore.GetJob(context.Background(), old.ID)
		return errors.Is(err, store.ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJanitorAbortsStalledJobs(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()

	stalled, err := domain.NewDownloadJob("https://example.com/stalled", "best", "auto")
	require.NoError(t, err)
	stalled.Status = domain.JobStatusDownloading
	stalled.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, jobStore.SaveJob(context.Background(), stalled))

	cfg := testRunnerConfig()
	cfg.StuckJobAge = 30 * time.Minute
	cfg.CleanupInterval = 20 * time.Millisecond

	runner := NewRunner(jobStore, &mockFetcher{}, cfg, testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	final := waitForStatus(t, jobStore, stalled.ID, domain.JobStatusFailed)
	assert.Contains(t, final.ErrorMessage, "stalled")
}

// cancelRacingStore fires a cancel request immediately after the worker
// persists the starting transition, landing in the window where the job has
// been read from the store but Cancel cannot yet find a running download.
type cancelRacingStore struct {
	store.JobStore
	runner *Runner
	fired  atomic.Bool
}

func (s *cancelRacingStore) UpdateJob(ctx context.Context, job *domain.DownloadJob) error {
	err := s.JobStore.UpdateJob(ctx, job)
	if job.Status == domain.JobStatusStarting && s.fired.CompareAndSwap(false, true) {
		_ = s.JobStore.MarkCancelRequested(ctx, job.ID)
		s.runner.Cancel(job.ID)
	}
	return err
}

func TestRunnerHonorsCancelRacingJobStart(t *testing.T) {
	t.Parallel()

	racing := &cancelRacingStore{JobStore: memory.NewJobStore()}
	fetcher := &mockFetcher{result: &fetch.Result{Files: []string{"never.mp4"}}}

	runner := NewRunner(racing, fetcher, testRunnerConfig(), testLogger())
	racing.runner = runner
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, racing)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	final := waitForStatus(t, racing, job.ID, domain.JobStatusCancelled)
	assert.True(t, final.CancelRequested, "cancel flag must survive the worker's writes")
	assert.Equal(t, int32(0), fetcher.callCount.Load(), "download must not start for a cancelled job")
}

func TestRunnerHonorsCancelFlagDuringDownload(t *testing.T) {
	t.Parallel()

	jobStore := memory.NewJobStore()
	fetcher := &mockFetcher{tick: true}

	runner := NewRunner(jobStore, fetcher, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	job := saveQueuedJob(t, jobStore)
	require.NoError(t, runner.Enqueue(context.Background(), job.ID))

	waitForStatus(t, jobStore, job.ID, domain.JobStatusDownloading)

	// Only the flag is set, as happens when the cancel request reaches a
	// different server process than the one running the download.
	require.NoError(t, jobStore.MarkCancelRequested(context.Background(), job.ID))

	final := waitForStatus(t, jobStore, job.ID, domain.JobStatusCancelled)
	assert.True(t, final.CancelRequested)
}

func TestEnqueueAfterStop(t *testing.T) {
	t.Parallel()

	runner := NewRunner(memory.NewJobStore(), &mockFetcher{}, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	runner.Stop()

	err := runner.Enqueue(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrQueueClosed)
}
