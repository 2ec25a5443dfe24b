package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagrab/grab-api/internal/api"
	"github.com/mediagrab/grab-api/internal/api/middleware"
	"github.com/mediagrab/grab-api/internal/domain"
	"github.com/mediagrab/grab-api/internal/events"
	"github.com/mediagrab/grab-api/internal/platform/memory"
	"github.com/mediagrab/grab-api/internal/service"
)

type noopEmitter struct{}

func (noopEmitter) EmitEvent(ctx context.Context, event *events.JobRequestEvent) error {
	return nil
}

type noopCanceller struct{}

func (noopCanceller) Cancel(jobID uuid.UUID) bool { return false }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRouter wires the download endpoints against an in-memory store.
func newTestRouter(t *testing.T) (*chi.Mux, *memory.JobStore) {
	t.Helper()

	jobStore := memory.NewJobStore()
	svc := service.NewDownloadService(jobStore, noopEmitter{}, noopCanceller{}, testLogger())
	handler := api.NewDownloadHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Post("/api/downloads", handler.Start)
	r.Get("/api/downloads/{id}", handler.GetProgress)
	r.Post("/api/downloads/{id}/cancel", handler.Cancel)

	return r, jobStore
}

func decodeJob(t *testing.T, body *bytes.Buffer) api.JobResponse {
	t.Helper()

	var resp api.JobResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

func TestStartDownloadAccepted(t *testing.T) {
	t.Parallel()

	router, jobStore := newTestRouter(t)

	body := `{"url":"https://example.com/watch?v=abc","quality":"720p","kind":"single"}`
	req := httptest.NewRequest(http.MethodPost, "/api/downloads", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.TraceHeaderName))

	resp := decodeJob(t, rec.Body)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "720p", resp.Quality)
	assert.Equal(t, "single", resp.Kind)
	assert.Empty(t, resp.DownloadURL)

	_, err := jobStore.GetJob(context.Background(), resp.ID)
	assert.NoError(t, err)
}

func TestStartDownloadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing URL", body: `{"quality":"best"}`},
		{name: "not a URL", body: `{"url":"not a url"}`},
		{name: "malformed JSON", body: `{"url":`},
		{name: "unknown field", body: `{"url":"https://example.com/v","target":"x"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router, _ := newTestRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/api/downloads", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetProgress(t *testing.T) {
	t.Parallel()

	router, jobStore := newTestRouter(t)

	job, err := domain.NewDownloadJob("https://example.com/watch?v=abc", "best", "auto")
	require.NoError(t, err)
	job.Status = domain.JobStatusDownloading
	job.Progress = 42.5
	job.DownloadedBytes = 425
	job.TotalBytes = 1000
	require.NoError(t, jobStore.SaveJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJob(t, rec.Body)
	assert.Equal(t, "downloading", resp.Status)
	assert.Equal(t, 42.5, resp.Progress)
	assert.Equal(t, int64(1000), resp.TotalBytes)
}

func TestGetProgressCompletedIncludesDownloadURL(t *testing.T) {
	t.Parallel()

	router, jobStore := newTestRouter(t)

	job, err := domain.NewDownloadJob("https://example.com/watch?v=abc", "best", "auto")
	require.NoError(t, err)
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Filename = "My Video.mp4"
	require.NoError(t, jobStore.SaveJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJob(t, rec.Body)
	assert.Equal(t, "/downloads/My Video.mp4", resp.DownloadURL)
}

func TestGetProgressNotFound(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProgressInvalidID(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelQueuedJob(t *testing.T) {
	t.Parallel()

	router, jobStore := newTestRouter(t)

	job, err := domain.NewDownloadJob("https://example.com/watch?v=abc", "best", "auto")
	require.NoError(t, err)
	require.NoError(t, jobStore.SaveJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/"+job.ID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJob(t, rec.Body)
	assert.Equal(t, "queued", resp.Status)

	saved, err := jobStore.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, saved.CancelRequested)
}

func TestCancelNotFound(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/downloads/"+uuid.NewString()+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
