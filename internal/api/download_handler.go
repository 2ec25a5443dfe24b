package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/api/shared"
	"github.com/mediagrab/grab-api/internal/platform/logger"
	"github.com/mediagrab/grab-api/internal/redact"
	"github.com/mediagrab/grab-api/internal/service"
)

// DownloadHandler serves the download job endpoints.
type DownloadHandler struct {
	service *service.DownloadService
	logger  *slog.Logger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(svc *service.DownloadService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		service: svc,
		logger:  logger.With("component", "download_handler"),
	}
}

// Start handles POST /api/downloads. It validates the request, creates a
// queued job, and responds 202 Accepted with the job's initial state.
func (h *DownloadHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req DownloadRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(ctx, w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.service.Start(ctx, req.URL, req.Quality, req.Kind)
	if err != nil {
		shared.RespondWithErrorAndLog(ctx, w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("download accepted",
		"job_id", job.ID,
		"url", redact.String(req.URL))

	shared.RespondWithJSON(w, http.StatusAccepted, NewJobResponse(job))
}

// GetProgress handles GET /api/downloads/{id}, returning the job's current
// state including progress counters.
func (h *DownloadHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.jobIDFromRequest(w, r)
	if !ok {
		return
	}

	job, err := h.service.Get(ctx, id)
	if err != nil {
		shared.RespondWithErrorAndLog(ctx, w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, http.StatusOK, NewJobResponse(job))
}

// Cancel handles POST /api/downloads/{id}/cancel. Cancelling a terminal job
// is a no-op that returns the job unchanged.
func (h *DownloadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.jobIDFromRequest(w, r)
	if !ok {
		return
	}

	job, err := h.service.Cancel(ctx, id)
	if err != nil {
		shared.RespondWithErrorAndLog(ctx, w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, http.StatusOK, NewJobResponse(job))
}

// jobIDFromRequest parses the {id} URL parameter. On failure it writes a 400
// response and returns ok=false.
func (h *DownloadHandler) jobIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}
