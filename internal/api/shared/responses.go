package shared

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mediagrab/grab-api/internal/platform/logger"
	"github.com/mediagrab/grab-api/internal/redact"
)

// ErrorResponse is the standard error payload returned by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; all we can do is log.
		slog.Default().Error("failed to encode response body", "error", err)
	}
}

// RespondWithError writes a standardized JSON error response, attaching the
// request's trace ID when one is present.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, status, ErrorResponse{
		Error:   message,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithErrorAndLog logs the underlying error with full detail and sends
// the client a safe message. Credentials and filesystem paths in the logged
// error are redacted.
func RespondWithErrorAndLog(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, safeMessage string, err error) {
	log := logger.FromContext(ctx)

	attrs := []interface{}{
		"status", status,
		"path", r.URL.Path,
		"method", r.Method,
	}
	if err != nil {
		attrs = append(attrs, "error", redact.Error(err))
	}

	if status >= http.StatusInternalServerError {
		log.Error(safeMessage, attrs...)
	} else {
		log.Warn(safeMessage, attrs...)
	}

	RespondWithError(w, r, status, safeMessage)
}
