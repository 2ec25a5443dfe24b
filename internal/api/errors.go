package api

import (
	"errors"
	"net/http"

	"github.com/mediagrab/grab-api/internal/job"
	"github.com/mediagrab/grab-api/internal/service"
	"github.com/mediagrab/grab-api/internal/store"
)

// MapErrorToStatusCode translates service and store errors into HTTP status
// codes. Unrecognized errors map to 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the given error.
// Internal detail never leaks; known error categories get a stable wording.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		return "download job not found"
	case errors.Is(err, store.ErrNotFound):
		return "resource not found"
	case errors.Is(err, service.ErrInvalidRequest):
		return "invalid download request"
	case errors.Is(err, store.ErrInvalidEntity):
		return "invalid request data"
	case errors.Is(err, job.ErrQueueFull):
		return "server is busy, try again later"
	default:
		return "an internal error occurred"
	}
}
