package api

import (
	"net/http"

	"github.com/mediagrab/grab-api/internal/api/shared"
)

// HealthResponse is the payload returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
