package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediagrab/grab-api/internal/domain"
)

// DownloadRequest is the payload for creating a new download job.
type DownloadRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Quality string `json:"quality"`
	Kind    string `json:"kind"`
}

// JobResponse is the API representation of a download job.
type JobResponse struct {
	ID              uuid.UUID `json:"id"`
	URL             string    `json:"url"`
	Quality         string    `json:"quality"`
	Kind            string    `json:"kind"`
	Status          string    `json:"status"`
	Progress        float64   `json:"progress"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes,omitempty"`
	SpeedBPS        float64   `json:"speed_bps,omitempty"`
	ETASeconds      int64     `json:"eta_seconds,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	DownloadURL     string    `json:"download_url,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewJobResponse converts a domain job into its API representation.
// Completed jobs gain a download URL for the finished file.
func NewJobResponse(job *domain.DownloadJob) JobResponse {
	resp := JobResponse{
		ID:              job.ID,
		URL:             job.URL,
		Quality:         string(job.Quality),
		Kind:            string(job.Kind),
		Status:          string(job.Status),
		Progress:        job.Progress,
		DownloadedBytes: job.DownloadedBytes,
		TotalBytes:      job.TotalBytes,
		SpeedBPS:        job.SpeedBPS,
		ETASeconds:      job.ETASeconds,
		Filename:        job.Filename,
		Error:           job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}

	if job.Status == domain.JobStatusCompleted && job.Filename != "" {
		resp.DownloadURL = "/downloads/" + job.Filename
	}

	return resp
}
