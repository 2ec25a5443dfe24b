package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a download job.
type JobStatus string

// Possible job status values, in rough lifecycle order.
const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusStarting    JobStatus = "starting"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusCancelling  JobStatus = "cancelling"
	JobStatusCancelled   JobStatus = "cancelled"
	JobStatusFailed      JobStatus = "failed"
)

// Quality identifies the requested media quality.
type Quality string

// Supported quality values. Anything else is coerced to QualityBest.
const (
	QualityBest  Quality = "best"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	QualityAudio Quality = "audio"
)

// Kind controls playlist handling for a download.
type Kind string

// Supported kind values. KindAuto downloads playlists when the URL points
// at one, KindSingle forces a single item, KindPlaylist expects a playlist.
const (
	KindAuto     Kind = "auto"
	KindSingle   Kind = "single"
	KindPlaylist Kind = "playlist"
)

// DownloadJob represents one media download request and its progress.
// Progress fields mirror what the download engine reports: byte counters,
// transfer speed, estimated time remaining, and an overall percentage that
// accounts for playlist position.
type DownloadJob struct {
	ID              uuid.UUID `json:"id"`
	URL             string    `json:"url"`
	Quality         Quality   `json:"quality"`
	Kind            Kind      `json:"kind"`
	Status          JobStatus `json:"status"`
	Progress        float64   `json:"progress"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"` // 0 when unknown
	SpeedBPS        float64   `json:"speed_bps"`   // 0 when unknown
	ETASeconds      int64     `json:"eta_seconds"` // 0 when unknown
	Filename        string    `json:"filename"`
	ErrorMessage    string    `json:"error_message"`
	CancelRequested bool      `json:"cancel_requested"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// validTransitions maps each status to the statuses it may move to.
// Terminal statuses have no entries.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:      {JobStatusStarting, JobStatusCancelled, JobStatusFailed},
	JobStatusStarting:    {JobStatusDownloading, JobStatusProcessing, JobStatusCompleted, JobStatusCancelling, JobStatusCancelled, JobStatusFailed},
	JobStatusDownloading: {JobStatusProcessing, JobStatusCompleted, JobStatusCancelling, JobStatusCancelled, JobStatusFailed},
	// Playlists alternate between downloading the next entry and
	// postprocessing the previous one.
	JobStatusProcessing: {JobStatusDownloading, JobStatusCompleted, JobStatusCancelling, JobStatusCancelled, JobStatusFailed},
	// A cancelling job may still finish if the download wins the race.
	JobStatusCancelling: {JobStatusCancelled, JobStatusCompleted, JobStatusFailed},
}

// NewDownloadJob creates a new DownloadJob for the given URL. It generates a
// fresh UUID, normalizes the quality and kind, sets the status to queued,
// and stamps creation/update times.
// Returns an error if validation fails.
func NewDownloadJob(url string, quality Quality, kind Kind) (*DownloadJob, error) {
	now := time.Now().UTC()
	job := &DownloadJob{
		ID:        uuid.New(),
		URL:       url,
		Quality:   NormalizeQuality(quality),
		Kind:      NormalizeKind(kind),
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// NormalizeQuality maps unknown quality values to QualityBest, matching how
// download requests treat free-form quality input.
func NormalizeQuality(q Quality) Quality {
	switch q {
	case QualityBest, Quality1080p, Quality720p, Quality480p, QualityAudio:
		return q
	default:
		return QualityBest
	}
}

// NormalizeKind maps unknown kind values to KindAuto.
func NormalizeKind(k Kind) Kind {
	switch k {
	case KindAuto, KindSingle, KindPlaylist:
		return k
	default:
		return KindAuto
	}
}

// Validate checks if the DownloadJob has valid data.
// Returns an error if any field fails validation.
func (j *DownloadJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.URL == "" {
		return ErrEmptyJobURL
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidJobProgress
	}

	return nil
}

// IsTerminal reports whether the job has reached a final status.
func (j *DownloadJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job is still being worked on
// (anything short of a terminal status).
func (j *DownloadJob) IsActive() bool {
	return !j.IsTerminal()
}

// TransitionTo moves the job to the given status and updates the UpdatedAt
// timestamp. A transition to the current status is a no-op. Returns
// ErrInvalidTransition when the lifecycle does not permit the move.
func (j *DownloadJob) TransitionTo(status JobStatus) error {
	if !isValidJobStatus(status) {
		return ErrInvalidJobStatus
	}

	if j.Status == status {
		return nil
	}

	for _, allowed := range validTransitions[j.Status] {
		if allowed == status {
			j.Status = status
			j.UpdatedAt = time.Now().UTC()
			return nil
		}
	}

	return ErrInvalidTransition
}

// RecordProgress updates the job's progress counters and stamps UpdatedAt.
// The percentage is clamped to [0, 100].
func (j *DownloadJob) RecordProgress(percent float64, downloaded, total int64, speedBPS float64, etaSeconds int64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	j.Progress = percent
	j.DownloadedBytes = downloaded
	j.TotalBytes = total
	j.SpeedBPS = speedBPS
	j.ETASeconds = etaSeconds
	j.UpdatedAt = time.Now().UTC()
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusStarting, JobStatusDownloading,
		JobStatusProcessing, JobStatusCompleted, JobStatusCancelling,
		JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}
