package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants
const (
	// EventTypeDownloadRequested indicates a download job is waiting to be
	// picked up by the runner.
	EventTypeDownloadRequested = "download_requested"
)

// DownloadRequestedPayload is the payload for EventTypeDownloadRequested
// events. It identifies the persisted job the runner should pick up.
type DownloadRequestedPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobRequestEvent represents a request to run a background download job.
// It carries the necessary information for job submission without direct
// dependencies on the job package.
type JobRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what kind of work is being requested
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *JobRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewJobRequestEvent creates a new JobRequestEvent with the specified type
// and payload.
func NewJobRequestEvent(eventType string, payload interface{}) (*JobRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &JobRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobRequestEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobRequestEvent) error
}
