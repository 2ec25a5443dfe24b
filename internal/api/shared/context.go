package shared

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// TraceIDKey is the context key for storing trace IDs.
const TraceIDKey contextKey = "trace_id"

// WithTraceID returns a new context with the given trace ID attached.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from the context.
// Returns an empty string if no trace ID is present.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// NewTraceID generates a new unique trace ID.
func NewTraceID() string {
	return uuid.New().String()
}
