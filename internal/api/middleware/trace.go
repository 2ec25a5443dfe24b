// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"

	"github.com/mediagrab/grab-api/internal/api/shared"
	"github.com/mediagrab/grab-api/internal/platform/logger"
)

// TraceHeaderName is the HTTP header used to propagate trace IDs.
const TraceHeaderName = "X-Trace-ID"

// TraceMiddleware attaches a trace ID to each request. Incoming X-Trace-ID
// headers are honored so traces can span services; otherwise a fresh ID is
// generated. The ID is stored in the request context, added to the
// context logger, and echoed in the response headers.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeaderName)
		if traceID == "" {
			traceID = shared.NewTraceID()
		}

		ctx := shared.WithTraceID(r.Context(), traceID)

		log := logger.FromContext(ctx).With("trace_id", traceID)
		ctx = logger.WithLogger(ctx, log)

		w.Header().Set(TraceHeaderName, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
