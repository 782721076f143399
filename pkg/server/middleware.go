package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bestbox-ai/orchestrator/pkg/observability"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// without breaking http.Flusher, which the chat-completions SSE handler
// needs.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// metricsMiddleware records one request metric per call, labeled by chi's
// matched route pattern (e.g. "/v1/threads/{thread_id}") rather than the raw
// path, keeping label cardinality bounded regardless of how many distinct
// thread_id/turn_id values are seen. The pattern is only fully populated
// after the handler chain runs, so it's read after next.ServeHTTP returns.
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.RecordHTTPRequest(r.Method, routePattern(r), wrapped.statusCode, time.Since(start), r.ContentLength, 0)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
