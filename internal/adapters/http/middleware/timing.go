package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"facultyeval/internal/metrics"
)

// DefaultSlowRequest is the threshold used when none is configured.
const DefaultSlowRequest = 500 * time.Millisecond

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// statusWriterPool reduces allocations on the hot path.
var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// routeLabel is the matched chi pattern, so metric labels stay bounded.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Timing returns middleware that logs request duration and records it in m.
// Requests to /static/ are excluded.
// Normal requests log at DEBUG; slow requests (at or above threshold) log at WARN.
func Timing(logger *zap.Logger, m *metrics.Metrics, threshold time.Duration) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultSlowRequest
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				fields := []zap.Field{
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", path),
					zap.Int("status", sw.status),
					zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000.0),
				}
				if elapsed >= threshold {
					logger.Warn("slow_request", fields...)
				} else {
					logger.Debug("request", fields...)
				}
				m.ObserveRequest(r.Method, routeLabel(r), sw.status, elapsed)

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
