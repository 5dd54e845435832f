package gateway

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware assigns every request a unique ID, honoring a
// client-supplied X-Request-ID when present. The ID is echoed in the
// response headers and attached to the request context for log
// correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context. Returns empty
// string if not found.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// loggingMiddleware logs each request on completion with method, path,
// status, latency and request ID. Server errors log at error level,
// client errors at warn.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		latency := time.Since(startTime)
		logFn := s.logger.Info
		if rw.statusCode >= 500 {
			logFn = s.logger.Error
		} else if rw.statusCode >= 400 {
			logFn = s.logger.Warn
		}

		logFn("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"latency_ms", latency.Milliseconds(),
			"request_id", GetRequestID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// metricsMiddleware records request counts and latency per route and
// status class.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.collector == nil {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		s.collector.RecordRequest(routeLabel(r.URL.Path), statusClass(rw.statusCode), time.Since(startTime))
	})
}

// routeLabel collapses parameterized paths to a fixed label set so the
// metric cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case path == "/v1/enforce":
		return "enforce"
	case path == "/v1/blocks":
		return "blocks"
	case len(path) > len("/v1/blocks/") && path[:len("/v1/blocks/")] == "/v1/blocks/":
		return "block"
	case path == "/v1/rules":
		return "rules"
	case path == "/healthz" || path == "/readyz":
		return "health"
	default:
		return "other"
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// recoveryMiddleware converts handler panics into a 500 response. The
// panic and stack are logged; the client sees no internal detail.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in handler",
					"error", err,
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
