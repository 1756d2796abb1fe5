package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/affinity-engine/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// responseWriter records the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logger logs every request with a request id. Incoming X-Request-ID headers are
// reused, otherwise a new id is generated and echoed back. Panics become 500s.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLog := logger.WithRequestID(log, requestID)
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					reqLog.Error("Panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()))
					rw.WriteHeader(http.StatusInternalServerError)
				}
				reqLog.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rw.status,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", r.RemoteAddr)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
