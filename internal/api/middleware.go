package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fieldroute/internal/metrics"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument wraps the mux with request logging and Prometheus counters.
// Streaming endpoints (SSE, WebSocket) bypass the wrapper because hijacking
// and long-lived flushes do not mix with a buffered status recorder.
func Instrument(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreaming(r) {
			next.ServeHTTP(w, r)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		dur := time.Since(start)

		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", dur),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func isStreaming(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "websocket" {
		return true
	}
	const suffix = "/events/stream"
	p := r.URL.Path
	return len(p) >= len(suffix) && p[len(p)-len(suffix):] == suffix
}
