package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"memoryhttpd/internal/metrics"
)

// LoggingMiddleware writes one INFO line per request before handling it,
// and a DEBUG line with the outcome afterwards.
func (h *Handler) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		host := r.Host
		if host == "" {
			host = defaultHost
		}
		h.logger.Infof("%s %s%s", r.Method, host, r.URL.EscapedPath())
		h.metrics.Inc(metrics.RequestsTotal)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.status >= http.StatusInternalServerError {
			h.metrics.Inc(metrics.RequestErrorsTotal)
		}
		h.logger.Debugf("[%s] %s %s%s %d %s",
			middleware.GetReqID(r.Context()), r.Method, host, r.URL.EscapedPath(), rw.status, time.Since(start))
	})
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func (h *Handler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				h.metrics.Inc(metrics.PanicsRecoveredTotal)
				h.logger.Errorf("panic recovered: %v", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequireLeadingSlash rejects requests whose path does not start with "/".
// It runs before routing so the check applies to every method.
func RequireLeadingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.EscapedPath(), "/") {
			http.Error(w, "path must start with a slash", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResponseWriter wrapper
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
