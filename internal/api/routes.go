package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns the key-value surface. Every path is a key, so nothing
// else is mounted here.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(h.RecoveryMiddleware)
	r.Use(h.LoggingMiddleware)
	r.Use(RequireLeadingSlash)

	// KV APIs
	r.Get("/*", h.GetKey)
	r.Put("/*", h.SetKey)
	r.Delete("/*", h.DeleteKey)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// NewAdminRouter returns the observability surface, meant for a separate
// listener.
func NewAdminRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.RecoveryMiddleware)

	// Observability APIs
	r.Get("/metrics", h.GetMetrics)
	r.Get("/health", h.GetHealth)

	// Admin APIs
	r.Get("/admin/keys", h.ListKeys)

	return r
}
