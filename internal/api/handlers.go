package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memoryhttpd/internal/health"
	"memoryhttpd/internal/logs"
	"memoryhttpd/internal/metrics"
	"memoryhttpd/internal/store"
	"memoryhttpd/internal/ttl"
)

const (
	// ExpireHeader carries a per-request TTL in milliseconds.
	ExpireHeader = "X-Expire-Ms"
	// ActionHeader marks successful writes.
	ActionHeader = "X-memoryhttpd-action"

	// defaultHost is used for the key when a request has no Host header.
	defaultHost = "localhost"
)

var (
	errInvalidExpire  = errors.New("x-expire-ms is not a valid number")
	errExpireTooLarge = errors.New("x-expire-ms is too large")
)

// Scheduler registers expirations. *ttl.Scheduler implements it.
type Scheduler interface {
	Schedule(ctx context.Context, exp ttl.Expiration) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	scheduler  Scheduler
	defaultTTL time.Duration
	metrics    *metrics.Registry
	logger     *logs.Logger
	analyzer   *health.Analyzer
}

// NewHandler creates a new API handler.
//
// defaultTTL applies to PUTs without an X-Expire-Ms header; zero means the
// value never expires.
func NewHandler(
	store *store.Store,
	scheduler Scheduler,
	defaultTTL time.Duration,
	metrics *metrics.Registry,
	logger *logs.Logger,
) *Handler {
	return &Handler{
		store:      store,
		scheduler:  scheduler,
		defaultTTL: defaultTTL,
		metrics:    metrics,
		logger:     logger,
		analyzer:   health.NewAnalyzer(metrics, logger),
	}
}

// CacheKey is the request host immediately followed by the request path,
// with no separator.
func CacheKey(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = defaultHost
	}
	return host + r.URL.EscapedPath()
}

/* ---------------- GET /{path} ---------------- */

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	value, ok := h.store.Get(CacheKey(r))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(value)
}

/* ---------------- PUT /{path} ---------------- */

// SetKey stores the body under the request key. When the effective TTL is
// positive the write only succeeds once its expiration is registered; a
// failed registration rolls the write back and answers 5xx.
func (h *Handler) SetKey(w http.ResponseWriter, r *http.Request) {
	key := CacheKey(r)

	expire, err := h.expiration(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	gen := h.store.Put(key, body)

	if expire > 0 {
		h.logger.Debugf("%s expire in %dms", key, expire.Milliseconds())

		exp := ttl.Expiration{
			Key:        key,
			Deadline:   time.Now().Add(expire),
			Generation: gen,
		}
		if err := h.scheduler.Schedule(r.Context(), exp); err != nil {
			h.store.DeleteIfGeneration(key, gen)
			h.logger.Warnf("expiration registration failed for %s: %v", key, err)

			status := http.StatusServiceUnavailable
			if errors.Is(err, ttl.ErrClosed) {
				status = http.StatusInternalServerError
			}
			http.Error(w, "could not register expiration", status)
			return
		}
	}

	w.Header().Set(ActionHeader, "set")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// expiration resolves the TTL of a PUT from X-Expire-Ms or the default.
func (h *Handler) expiration(r *http.Request) (time.Duration, error) {
	values := r.Header.Values(ExpireHeader)
	if len(values) == 0 {
		return h.defaultTTL, nil
	}

	// One leading "+" is accepted, as in "+5".
	raw := strings.TrimPrefix(values[0], "+")
	ms, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errInvalidExpire
	}
	d, err := ttl.FromMillis(ms)
	if err != nil {
		return 0, errExpireTooLarge
	}
	return d, nil
}

/* ---------------- DELETE /{path} ---------------- */

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(CacheKey(r))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

/* ---------------- GET /admin/keys ---------------- */

func (h *Handler) ListKeys(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.store.Keys())
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	report := h.analyzer.Analyze()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
