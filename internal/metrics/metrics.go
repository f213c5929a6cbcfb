package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Store
	CacheKeysTotal    MetricKey = "cache_keys_total"
	CacheSetsTotal    MetricKey = "cache_sets_total"
	CacheGetsTotal    MetricKey = "cache_gets_total"
	CacheMissesTotal  MetricKey = "cache_misses_total"
	CacheDeletesTotal MetricKey = "cache_deletes_total"

	// Expiration scheduler
	ExpirationsScheduledTotal       MetricKey = "expirations_scheduled_total"
	ExpirationsFiredTotal           MetricKey = "expirations_fired_total"
	ExpirationsSkippedTotal         MetricKey = "expirations_skipped_total"
	ExpirationsPending              MetricKey = "expirations_pending"
	ExpirationRegisterFailuresTotal MetricKey = "expiration_register_failures_total"

	// HTTP
	RequestsTotal        MetricKey = "http_requests_total"
	RequestErrorsTotal   MetricKey = "http_request_errors_total"
	PanicsRecoveredTotal MetricKey = "http_panics_recovered_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}
