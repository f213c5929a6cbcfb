package store

import (
	"sort"
	"sync"

	"memoryhttpd/internal/metrics"
)

// Store is a concurrency-safe in-memory key–value store.
//
// Design principles:
// - One RWMutex guards the whole map (no per-key locking)
// - Readers proceed together, writers are exclusive
// - Values are copied on the way in and on the way out
//
// Store knows nothing about expiration; deadlines live in the ttl scheduler,
// which calls back into Delete or DeleteIfGeneration.
type Store struct {
	mu      sync.RWMutex
	data    map[string]entry
	gen     uint64
	metrics *metrics.Registry
}

// NewStore initializes and returns a new Store.
func NewStore(metricsRegistry *metrics.Registry) *Store {
	return &Store{
		data:    make(map[string]entry),
		metrics: metricsRegistry,
	}
}

// Get returns a copy of the value stored under key.
//
// Behavior:
// - Returns (value, true) if key exists
// - Returns (nil, false) otherwise
func (s *Store) Get(key string) ([]byte, bool) {
	s.metrics.Inc(metrics.CacheGetsTotal)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		s.metrics.Inc(metrics.CacheMissesTotal)
		return nil, false
	}
	return cloneBytes(e.value), true
}

// Put inserts or overwrites key and returns the generation of the new value.
func (s *Store) Put(key string, value []byte) uint64 {
	v := cloneBytes(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Inc(metrics.CacheSetsTotal)

	if _, exists := s.data[key]; !exists {
		s.metrics.Inc(metrics.CacheKeysTotal)
	}

	s.gen++
	s.data[key] = entry{value: v, generation: s.gen}
	return s.gen
}

// Delete removes a key from the store. Missing keys are a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
}

// DeleteIfGeneration removes key only while it still holds the value written
// with generation gen. It reports whether an entry was removed.
func (s *Store) DeleteIfGeneration(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.generation != gen {
		return false
	}
	s.deleteLocked(key)
	return true
}

func (s *Store) deleteLocked(key string) {
	s.metrics.Inc(metrics.CacheDeletesTotal)
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.metrics.Add(metrics.CacheKeysTotal, -1)
	}
}

// Keys returns a sorted snapshot of the stored keys.
// Used by admin APIs.
func (s *Store) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
