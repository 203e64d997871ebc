// Package cache provides the in-memory, TTL-bounded stores the feed engine
// reads through, plus the fetcher chain used to populate them from the
// system of record.
package cache

import (
	"sync"
	"time"
)

// entry pairs a cached value with the time it was fetched. An entry is valid
// only while now - storedAt < TTL; after that it is logically absent.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// StoreConfig configures a TTLStore. Now is injectable for tests and defaults
// to time.Now.
type StoreConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// TTLStore is a generic, thread-safe, in-memory store with lazy TTL expiry.
// It holds no network or disk resources and its operations never fail; a
// caller-supplied patch mutator is the only code that can produce an error.
//
// Expired entries are evicted on the read that finds them stale, not by a
// background sweep.
type TTLStore[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[K]entry[V]
}

// NewTTLStore creates a store whose entries live for cfg.TTL after each Set.
func NewTTLStore[K comparable, V any](cfg StoreConfig) *TTLStore[K, V] {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TTLStore[K, V]{
		ttl:     cfg.TTL,
		now:     now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the stored value if it is still within its freshness window.
// A stale entry is deleted and reported as a miss.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if s.now().Sub(e.storedAt) >= s.ttl {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set unconditionally overwrites the entry and resets its freshness window.
func (s *TTLStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, storedAt: s.now()}
}

// Patch replaces the value with mutate(value) while preserving the original
// storedAt: a partial correction inherits the remaining freshness window of
// the fetch it corrects, it is not a refresh.
//
// Patching an absent or expired key is a no-op and returns (false, nil); a
// patch racing an invalidation loses silently. If mutate returns an error the
// entry is evicted rather than left possibly corrupt, and the error is
// returned.
func (s *TTLStore[K, V]) Patch(key K, mutate func(V) (V, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.now().Sub(e.storedAt) >= s.ttl {
		delete(s.entries, key)
		return false, nil
	}

	updated, err := mutate(e.value)
	if err != nil {
		delete(s.entries, key)
		return false, err
	}
	s.entries[key] = entry[V]{value: updated, storedAt: e.storedAt}
	return true, nil
}

// Invalidate removes the entry immediately. Invalidating an absent key is a
// no-op.
func (s *TTLStore[K, V]) Invalidate(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidateMatching removes every entry whose key satisfies the predicate.
func (s *TTLStore[K, V]) InvalidateMatching(match func(K) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if match(key) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of entries currently held, including any that are
// stale but not yet lazily evicted.
func (s *TTLStore[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
