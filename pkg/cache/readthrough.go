package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ReadThrough combines a TTLStore with a fallback Fetcher: a miss or expired
// entry falls through to the fallback and the result is written back to the
// store before being returned.
//
// Two concurrent fetches for the same cold key may both miss and both hit the
// fallback; the second write wins. The duplicate fetch is an accepted
// inefficiency; wrap the fallback in a SingleFlightFetcher to coalesce.
type ReadThrough[K comparable, V any] struct {
	store    *TTLStore[K, V]
	fallback Fetcher[K, V]
	logger   zerolog.Logger
}

// NewReadThrough creates a read-through view over store. fallback may be nil,
// in which case a miss is terminal.
func NewReadThrough[K comparable, V any](
	store *TTLStore[K, V],
	fallback Fetcher[K, V],
	logger zerolog.Logger,
) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{
		store:    store,
		fallback: fallback,
		logger:   logger.With().Str("component", "ReadThrough").Logger(),
	}
}

// Fetch returns the cached value when fresh, otherwise fetches from the
// fallback and populates the store. A fallback failure is propagated
// unchanged and nothing is cached: there is no negative caching, the next
// call retries the source.
func (r *ReadThrough[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	if value, ok := r.store.Get(key); ok {
		return value, nil
	}

	var zero V
	if r.fallback == nil {
		return zero, fmt.Errorf("key '%v' not found in cache and no fallback is configured", key)
	}

	value, err := r.fallback.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}

	r.store.Set(key, value)
	r.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Cache miss populated from fallback.")
	return value, nil
}

// Store exposes the backing store for invalidation and patching; the store
// remains its entries' only writer.
func (r *ReadThrough[K, V]) Store() *TTLStore[K, V] {
	return r.store
}

// Close closes the fallback fetcher, if any.
func (r *ReadThrough[K, V]) Close() error {
	if r.fallback == nil {
		return nil
	}
	return r.fallback.Close()
}
