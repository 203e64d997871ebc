package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// SingleFlightFetcher coalesces concurrent fetches for the same key into one
// in-flight call to the inner fetcher. It is an opt-in decorator: the engine
// defaults to the uncoalesced behaviour, where concurrent cold reads may each
// hit the source.
type SingleFlightFetcher[K comparable, V any] struct {
	inner Fetcher[K, V]
	group singleflight.Group
}

// NewSingleFlightFetcher wraps inner with duplicate-call suppression.
func NewSingleFlightFetcher[K comparable, V any](inner Fetcher[K, V]) *SingleFlightFetcher[K, V] {
	return &SingleFlightFetcher[K, V]{inner: inner}
}

// Fetch delegates to the inner fetcher, sharing the result with every caller
// that arrived while the call was in flight. Errors are shared the same way
// and nothing is retained between calls.
func (f *SingleFlightFetcher[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	result, err, _ := f.group.Do(fmt.Sprintf("%v", key), func() (any, error) {
		return f.inner.Fetch(ctx, key)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Close closes the inner fetcher.
func (f *SingleFlightFetcher[K, V]) Close() error {
	return f.inner.Close()
}
