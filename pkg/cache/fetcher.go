package cache

import (
	"context"
	"io"
)

// Fetcher is the generic contract to a source of values, usually the
// collaborator data-access API or another cache tier in front of it.
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
	io.Closer
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Fetch calls the wrapped function.
func (f FetchFunc[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// Close is a no-op for function fetchers.
func (f FetchFunc[K, V]) Close() error { return nil }
