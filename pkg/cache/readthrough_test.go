package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
)

// mockFetcher counts calls and returns a canned value or error.
type mockFetcher struct {
	fetchCalls atomic.Int32
	closeCalls atomic.Int32
	value      string
	err        error
}

func (m *mockFetcher) Fetch(_ context.Context, key string) (string, error) {
	m.fetchCalls.Add(1)
	if m.err != nil {
		return "", m.err
	}
	return m.value, nil
}

func (m *mockFetcher) Close() error {
	m.closeCalls.Add(1)
	return nil
}

func TestReadThrough_Fetch(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("Miss Populates Store From Fallback", func(t *testing.T) {
		// Arrange
		clock := newFakeClock()
		store := newTestStore(clock, time.Minute)
		fallback := &mockFetcher{value: "fetched"}
		rt := cache.NewReadThrough(store, fallback, logger)

		// Act
		first, err := rt.Fetch(ctx, "k")
		require.NoError(t, err)
		second, err := rt.Fetch(ctx, "k")
		require.NoError(t, err)

		// Assert: the second read was served from the store.
		assert.Equal(t, "fetched", first)
		assert.Equal(t, "fetched", second)
		assert.Equal(t, int32(1), fallback.fetchCalls.Load())
	})

	t.Run("Expired Entry Falls Through Again", func(t *testing.T) {
		// Arrange
		clock := newFakeClock()
		store := newTestStore(clock, time.Minute)
		fallback := &mockFetcher{value: "fetched"}
		rt := cache.NewReadThrough(store, fallback, logger)
		_, err := rt.Fetch(ctx, "k")
		require.NoError(t, err)

		// Act
		clock.Advance(time.Minute)
		_, err = rt.Fetch(ctx, "k")
		require.NoError(t, err)

		// Assert
		assert.Equal(t, int32(2), fallback.fetchCalls.Load())
	})

	t.Run("Fallback Failure Is Not Cached", func(t *testing.T) {
		// Arrange
		clock := newFakeClock()
		store := newTestStore(clock, time.Minute)
		fetchErr := errors.New("source unavailable")
		fallback := &mockFetcher{err: fetchErr}
		rt := cache.NewReadThrough(store, fallback, logger)

		// Act: two consecutive failing reads.
		_, err := rt.Fetch(ctx, "k")
		require.ErrorIs(t, err, fetchErr)
		_, err = rt.Fetch(ctx, "k")
		require.ErrorIs(t, err, fetchErr)

		// Assert: no negative caching, each read retried the source.
		assert.Equal(t, int32(2), fallback.fetchCalls.Load())
		assert.Equal(t, 0, store.Len())
	})

	t.Run("No Fallback Makes Miss Terminal", func(t *testing.T) {
		// Arrange
		clock := newFakeClock()
		store := newTestStore(clock, time.Minute)
		rt := cache.NewReadThrough[string, string](store, nil, logger)

		// Act
		_, err := rt.Fetch(ctx, "k")

		// Assert
		require.Error(t, err)
	})

	t.Run("Close Propagates To Fallback", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(clock, time.Minute)
		fallback := &mockFetcher{value: "v"}
		rt := cache.NewReadThrough(store, fallback, logger)

		require.NoError(t, rt.Close())

		assert.Equal(t, int32(1), fallback.closeCalls.Load())
	})
}
