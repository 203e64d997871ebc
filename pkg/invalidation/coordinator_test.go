package invalidation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/invalidation"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSession(t *testing.T) (*cache.Stores, *invalidation.Coordinator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := cache.TTLConfig{
		Detail:  time.Minute,
		Explore: time.Minute,
		Feed:    time.Minute,
		Library: time.Minute,
		Profile: time.Minute,
		Follow:  time.Minute,
	}
	stores := cache.NewStores(cfg, clock.Now)
	coordinator := invalidation.NewCoordinator(stores, nil, zerolog.Nop())
	return stores, coordinator, clock
}

// fakeRemoteTier records the keys whose remote copies were invalidated.
type fakeRemoteTier struct {
	mu          sync.Mutex
	invalidated []cache.Key
	err         error
}

func (f *fakeRemoteTier) Invalidate(_ context.Context, key cache.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.invalidated = append(f.invalidated, key)
	return nil
}

func (f *fakeRemoteTier) keys() []cache.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cache.Key(nil), f.invalidated...)
}

func newTestSessionWithRemote(t *testing.T) (*cache.Stores, *invalidation.Coordinator, *fakeRemoteTier) {
	t.Helper()
	clock := newFakeClock()
	cfg := cache.TTLConfig{
		Detail:  time.Minute,
		Explore: time.Minute,
		Feed:    time.Minute,
		Library: time.Minute,
		Profile: time.Minute,
		Follow:  time.Minute,
	}
	stores := cache.NewStores(cfg, clock.Now)
	remote := &fakeRemoteTier{}
	coordinator := invalidation.NewCoordinator(stores, remote, zerolog.Nop())
	return stores, coordinator, remote
}

func TestCoordinator_Rate(t *testing.T) {
	ctx := context.Background()

	t.Run("Detail Entry Is Evicted Not Patched", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1", RatingAverage: 4.0, RatingCount: 10})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"rating": 5.0},
		})

		// Assert: the aggregate is refetched, never rebuilt locally.
		_, ok := stores.Detail.Get(cache.DetailKey("content-1"))
		assert.False(t, ok)
	})

	t.Run("Library Rating Is Patched With Freshness Preserved", func(t *testing.T) {
		// Arrange
		stores, coordinator, clock := newTestSession(t)
		key := cache.LibraryKey("user-1", "content-1")
		stores.Library.Set(key, types.LibraryEntry{UserID: "user-1", ContentID: "content-1", Rating: 3.0})
		clock.Advance(59 * time.Second)

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"rating": 5.0},
		})

		// Assert: patched value, original expiry.
		entry, ok := stores.Library.Get(key)
		require.True(t, ok)
		assert.Equal(t, 5.0, entry.Rating)

		clock.Advance(time.Second)
		_, ok = stores.Library.Get(key)
		assert.False(t, ok)
	})

	t.Run("Library Entry For Different Content Is Evicted", func(t *testing.T) {
		// Arrange: an entry cached under the right key but describing the
		// wrong content cannot be trusted.
		stores, coordinator, _ := newTestSession(t)
		key := cache.LibraryKey("user-1", "content-1")
		stores.Library.Set(key, types.LibraryEntry{UserID: "user-1", ContentID: "content-other"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Library.Get(key)
		assert.False(t, ok)
	})

	t.Run("Profile Counters Patched When Mutation Carries Them", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Profile.Set(cache.ProfileKey("user-1"), types.ProfileStats{UserID: "user-1", RatingCount: 10})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"ratingCount": 11},
		})

		// Assert
		stats, ok := stores.Profile.Get(cache.ProfileKey("user-1"))
		require.True(t, ok)
		assert.Equal(t, 11, stats.RatingCount)
	})

	t.Run("Profile Evicted When No Counters Reported", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Profile.Set(cache.ProfileKey("user-1"), types.ProfileStats{UserID: "user-1"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Profile.Get(cache.ProfileKey("user-1"))
		assert.False(t, ok)
	})
}

func TestCoordinator_Review(t *testing.T) {
	ctx := context.Background()

	t.Run("Comment Count Patched In Place", func(t *testing.T) {
		// Arrange
		stores, coordinator, clock := newTestSession(t)
		key := cache.DetailKey("content-1")
		stores.Detail.Set(key, types.ContentSummary{ID: "content-1", CommentCount: 7})
		clock.Advance(30 * time.Second)

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationReview,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"commentCount": 8},
		})

		// Assert: counter updated, freshness window unchanged.
		summary, ok := stores.Detail.Get(key)
		require.True(t, ok)
		assert.Equal(t, 8, summary.CommentCount)

		clock.Advance(30 * time.Second)
		_, ok = stores.Detail.Get(key)
		assert.False(t, ok)
	})

	t.Run("Detail Evicted When Count Not Reported", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		key := cache.DetailKey("content-1")
		stores.Detail.Set(key, types.ContentSummary{ID: "content-1"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationReview,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Detail.Get(key)
		assert.False(t, ok)
	})
}

func TestCoordinator_Follow(t *testing.T) {
	ctx := context.Background()

	t.Run("Symmetric Invalidation", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Feed.Set(cache.FeedKey("follower", "following", ""), types.FeedPage{})
		stores.Feed.Set(cache.FeedKey("follower", "following", "cursor-2"), types.FeedPage{})
		stores.Feed.Set(cache.FeedKey("bystander", "following", ""), types.FeedPage{})
		stores.Follow.Set(cache.FollowKey("follower"), types.NewFolloweeSet([]string{"someone"}))
		stores.Follow.Set(cache.FollowKey("followee"), types.NewFolloweeSet(nil))
		stores.Profile.Set(cache.ProfileKey("follower"), types.ProfileStats{UserID: "follower"})
		stores.Profile.Set(cache.ProfileKey("followee"), types.ProfileStats{UserID: "followee"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationFollow,
			PrimaryEntityID: "followee",
			ActorID:         "follower",
			AffectedUserIDs: []string{"followee"},
			UpdatedFields:   map[string]any{"following": true},
		})

		// Assert: every feed window of the follower is gone, a bystander's
		// feed is untouched.
		_, ok := stores.Feed.Get(cache.FeedKey("follower", "following", ""))
		assert.False(t, ok)
		_, ok = stores.Feed.Get(cache.FeedKey("follower", "following", "cursor-2"))
		assert.False(t, ok)
		_, ok = stores.Feed.Get(cache.FeedKey("bystander", "following", ""))
		assert.True(t, ok)

		_, ok = stores.Follow.Get(cache.FollowKey("follower"))
		assert.False(t, ok)
		_, ok = stores.Follow.Get(cache.FollowKey("followee"))
		assert.False(t, ok)

		_, ok = stores.Profile.Get(cache.ProfileKey("follower"))
		assert.False(t, ok)
		_, ok = stores.Profile.Get(cache.ProfileKey("followee"))
		assert.False(t, ok)
	})

	t.Run("Follower Counters Patched When Reported", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Profile.Set(cache.ProfileKey("follower"), types.ProfileStats{UserID: "follower", FollowingCount: 3})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationFollow,
			PrimaryEntityID: "followee",
			ActorID:         "follower",
			UpdatedFields:   map[string]any{"followingCount": 4},
		})

		// Assert
		stats, ok := stores.Profile.Get(cache.ProfileKey("follower"))
		require.True(t, ok)
		assert.Equal(t, 4, stats.FollowingCount)
	})
}

func TestCoordinator_StatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("Existing Entry Patched", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		key := cache.LibraryKey("user-1", "content-1")
		stores.Library.Set(key, types.LibraryEntry{UserID: "user-1", ContentID: "content-1", Status: "planned"})

		// Act
		occurred := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationStatusChange,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"status": "in_progress", "progress": 40},
			OccurredAt:      occurred,
		})

		// Assert
		entry, ok := stores.Library.Get(key)
		require.True(t, ok)
		assert.Equal(t, "in_progress", entry.Status)
		assert.Equal(t, 40, entry.Progress)
		assert.Equal(t, occurred, entry.UpdatedAt)
	})

	t.Run("Cleared Status Removes Entry", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		key := cache.LibraryKey("user-1", "content-1")
		stores.Library.Set(key, types.LibraryEntry{UserID: "user-1", ContentID: "content-1", Status: "done"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationStatusChange,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"status": ""},
		})

		// Assert
		_, ok := stores.Library.Get(key)
		assert.False(t, ok)
	})

	t.Run("Absent Entry Inserted", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationStatusChange,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"status": "planned"},
		})

		// Assert
		entry, ok := stores.Library.Get(cache.LibraryKey("user-1", "content-1"))
		require.True(t, ok)
		assert.Equal(t, "planned", entry.Status)
	})

	t.Run("Status Only Patch Leaves Progress Untouched", func(t *testing.T) {
		// Arrange: the mutation result reports a new status and nothing
		// else; the cached progress must survive.
		stores, coordinator, _ := newTestSession(t)
		key := cache.LibraryKey("user-1", "content-1")
		stores.Library.Set(key, types.LibraryEntry{UserID: "user-1", ContentID: "content-1", Status: "in_progress", Progress: 40})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationStatusChange,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"status": "paused"},
		})

		// Assert
		entry, ok := stores.Library.Get(key)
		require.True(t, ok)
		assert.Equal(t, "paused", entry.Status)
		assert.Equal(t, 40, entry.Progress)
	})

	t.Run("Actor Feed Keys Invalidated", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Feed.Set(cache.FeedKey("user-1", "self", ""), types.FeedPage{})
		stores.Feed.Set(cache.FeedKey("user-2", "self", ""), types.FeedPage{})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationStatusChange,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"status": "done"},
		})

		// Assert
		_, ok := stores.Feed.Get(cache.FeedKey("user-1", "self", ""))
		assert.False(t, ok)
		_, ok = stores.Feed.Get(cache.FeedKey("user-2", "self", ""))
		assert.True(t, ok)
	})
}

func TestCoordinator_ListEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("Explore Pages Evicted", func(t *testing.T) {
		// Arrange
		stores, coordinator, _ := newTestSession(t)
		stores.Explore.Set(cache.ExploreKey("all", "trending", ""), types.ExplorePage{})
		stores.Explore.Set(cache.ExploreKey("books", "new", "c2"), types.ExplorePage{})
		stores.Feed.Set(cache.FeedKey("user-1", "self", ""), types.FeedPage{})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationListEdit,
			PrimaryEntityID: "list-1",
			ActorID:         "user-1",
		})

		// Assert
		assert.Equal(t, 0, stores.Explore.Len())
		_, ok := stores.Feed.Get(cache.FeedKey("user-1", "self", ""))
		assert.False(t, ok)
	})
}

func TestCoordinator_RemoteDetailInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Rate Clears The Remote Copy Too", func(t *testing.T) {
		// Arrange: with a remote tier behind the detail store, an in-memory
		// eviction alone would let the next read repopulate from the
		// pre-mutation remote snapshot.
		stores, coordinator, remote := newTestSessionWithRemote(t)
		stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1", RatingAverage: 4})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Detail.Get(cache.DetailKey("content-1"))
		assert.False(t, ok)
		assert.Contains(t, remote.keys(), cache.DetailKey("content-1"))
	})

	t.Run("Review Patch Still Clears The Remote Copy", func(t *testing.T) {
		// Arrange: the patch corrects the in-memory entry, but the remote
		// copy predates the mutation.
		stores, coordinator, remote := newTestSessionWithRemote(t)
		stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1", CommentCount: 7})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationReview,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
			UpdatedFields:   map[string]any{"commentCount": 8},
		})

		// Assert
		summary, ok := stores.Detail.Get(cache.DetailKey("content-1"))
		require.True(t, ok)
		assert.Equal(t, 8, summary.CommentCount)
		assert.Contains(t, remote.keys(), cache.DetailKey("content-1"))
	})

	t.Run("Review Without Count Clears Both Tiers", func(t *testing.T) {
		// Arrange
		stores, coordinator, remote := newTestSessionWithRemote(t)
		stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1"})

		// Act
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationReview,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Detail.Get(cache.DetailKey("content-1"))
		assert.False(t, ok)
		assert.Contains(t, remote.keys(), cache.DetailKey("content-1"))
	})

	t.Run("Remote Failure Does Not Escalate", func(t *testing.T) {
		// Arrange
		stores, coordinator, remote := newTestSessionWithRemote(t)
		remote.err = errors.New("redis unavailable")
		stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1"})

		// Act: must not panic; the in-memory eviction still happens.
		coordinator.OnMutationSuccess(ctx, types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "user-1",
		})

		// Assert
		_, ok := stores.Detail.Get(cache.DetailKey("content-1"))
		assert.False(t, ok)
	})
}

func TestCoordinator_UnknownKindIsIgnored(t *testing.T) {
	// Arrange
	stores, coordinator, _ := newTestSession(t)
	stores.Detail.Set(cache.DetailKey("content-1"), types.ContentSummary{ID: "content-1"})

	// Act: must not panic and must not touch any store.
	coordinator.OnMutationSuccess(context.Background(), types.MutationEvent{
		Kind:    types.MutationKind("mystery"),
		ActorID: "user-1",
	})

	// Assert
	_, ok := stores.Detail.Get(cache.DetailKey("content-1"))
	assert.True(t, ok)
}
