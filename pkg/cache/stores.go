package cache

import (
	"time"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// TTLConfig fixes the freshness window per store kind.
type TTLConfig struct {
	Detail  time.Duration
	Explore time.Duration
	Feed    time.Duration
	Library time.Duration
	Profile time.Duration
	Follow  time.Duration
}

// DefaultTTLConfig returns the production freshness windows.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Detail:  3 * time.Minute,
		Explore: 7 * time.Minute,
		Feed:    2 * time.Minute,
		Library: 5 * time.Minute,
		Profile: 4 * time.Minute,
		Follow:  3 * time.Minute,
	}
}

// Stores bundles the one-per-kind store instances for a session. The bundle
// is constructed once at session start and handed to every component that
// needs it; components never reach stores through package-level state.
//
// Each store owns its entries exclusively; the invalidation coordinator only
// ever calls the stores' own operations.
type Stores struct {
	Detail  *TTLStore[Key, types.ContentSummary]
	Explore *TTLStore[Key, types.ExplorePage]
	Feed    *TTLStore[Key, types.FeedPage]
	Library *TTLStore[Key, types.LibraryEntry]
	Profile *TTLStore[Key, types.ProfileStats]
	Follow  *TTLStore[Key, types.FolloweeSet]
}

// NewStores builds the session's store bundle. now is injectable for tests
// and may be nil.
func NewStores(cfg TTLConfig, now func() time.Time) *Stores {
	return &Stores{
		Detail:  NewTTLStore[Key, types.ContentSummary](StoreConfig{TTL: cfg.Detail, Now: now}),
		Explore: NewTTLStore[Key, types.ExplorePage](StoreConfig{TTL: cfg.Explore, Now: now}),
		Feed:    NewTTLStore[Key, types.FeedPage](StoreConfig{TTL: cfg.Feed, Now: now}),
		Library: NewTTLStore[Key, types.LibraryEntry](StoreConfig{TTL: cfg.Library, Now: now}),
		Profile: NewTTLStore[Key, types.ProfileStats](StoreConfig{TTL: cfg.Profile, Now: now}),
		Follow:  NewTTLStore[Key, types.FolloweeSet](StoreConfig{TTL: cfg.Follow, Now: now}),
	}
}
