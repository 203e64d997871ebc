// Package invalidation maps successful domain mutations onto the minimal set
// of cache-store operations that keeps derived data from outliving them. The
// mapping lives in one policy table rather than being repeated at call sites.
package invalidation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// ErrEntryMismatch reports a patch aimed at an entry whose identity does not
// match the mutation. The store evicts the entry rather than risk corrupting
// it.
var ErrEntryMismatch = errors.New("invalidation: cached entry does not match mutation target")

// RemoteInvalidator clears a key from a remote cache tier sitting between the
// in-memory stores and the system of record. cache.RedisTier satisfies it.
type RemoteInvalidator interface {
	Invalidate(ctx context.Context, key cache.Key) error
}

// Coordinator applies the invalidation policy to the session's stores. Its
// operations are best-effort: the mutation has already succeeded upstream, so
// a patch that cannot be applied degrades to an eviction and is logged, never
// surfaced as a failure.
type Coordinator struct {
	stores       *cache.Stores
	remoteDetail RemoteInvalidator
	logger       zerolog.Logger
}

// NewCoordinator wires the coordinator to the session's store bundle.
// remoteDetail is the remote tier behind the detail store and may be nil; when
// set, detail evictions clear the remote copy too, so a refetch cannot
// repopulate from a pre-mutation snapshot.
func NewCoordinator(stores *cache.Stores, remoteDetail RemoteInvalidator, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		stores:       stores,
		remoteDetail: remoteDetail,
		logger:       logger.With().Str("component", "InvalidationCoordinator").Logger(),
	}
}

// OnMutationSuccess applies the policy entry for the event's kind. Unknown
// kinds are logged and ignored; this path never fails the caller.
func (c *Coordinator) OnMutationSuccess(ctx context.Context, event types.MutationEvent) {
	apply, ok := policy[event.Kind]
	if !ok {
		c.logger.Warn().Str("mutation_kind", string(event.Kind)).Msg("No invalidation policy for mutation kind, ignoring.")
		return
	}
	apply(c, ctx, event)
	c.logger.Debug().
		Str("mutation_kind", string(event.Kind)).
		Str("primary_entity_id", event.PrimaryEntityID).
		Str("actor_id", event.ActorID).
		Msg("Invalidation policy applied.")
}

// invalidateDetail evicts the content's detail entry from the in-memory store
// and the remote tier.
func (c *Coordinator) invalidateDetail(ctx context.Context, contentID string) {
	c.stores.Detail.Invalidate(cache.DetailKey(contentID))
	c.invalidateRemoteDetail(ctx, contentID)
}

// invalidateRemoteDetail clears the remote copy of a detail entry. A remote
// failure is logged and swallowed; the in-memory eviction has already
// happened and the mutation must not fail.
func (c *Coordinator) invalidateRemoteDetail(ctx context.Context, contentID string) {
	if c.remoteDetail == nil {
		return
	}
	if err := c.remoteDetail.Invalidate(ctx, cache.DetailKey(contentID)); err != nil {
		c.logger.Error().Err(err).Str("content_id", contentID).Msg("Remote detail invalidation failed.")
	}
}

// patchOrEvictProfile patches the actor's aggregate counters when the
// mutation result carries them, otherwise evicts the profile entry so the
// counters are refetched.
func (c *Coordinator) patchOrEvictProfile(userID string, updated map[string]any) {
	key := cache.ProfileKey(userID)

	counters := profileCounters(updated)
	if len(counters) == 0 {
		c.stores.Profile.Invalidate(key)
		return
	}

	_, err := c.stores.Profile.Patch(key, func(stats types.ProfileStats) (types.ProfileStats, error) {
		if stats.UserID != "" && stats.UserID != userID {
			return stats, ErrEntryMismatch
		}
		for field, value := range counters {
			switch field {
			case "followerCount":
				stats.FollowerCount = value
			case "followingCount":
				stats.FollowingCount = value
			case "ratingCount":
				stats.RatingCount = value
			case "reviewCount":
				stats.ReviewCount = value
			case "listCount":
				stats.ListCount = value
			}
		}
		return stats, nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", userID).Msg("Profile patch rejected, entry evicted.")
	}
}

// profileCounters extracts the counter fields the collaborator reported.
func profileCounters(updated map[string]any) map[string]int {
	counters := make(map[string]int)
	for _, field := range []string{"followerCount", "followingCount", "ratingCount", "reviewCount", "listCount"} {
		if value, ok := asInt(updated[field]); ok {
			counters[field] = value
		}
	}
	return counters
}

// asInt tolerates the numeric encodings a decoded mutation result may carry.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
