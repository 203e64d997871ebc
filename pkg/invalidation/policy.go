package invalidation

import (
	"context"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// policy is the single place the mutation-kind -> store-operation mapping is
// declared. Each entry prefers a patch when the new value is locally
// derivable from the mutation result and falls back to invalidation whenever
// correctness would otherwise require rebuilding a server-computed aggregate.
var policy = map[types.MutationKind]func(*Coordinator, context.Context, types.MutationEvent){
	types.MutationRate:         (*Coordinator).applyRate,
	types.MutationReview:       (*Coordinator).applyReview,
	types.MutationFollow:       (*Coordinator).applyFollow,
	types.MutationStatusChange: (*Coordinator).applyStatusChange,
	types.MutationListEdit:     (*Coordinator).applyListEdit,
}

// applyRate handles a rating submission. PrimaryEntityID is the content id.
//
// The detail entry is evicted, not patched: the rating average is a
// server-computed aggregate and recomputing it here is forbidden. The next
// read refetches the authoritative value. Feed entries referencing the
// content keep their snapshot until the feed TTL turns over; a rating change
// is cosmetic there.
func (c *Coordinator) applyRate(ctx context.Context, event types.MutationEvent) {
	c.invalidateDetail(ctx, event.PrimaryEntityID)

	_, err := c.stores.Library.Patch(cache.LibraryKey(event.ActorID, event.PrimaryEntityID), func(entry types.LibraryEntry) (types.LibraryEntry, error) {
		if entry.ContentID != event.PrimaryEntityID {
			return entry, ErrEntryMismatch
		}
		if score, ok := asFloat(event.UpdatedFields["rating"]); ok {
			entry.Rating = score
		}
		return entry, nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("content_id", event.PrimaryEntityID).Msg("Library patch rejected, entry evicted.")
	}

	c.patchOrEvictProfile(event.ActorID, event.UpdatedFields)
}

// applyReview handles a new review. The comment count is a plain counter the
// mutation result carries, so detail and profile entries are patched in
// place. Followers' feed pages are left to expire: feed stores are keyed per
// viewer, so they go stale lazily on their next fetch.
func (c *Coordinator) applyReview(ctx context.Context, event types.MutationEvent) {
	if count, ok := asInt(event.UpdatedFields["commentCount"]); ok {
		_, err := c.stores.Detail.Patch(cache.DetailKey(event.PrimaryEntityID), func(summary types.ContentSummary) (types.ContentSummary, error) {
			if summary.ID != "" && summary.ID != event.PrimaryEntityID {
				return summary, ErrEntryMismatch
			}
			summary.CommentCount = count
			return summary, nil
		})
		if err != nil {
			c.logger.Error().Err(err).Str("content_id", event.PrimaryEntityID).Msg("Detail patch rejected, entry evicted.")
		}
		// The patch corrected the in-memory entry only; the remote copy
		// still predates the mutation.
		c.invalidateRemoteDetail(ctx, event.PrimaryEntityID)
	} else {
		c.invalidateDetail(ctx, event.PrimaryEntityID)
	}

	c.patchOrEvictProfile(event.ActorID, event.UpdatedFields)
}

// applyFollow handles a follow toggle. The toggle direction cannot be trusted
// to reconstruct counters, so both parties' cached state is invalidated
// symmetrically: the follower's feed keys (their following feed changes), the
// membership entries for both sides, and, unless the mutation result carries
// fresh counters, both profiles.
func (c *Coordinator) applyFollow(_ context.Context, event types.MutationEvent) {
	followerID, followeeID := event.ActorID, event.PrimaryEntityID

	c.stores.Feed.InvalidateMatching(func(key cache.Key) bool {
		return key.ScopedTo(followerID)
	})

	c.stores.Follow.Invalidate(cache.FollowKey(followerID))
	c.stores.Follow.Invalidate(cache.FollowKey(followeeID))

	if len(profileCounters(event.UpdatedFields)) > 0 {
		c.patchOrEvictProfile(followerID, event.UpdatedFields)
	} else {
		c.stores.Profile.Invalidate(cache.ProfileKey(followerID))
	}
	c.stores.Profile.Invalidate(cache.ProfileKey(followeeID))
}

// applyStatusChange handles a library status transition. The (actor, content)
// entry is patched, inserted when absent, or removed when the status was
// cleared. The actor's own feed keys are invalidated because the durable
// status-update activity surfaced there changed. The content summary itself
// is untouched; per-user status never lives in the detail store.
func (c *Coordinator) applyStatusChange(_ context.Context, event types.MutationEvent) {
	key := cache.LibraryKey(event.ActorID, event.PrimaryEntityID)

	status, hasStatus := asString(event.UpdatedFields["status"])
	if hasStatus && status == "" {
		c.stores.Library.Invalidate(key)
	} else {
		progress, hasProgress := asInt(event.UpdatedFields["progress"])
		applied, err := c.stores.Library.Patch(key, func(entry types.LibraryEntry) (types.LibraryEntry, error) {
			if entry.ContentID != event.PrimaryEntityID {
				return entry, ErrEntryMismatch
			}
			if hasStatus {
				entry.Status = status
			}
			if hasProgress {
				entry.Progress = progress
			}
			entry.UpdatedAt = event.OccurredAt
			return entry, nil
		})
		if err != nil {
			c.logger.Error().Err(err).Str("content_id", event.PrimaryEntityID).Msg("Library patch rejected, entry evicted.")
		} else if !applied && hasStatus {
			c.stores.Library.Set(key, types.LibraryEntry{
				UserID:    event.ActorID,
				ContentID: event.PrimaryEntityID,
				Status:    status,
				Progress:  progress,
				UpdatedAt: event.OccurredAt,
			})
		}
	}

	c.stores.Feed.InvalidateMatching(func(key cache.Key) bool {
		return key.ScopedTo(event.ActorID)
	})

	c.patchOrEvictProfile(event.ActorID, event.UpdatedFields)
}

// applyListEdit handles a list add/remove. List item counts live with the
// system of record, not in the detail store, so there is nothing to patch
// there; the actor's feed keys are invalidated (the list activity surfaced
// there changed) and discovery pages that may surface the list are evicted.
func (c *Coordinator) applyListEdit(_ context.Context, event types.MutationEvent) {
	c.stores.Feed.InvalidateMatching(func(key cache.Key) bool {
		return key.ScopedTo(event.ActorID)
	})

	c.stores.Explore.InvalidateMatching(func(key cache.Key) bool {
		return key.Kind == cache.KindExplore
	})

	c.patchOrEvictProfile(event.ActorID, event.UpdatedFields)
}
