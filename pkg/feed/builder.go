package feed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/origin"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// GraphReader resolves the followee set for following-scoped requests. The
// social graph accessor satisfies it.
type GraphReader interface {
	FolloweesOf(ctx context.Context, userID string) (types.FolloweeSet, error)
}

// ActivitySink receives a copy of every activity the builder processes, for
// analytics archival. Add must not block the read path.
type ActivitySink interface {
	Add(activity types.Activity)
}

// Builder assembles feed pages. A request moves through fetch (raw activity
// window from the source) and merge (projection resolution) before the page
// is cached and returned; a transient failure leaves no state behind, so a
// retry simply re-enters the fetch.
type Builder struct {
	store      *cache.TTLStore[cache.Key, types.FeedPage]
	activities origin.ActivitySource
	contents   cache.Fetcher[cache.Key, types.ContentSummary]
	profiles   cache.Fetcher[cache.Key, types.ProfileStats]
	graph      GraphReader
	sink       ActivitySink
	logger     zerolog.Logger
}

// NewBuilder wires the builder to the session's feed store and the cached
// side-lookup fetchers. sink may be nil to disable archival.
func NewBuilder(
	store *cache.TTLStore[cache.Key, types.FeedPage],
	activities origin.ActivitySource,
	contents cache.Fetcher[cache.Key, types.ContentSummary],
	profiles cache.Fetcher[cache.Key, types.ProfileStats],
	graph GraphReader,
	sink ActivitySink,
	logger zerolog.Logger,
) *Builder {
	return &Builder{
		store:      store,
		activities: activities,
		contents:   contents,
		profiles:   profiles,
		graph:      graph,
		sink:       sink,
		logger:     logger.With().Str("component", "FeedBuilder").Logger(),
	}
}

// BuildPage returns the feed page for the request. A page fetched once is
// cached under a key that includes the cursor, so re-reading the same window
// within the feed TTL is a hit; the page is written back under the exact key
// it was fetched for, so a fetch superseded by a scope change can never
// populate the wrong entry.
//
// The source owns the ordering (createdAt descending, ties by ascending id);
// the builder only fills in projections and never reorders.
func (b *Builder) BuildPage(ctx context.Context, req Request) (types.FeedPage, error) {
	key := cache.FeedKey(req.ViewerID, req.Scope.String(), req.Cursor)
	if page, ok := b.store.Get(key); ok {
		return page, nil
	}

	query, eligible, err := b.resolveScope(ctx, req)
	if err != nil {
		return types.FeedPage{}, transient(err)
	}

	raw, err := b.activities.FetchActivities(ctx, query)
	if err != nil {
		return types.FeedPage{}, transient(err)
	}

	page := types.FeedPage{NextCursor: raw.NextCursor}
	for _, activity := range raw.Activities {
		if eligible != nil && !eligible.Contains(activity.ActorID) {
			b.logger.Warn().Str("activity_id", activity.ID).Str("actor_id", activity.ActorID).Msg("Dropping activity outside feed scope.")
			continue
		}
		entry, ok := b.resolveEntry(ctx, activity)
		if !ok {
			continue
		}
		page.Entries = append(page.Entries, entry)
		if b.sink != nil {
			b.sink.Add(activity)
		}
	}

	b.store.Set(key, page)
	return page, nil
}

// resolveScope turns the request scope into the activity query and, for
// actor-scoped feeds, the eligible actor set. A nil set means unrestricted
// (content scope, where the source filters by reference instead).
func (b *Builder) resolveScope(ctx context.Context, req Request) (origin.ActivityQuery, types.FolloweeSet, error) {
	query := origin.ActivityQuery{Cursor: req.Cursor, PageSize: req.PageSize}

	switch req.Scope.Kind {
	case ScopeFollowing:
		followees, err := b.graph.FolloweesOf(ctx, req.ViewerID)
		if err != nil {
			return origin.ActivityQuery{}, nil, err
		}
		eligible := followees.Clone()
		eligible[req.ViewerID] = struct{}{}
		query.ActorIDs = eligible.IDs()
		return query, eligible, nil
	case ScopeSelf:
		eligible := types.NewFolloweeSet([]string{req.ViewerID})
		query.ActorIDs = []string{req.ViewerID}
		return query, eligible, nil
	case ScopeUser:
		eligible := types.NewFolloweeSet([]string{req.Scope.UserID})
		query.ActorIDs = []string{req.Scope.UserID}
		return query, eligible, nil
	case ScopeContent:
		query.ContentID = req.Scope.ContentID
		return query, nil, nil
	default:
		return origin.ActivityQuery{}, nil, fmt.Errorf("unknown feed scope %q", req.Scope.Kind)
	}
}

// resolveEntry attaches the actor identity and, where the kind requires one,
// the target summary. An unresolvable actor drops the entry, since there is
// nothing renderable without an identity. An unresolvable target degrades to
// a placeholder summary; a single bad side-lookup never fails the page.
func (b *Builder) resolveEntry(ctx context.Context, activity types.Activity) (types.FeedEntry, bool) {
	stats, err := b.profiles.Fetch(ctx, cache.ProfileKey(activity.ActorID))
	if err != nil {
		b.logger.Warn().Err(err).Str("activity_id", activity.ID).Str("actor_id", activity.ActorID).Msg("Dropping entry with unresolvable actor.")
		return types.FeedEntry{}, false
	}

	entry := types.FeedEntry{
		Activity: activity,
		Actor: types.ActorIdentity{
			ID:        activity.ActorID,
			Name:      stats.Name,
			AvatarURL: stats.AvatarURL,
		},
	}

	if contentID, ok := targetContentID(activity.Payload); ok {
		summary, err := b.contents.Fetch(ctx, cache.DetailKey(contentID))
		if err != nil {
			b.logger.Debug().Err(err).Str("activity_id", activity.ID).Str("content_id", contentID).Msg("Target unresolved, rendering placeholder.")
			entry.Target = &types.ContentSummary{ID: contentID}
			entry.Degraded = true
		} else {
			entry.Target = &summary
		}
	}

	return entry, true
}

// targetContentID extracts the target reference from the payload. Follow
// activities carry their rendering summary inline and have no target.
func targetContentID(payload types.ActivityPayload) (string, bool) {
	switch p := payload.(type) {
	case types.RatingPayload:
		return p.ContentID, true
	case types.ReviewPayload:
		return p.ContentID, true
	case types.ListAddPayload:
		return p.ContentID, true
	case types.StatusUpdatePayload:
		return p.ContentID, true
	case types.FollowPayload:
		return "", false
	default:
		return "", false
	}
}
