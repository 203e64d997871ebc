// Package socialgraph provides read-through queries over the follow relation
// and the follow toggle that drives symmetric cache invalidation.
package socialgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/origin"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// MutationSink receives successful mutation events. The invalidation
// coordinator satisfies it; the accessor stays decoupled from the
// coordinator's concrete type.
type MutationSink interface {
	OnMutationSuccess(ctx context.Context, event types.MutationEvent)
}

// Accessor answers follow-relation queries through the membership cache and
// delegates follow toggles to the system of record.
type Accessor struct {
	store  *cache.TTLStore[cache.Key, types.FolloweeSet]
	graph  origin.GraphSource
	sink   MutationSink
	logger zerolog.Logger
}

// NewAccessor wires the accessor to the session's follow-membership store.
func NewAccessor(
	store *cache.TTLStore[cache.Key, types.FolloweeSet],
	graph origin.GraphSource,
	sink MutationSink,
	logger zerolog.Logger,
) *Accessor {
	return &Accessor{
		store:  store,
		graph:  graph,
		sink:   sink,
		logger: logger.With().Str("component", "SocialGraphAccessor").Logger(),
	}
}

// FolloweesOf returns the set of ids the user follows, read through the
// membership cache.
func (a *Accessor) FolloweesOf(ctx context.Context, userID string) (types.FolloweeSet, error) {
	key := cache.FollowKey(userID)
	if set, ok := a.store.Get(key); ok {
		return set, nil
	}

	ids, err := a.graph.FolloweesOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("followees of %s: %w", userID, err)
	}

	set := types.NewFolloweeSet(ids)
	a.store.Set(key, set)
	return set, nil
}

// IsFollowing reports whether a follows b. A user never follows themselves.
func (a *Accessor) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, nil
	}
	set, err := a.FolloweesOf(ctx, followerID)
	if err != nil {
		return false, err
	}
	return set.Contains(followeeID), nil
}

// ToggleFollow flips the follow edge and reports the new state. The mutation
// event is delivered to the sink unconditionally, whichever direction the
// toggle moved: the coordinator cannot safely infer intermediate state from a
// toggle-shaped call, so it invalidates symmetrically.
func (a *Accessor) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, fmt.Errorf("user %s cannot follow themselves", followerID)
	}

	nowFollowing, err := a.graph.ToggleFollow(ctx, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("toggle follow %s->%s: %w", followerID, followeeID, err)
	}

	event := types.MutationEvent{
		Kind:            types.MutationFollow,
		PrimaryEntityID: followeeID,
		ActorID:         followerID,
		AffectedUserIDs: []string{followeeID},
		OccurredAt:      time.Now().UTC(),
	}
	if nowFollowing {
		event.UpdatedFields = map[string]any{"following": true}
	} else {
		event.UpdatedFields = map[string]any{"following": false}
	}
	a.sink.OnMutationSuccess(ctx, event)

	a.logger.Debug().
		Str("follower_id", followerID).
		Str("followee_id", followeeID).
		Bool("now_following", nowFollowing).
		Msg("Follow toggled.")
	return nowFollowing, nil
}
