// Package origin defines the contracts to the system of record and provides
// the Firestore-backed implementation. The cache layer only ever holds
// read-through copies of what these sources return; retry and backoff of the
// underlying calls are the collaborator's concern, not the engine's.
package origin

import (
	"context"
	"errors"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// ErrNotFound reports that the requested entity does not exist at the source.
// Callers distinguish it from transient failures with errors.Is.
var ErrNotFound = errors.New("origin: not found")

// ActivityQuery selects a pre-filtered, pre-ordered page of activities.
// Exactly one of ActorIDs or ContentID is set: an actor-scoped feed asks for
// activities by those actors, a content-scoped feed asks for activities
// referencing that content.
type ActivityQuery struct {
	ActorIDs  []string
	ContentID string
	Cursor    string
	PageSize  int
}

// ActivityPage is one cursor window of activities, ordered by the source:
// createdAt descending, ties broken by ascending id.
type ActivityPage struct {
	Activities []types.Activity
	NextCursor string
}

// ExploreQuery selects one page of discovery results.
type ExploreQuery struct {
	Filter   string
	Sort     string
	Cursor   string
	PageSize int
}

// EntitySource fetches single entities by id.
type EntitySource interface {
	FetchContent(ctx context.Context, contentID string) (types.ContentSummary, error)
	FetchProfile(ctx context.Context, userID string) (types.ProfileStats, error)
	FetchLibraryEntry(ctx context.Context, userID, contentID string) (types.LibraryEntry, error)
}

// ActivitySource fetches pre-filtered activity pages. The source owns the
// ordering; the feed builder only fills in projections.
type ActivitySource interface {
	FetchActivities(ctx context.Context, query ActivityQuery) (ActivityPage, error)
}

// ExploreSource fetches discovery pages.
type ExploreSource interface {
	FetchExplore(ctx context.Context, query ExploreQuery) (types.ExplorePage, error)
}

// GraphSource reads and toggles the follow relation. ToggleFollow returns the
// state after the toggle; callers must not infer what the intermediate state
// was and should invalidate symmetrically.
type GraphSource interface {
	FolloweesOf(ctx context.Context, userID string) ([]string, error)
	ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error)
}

// SettingsSource reads a recipient's notification settings snapshot.
type SettingsSource interface {
	RecipientSettings(ctx context.Context, userID string) (types.RecipientSettings, error)
}
