package cache

import "strings"

// StoreKind names a logical entity domain. Each kind has exactly one store
// instance per session.
type StoreKind string

const (
	KindDetail  StoreKind = "detail"
	KindExplore StoreKind = "explore"
	KindFeed    StoreKind = "feed"
	KindLibrary StoreKind = "library"
	KindProfile StoreKind = "profile"
	KindFollow  StoreKind = "follow"
)

// Key is the composite cache key: store kind, a scope (user id, content id or
// a filter tuple) and, for list-shaped entries, the secondary dimensions
// (cursor, sort mode, filters) joined into Dims. Keys are built with the
// functions below and are opaque to callers outside this package's stores.
type Key struct {
	Kind  StoreKind
	Scope string
	Dims  string
}

// ScopedTo reports whether the key's scope is the given id. The coordinator
// uses this to invalidate every entry belonging to one user or content.
func (k Key) ScopedTo(id string) bool {
	return k.Scope == id
}

// DetailKey addresses one content summary.
func DetailKey(contentID string) Key {
	return Key{Kind: KindDetail, Scope: contentID}
}

// ExploreKey addresses one page of discovery results for a filter/sort tuple.
func ExploreKey(filter, sort, cursor string) Key {
	return Key{Kind: KindExplore, Scope: filter, Dims: join(sort, cursor)}
}

// FeedKey addresses one cursor window of a viewer's feed for a given scope.
func FeedKey(viewerID, scope, cursor string) Key {
	return Key{Kind: KindFeed, Scope: viewerID, Dims: join(scope, cursor)}
}

// LibraryKey addresses one (user, content) library entry.
func LibraryKey(userID, contentID string) Key {
	return Key{Kind: KindLibrary, Scope: userID, Dims: contentID}
}

// ProfileKey addresses one user's profile stats.
func ProfileKey(userID string) Key {
	return Key{Kind: KindProfile, Scope: userID}
}

// FollowKey addresses one user's followee set.
func FollowKey(userID string) Key {
	return Key{Kind: KindFollow, Scope: userID}
}

func join(dims ...string) string {
	return strings.Join(dims, "|")
}
