// Package feed builds rendering-ready feed pages: it resolves the viewer's
// scope, fetches pre-ordered activity windows from the system of record and
// fills in actor and target projections through the cached lookups.
package feed

import (
	"errors"
	"fmt"
)

// ErrTransient marks a collaborator fetch failure. The page was not built and
// no cache state changed; the caller may retry the identical request.
var ErrTransient = errors.New("feed: transient fetch failure")

// transient wraps err so callers can match ErrTransient with errors.Is while
// keeping the cause inspectable.
func transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// ScopeKind selects which actors' activities are eligible for a feed view.
type ScopeKind string

const (
	// ScopeFollowing is the viewer's followees plus the viewer themselves.
	ScopeFollowing ScopeKind = "following"
	// ScopeSelf is the viewer's own activity.
	ScopeSelf ScopeKind = "self"
	// ScopeUser is a single user's activity, viewed by anyone.
	ScopeUser ScopeKind = "user"
	// ScopeContent is all activity referencing one content item.
	ScopeContent ScopeKind = "content"
)

// Scope is the eligibility predicate for a feed request.
type Scope struct {
	Kind      ScopeKind
	UserID    string // set for ScopeUser
	ContentID string // set for ScopeContent
}

// String renders the scope into the cache-key dimension for the feed store.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeUser:
		return "user:" + s.UserID
	case ScopeContent:
		return "content:" + s.ContentID
	default:
		return string(s.Kind)
	}
}

// Request identifies one feed page.
type Request struct {
	ViewerID string
	Scope    Scope
	Cursor   string
	PageSize int
}
