package types

import "time"

// FollowEdge is a directed follow relation. Edges are unique per ordered pair
// and a user never follows themselves; the system of record enforces both,
// this side only reads.
type FollowEdge struct {
	FollowerID string    `json:"followerId" firestore:"followerId"`
	FolloweeID string    `json:"followeeId" firestore:"followeeId"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// FolloweeSet is the set of user ids a given user follows. Values cached in a
// store are treated as immutable; mutations go through Clone.
type FolloweeSet map[string]struct{}

// NewFolloweeSet builds a set from a slice of user ids.
func NewFolloweeSet(ids []string) FolloweeSet {
	s := make(FolloweeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s FolloweeSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of the set.
func (s FolloweeSet) Clone() FolloweeSet {
	c := make(FolloweeSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// IDs returns the member ids in unspecified order.
func (s FolloweeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}
