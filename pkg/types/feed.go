package types

import "time"

// ActorIdentity is the resolved display identity attached to a feed entry.
type ActorIdentity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ContentSummary is the rendering summary of a target entity. RatingAverage
// and RatingCount are server-computed aggregates; they are never derived on
// this side of the wire.
type ContentSummary struct {
	ID            string  `json:"id" firestore:"id"`
	Title         string  `json:"title" firestore:"title"`
	PosterURL     string  `json:"posterUrl,omitempty" firestore:"posterUrl"`
	RatingAverage float64 `json:"ratingAverage" firestore:"ratingAverage"`
	RatingCount   int     `json:"ratingCount" firestore:"ratingCount"`
	CommentCount  int     `json:"commentCount" firestore:"commentCount"`
}

// FeedEntry is a rendering-ready projection of an Activity with its resolved
// actor identity and, where the kind requires one, a resolved target summary.
// Degraded marks entries whose target could not be resolved and carry a
// placeholder summary instead.
type FeedEntry struct {
	Activity Activity        `json:"activity"`
	Actor    ActorIdentity   `json:"actor"`
	Target   *ContentSummary `json:"target,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
}

// FeedPage is one cursor window of feed entries. Pages are cached whole under
// a key that includes the cursor they were fetched for.
type FeedPage struct {
	Entries    []FeedEntry `json:"entries"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// ExplorePage is one cursor window of discovery results.
type ExplorePage struct {
	Items      []ContentSummary `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// LibraryEntry is a user's per-content library state.
type LibraryEntry struct {
	UserID    string    `json:"userId" firestore:"userId"`
	ContentID string    `json:"contentId" firestore:"contentId"`
	Status    string    `json:"status" firestore:"status"`
	Progress  int       `json:"progress" firestore:"progress"`
	Rating    float64   `json:"rating,omitempty" firestore:"rating"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// ProfileStats is a user's profile header with aggregate counters.
type ProfileStats struct {
	UserID         string `json:"userId" firestore:"userId"`
	Name           string `json:"name" firestore:"name"`
	AvatarURL      string `json:"avatarUrl,omitempty" firestore:"avatarUrl"`
	FollowerCount  int    `json:"followerCount" firestore:"followerCount"`
	FollowingCount int    `json:"followingCount" firestore:"followingCount"`
	RatingCount    int    `json:"ratingCount" firestore:"ratingCount"`
	ReviewCount    int    `json:"reviewCount" firestore:"reviewCount"`
	ListCount      int    `json:"listCount" firestore:"listCount"`
}
