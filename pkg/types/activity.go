// Package types holds the shared domain model for the social feed engine:
// activities, feed projections, follow edges, notifications and mutation events.
package types

import (
	"fmt"
	"time"
)

// ActivityKind discriminates the closed set of activity payload shapes.
type ActivityKind string

const (
	ActivityRating       ActivityKind = "rating"
	ActivityReview       ActivityKind = "review"
	ActivityListAdd      ActivityKind = "list_add"
	ActivityFollow       ActivityKind = "follow"
	ActivityStatusUpdate ActivityKind = "status_update"
)

// ActivityPayload is the closed sum of per-kind payload shapes. Each payload
// carries a fixed, typed shape; consumers switch exhaustively on the concrete
// type. The unexported method seals the set so a new kind is a compile-time
// exercise at every consumption site.
type ActivityPayload interface {
	Kind() ActivityKind
	sealed()
}

// RatingPayload summarises the rated item and the score given.
type RatingPayload struct {
	ContentID string  `json:"contentId" firestore:"contentId"`
	Title     string  `json:"title" firestore:"title"`
	PosterURL string  `json:"posterUrl,omitempty" firestore:"posterUrl"`
	Score     float64 `json:"score" firestore:"score"`
}

func (RatingPayload) Kind() ActivityKind { return ActivityRating }
func (RatingPayload) sealed()            {}

// ReviewPayload carries an excerpt of the review text alongside the item.
type ReviewPayload struct {
	ContentID string `json:"contentId" firestore:"contentId"`
	Title     string `json:"title" firestore:"title"`
	Excerpt   string `json:"excerpt" firestore:"excerpt"`
}

func (ReviewPayload) Kind() ActivityKind { return ActivityReview }
func (ReviewPayload) sealed()            {}

// ListAddPayload records an item being added to a named list.
type ListAddPayload struct {
	ListID    string `json:"listId" firestore:"listId"`
	ListName  string `json:"listName" firestore:"listName"`
	ContentID string `json:"contentId" firestore:"contentId"`
	Title     string `json:"title" firestore:"title"`
}

func (ListAddPayload) Kind() ActivityKind { return ActivityListAdd }
func (ListAddPayload) sealed()            {}

// FollowPayload summarises the followed user; follow activities have no
// content target, the payload itself is the rendering summary.
type FollowPayload struct {
	FolloweeID     string `json:"followeeId" firestore:"followeeId"`
	FolloweeName   string `json:"followeeName" firestore:"followeeName"`
	FolloweeAvatar string `json:"followeeAvatar,omitempty" firestore:"followeeAvatar"`
}

func (FollowPayload) Kind() ActivityKind { return ActivityFollow }
func (FollowPayload) sealed()            {}

// StatusUpdatePayload records a library status transition for an item.
type StatusUpdatePayload struct {
	ContentID string `json:"contentId" firestore:"contentId"`
	Title     string `json:"title" firestore:"title"`
	Status    string `json:"status" firestore:"status"`
	Progress  int    `json:"progress,omitempty" firestore:"progress"`
}

func (StatusUpdatePayload) Kind() ActivityKind { return ActivityStatusUpdate }
func (StatusUpdatePayload) sealed()            {}

// Activity is a single event in a user's history as held by the system of
// record. The cache layer only ever holds read-through copies.
type Activity struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actorId"`
	Kind      ActivityKind    `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   ActivityPayload `json:"payload"`
}

// Validate checks the payload discriminant against the declared kind.
// A mismatch is a consistency violation and the activity must not be cached
// or projected.
func (a Activity) Validate() error {
	if a.Payload == nil {
		return fmt.Errorf("activity %s: nil payload", a.ID)
	}
	if got := a.Payload.Kind(); got != a.Kind {
		return fmt.Errorf("activity %s: payload kind %q does not match activity kind %q", a.ID, got, a.Kind)
	}
	return nil
}
