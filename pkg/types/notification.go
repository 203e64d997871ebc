package types

import "time"

// NotificationKind identifies what a notification is about. Kinds mirror the
// mutation kinds that fan out; recipients mute kinds individually.
type NotificationKind string

const (
	NotificationFollow  NotificationKind = "follow"
	NotificationRating  NotificationKind = "rating"
	NotificationReview  NotificationKind = "review"
	NotificationListAdd NotificationKind = "list_add"
)

// NotificationEvent is one recipient-specific output of fan-out. The engine
// synthesizes these; persisting them is the collaborator store's job.
type NotificationEvent struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipientId"`
	Kind          NotificationKind `json:"kind"`
	SubjectID     string           `json:"subjectId"`
	SourceActorID string           `json:"sourceActorId"`
	CreatedAt     time.Time        `json:"createdAt"`
	Read          bool             `json:"read"`
}

// RecipientSettings is the per-user notification preference snapshot read
// from the collaborator before fan-out.
type RecipientSettings struct {
	UserID     string                    `json:"userId" firestore:"userId"`
	MutedKinds map[NotificationKind]bool `json:"mutedKinds,omitempty" firestore:"mutedKinds"`
}

// Muted reports whether the recipient has muted the given kind.
func (s RecipientSettings) Muted(kind NotificationKind) bool {
	return s.MutedKinds[kind]
}
