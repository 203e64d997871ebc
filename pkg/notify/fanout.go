// Package notify synthesizes notification records from successful mutations
// and delivers them to the persistence collaborator. Fan-out itself is a pure
// function of the mutation and a recipient-settings snapshot; delivery and
// persistence live behind the Publisher.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// kindForMutation maps the mutation kinds that fan out onto notification
// kinds. Mutations absent from the map (library status changes) notify
// nobody.
var kindForMutation = map[types.MutationKind]types.NotificationKind{
	types.MutationFollow:   types.NotificationFollow,
	types.MutationRate:     types.NotificationRating,
	types.MutationReview:   types.NotificationReview,
	types.MutationListEdit: types.NotificationListAdd,
}

// Emit computes the notification set for a mutation given the recipients'
// settings snapshot, keyed by user id. It never notifies the source actor of
// their own action, excludes recipients who muted the kind, and returns an
// empty set, not an error, when nobody qualifies. Duplicate recipient ids
// produce one notification.
func Emit(event types.MutationEvent, settings map[string]types.RecipientSettings, now time.Time) []types.NotificationEvent {
	kind, ok := kindForMutation[event.Kind]
	if !ok {
		return nil
	}

	notifications := make([]types.NotificationEvent, 0, len(event.AffectedUserIDs))
	seen := make(map[string]struct{}, len(event.AffectedUserIDs))
	for _, recipientID := range event.AffectedUserIDs {
		if recipientID == event.ActorID {
			continue
		}
		if _, dup := seen[recipientID]; dup {
			continue
		}
		seen[recipientID] = struct{}{}

		if settings[recipientID].Muted(kind) {
			continue
		}

		notifications = append(notifications, types.NotificationEvent{
			ID:            uuid.NewString(),
			RecipientID:   recipientID,
			Kind:          kind,
			SubjectID:     event.PrimaryEntityID,
			SourceActorID: event.ActorID,
			CreatedAt:     now,
			Read:          false,
		})
	}
	return notifications
}
