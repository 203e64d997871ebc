package origin

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// activityDoc is the raw Firestore shape of an activity. The payload is kept
// as a map until the kind discriminant tells us which concrete shape to
// decode into.
type activityDoc struct {
	ID        string         `firestore:"id"`
	ActorID   string         `firestore:"actorId"`
	Kind      string         `firestore:"kind"`
	CreatedAt time.Time      `firestore:"createdAt"`
	Payload   map[string]any `firestore:"payload"`
}

// decodeActivityDoc maps a Firestore document onto a typed Activity. The
// decoded activity is validated so a payload whose discriminant disagrees
// with the kind never enters the engine.
func decodeActivityDoc(doc *firestore.DocumentSnapshot) (types.Activity, error) {
	var raw activityDoc
	if err := doc.DataTo(&raw); err != nil {
		return types.Activity{}, fmt.Errorf("activity DataTo: %w", err)
	}

	payload, err := decodePayload(types.ActivityKind(raw.Kind), raw.Payload)
	if err != nil {
		return types.Activity{}, err
	}

	activity := types.Activity{
		ID:        raw.ID,
		ActorID:   raw.ActorID,
		Kind:      types.ActivityKind(raw.Kind),
		CreatedAt: raw.CreatedAt,
		Payload:   payload,
	}
	if err := activity.Validate(); err != nil {
		return types.Activity{}, err
	}
	return activity, nil
}

// decodePayload builds the concrete payload for a kind. The switch is
// exhaustive over the closed set; an unknown kind is an error, not a
// free-form bag.
func decodePayload(kind types.ActivityKind, m map[string]any) (types.ActivityPayload, error) {
	switch kind {
	case types.ActivityRating:
		return types.RatingPayload{
			ContentID: docString(m, "contentId"),
			Title:     docString(m, "title"),
			PosterURL: docString(m, "posterUrl"),
			Score:     docFloat(m, "score"),
		}, nil
	case types.ActivityReview:
		return types.ReviewPayload{
			ContentID: docString(m, "contentId"),
			Title:     docString(m, "title"),
			Excerpt:   docString(m, "excerpt"),
		}, nil
	case types.ActivityListAdd:
		return types.ListAddPayload{
			ListID:    docString(m, "listId"),
			ListName:  docString(m, "listName"),
			ContentID: docString(m, "contentId"),
			Title:     docString(m, "title"),
		}, nil
	case types.ActivityFollow:
		return types.FollowPayload{
			FolloweeID:     docString(m, "followeeId"),
			FolloweeName:   docString(m, "followeeName"),
			FolloweeAvatar: docString(m, "followeeAvatar"),
		}, nil
	case types.ActivityStatusUpdate:
		return types.StatusUpdatePayload{
			ContentID: docString(m, "contentId"),
			Title:     docString(m, "title"),
			Status:    docString(m, "status"),
			Progress:  int(docFloat(m, "progress")),
		}, nil
	default:
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
}

func docString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// docFloat tolerates the integer and float encodings Firestore uses for
// numeric fields.
func docFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}

func errIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
