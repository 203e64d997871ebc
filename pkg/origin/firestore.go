package origin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// Firestore caps "in" filters; actor sets larger than this are queried in
// chunks and merged.
const actorChunkSize = 10

// FirestoreConfig names the collections backing each entity domain.
type FirestoreConfig struct {
	ProjectID            string
	ContentsCollection   string
	ProfilesCollection   string
	LibraryCollection    string
	ActivitiesCollection string
	FollowsCollection    string
	SettingsCollection   string
}

// FirestoreOrigin is the Firestore-backed system of record. It implements
// EntitySource, ActivitySource, ExploreSource, GraphSource and SettingsSource.
type FirestoreOrigin struct {
	client *firestore.Client
	cfg    FirestoreConfig
	logger zerolog.Logger
}

// NewFirestoreOrigin wraps an existing Firestore client. The client's
// lifecycle is managed by the caller.
func NewFirestoreOrigin(cfg FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreOrigin, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestoreOrigin{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "FirestoreOrigin").Logger(),
	}, nil
}

// FetchContent retrieves one content summary.
func (o *FirestoreOrigin) FetchContent(ctx context.Context, contentID string) (types.ContentSummary, error) {
	var summary types.ContentSummary
	err := o.fetchDoc(ctx, o.cfg.ContentsCollection, contentID, &summary)
	return summary, err
}

// FetchProfile retrieves one user's profile stats.
func (o *FirestoreOrigin) FetchProfile(ctx context.Context, userID string) (types.ProfileStats, error) {
	var stats types.ProfileStats
	err := o.fetchDoc(ctx, o.cfg.ProfilesCollection, userID, &stats)
	return stats, err
}

// FetchLibraryEntry retrieves one (user, content) library entry. Entries are
// stored under a composite document id.
func (o *FirestoreOrigin) FetchLibraryEntry(ctx context.Context, userID, contentID string) (types.LibraryEntry, error) {
	var entry types.LibraryEntry
	err := o.fetchDoc(ctx, o.cfg.LibraryCollection, pairID(userID, contentID), &entry)
	return entry, err
}

// RecipientSettings retrieves a user's notification settings. A user with no
// settings document gets the zero snapshot: nothing muted.
func (o *FirestoreOrigin) RecipientSettings(ctx context.Context, userID string) (types.RecipientSettings, error) {
	var settings types.RecipientSettings
	err := o.fetchDoc(ctx, o.cfg.SettingsCollection, userID, &settings)
	if errIsNotFound(err) {
		return types.RecipientSettings{UserID: userID}, nil
	}
	return settings, err
}

// FolloweesOf lists the ids a user follows.
func (o *FirestoreOrigin) FolloweesOf(ctx context.Context, userID string) ([]string, error) {
	iter := o.client.Collection(o.cfg.FollowsCollection).
		Where("followerId", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	var followees []string
	for {
		doc, err := iter.Next()
		if err != nil {
			if isIteratorDone(err) {
				break
			}
			return nil, fmt.Errorf("firestore follows query for %s: %w", userID, err)
		}
		var edge types.FollowEdge
		if err := doc.DataTo(&edge); err != nil {
			return nil, fmt.Errorf("firestore follows DataTo for %s: %w", userID, err)
		}
		followees = append(followees, edge.FolloweeID)
	}
	return followees, nil
}

// ToggleFollow flips the follow edge for the ordered pair and returns the new
// state. Self-follows are rejected. The read-then-write runs in a transaction
// so concurrent toggles of the same pair serialize instead of both observing
// the same initial state.
func (o *FirestoreOrigin) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, fmt.Errorf("user %s cannot follow themselves", followerID)
	}

	docRef := o.client.Collection(o.cfg.FollowsCollection).Doc(pairID(followerID, followeeID))
	var nowFollowing bool
	err := o.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(docRef)
		switch {
		case err == nil:
			nowFollowing = false
			return tx.Delete(docRef)
		case status.Code(err) == codes.NotFound:
			nowFollowing = true
			edge := types.FollowEdge{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}
			return tx.Set(docRef, edge)
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("firestore follow toggle %s->%s: %w", followerID, followeeID, err)
	}
	return nowFollowing, nil
}

// FetchActivities returns one page of activities, createdAt descending with
// ties broken by ascending id. Actor sets beyond the "in" filter limit are
// queried in chunks and merged back into that order before the page is cut.
func (o *FirestoreOrigin) FetchActivities(ctx context.Context, query ActivityQuery) (ActivityPage, error) {
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	afterTime, afterID, err := decodeCursor(query.Cursor)
	if err != nil {
		return ActivityPage{}, err
	}

	var activities []types.Activity
	switch {
	case query.ContentID != "":
		activities, err = o.runActivityQuery(ctx, o.activityBase().Where("payload.contentId", "==", query.ContentID), afterTime, afterID, query.PageSize)
	case len(query.ActorIDs) == 0:
		return ActivityPage{}, nil
	default:
		for _, chunk := range chunkIDs(query.ActorIDs, actorChunkSize) {
			chunkActivities, chunkErr := o.runActivityQuery(ctx, o.activityBase().Where("actorId", "in", chunk), afterTime, afterID, query.PageSize)
			if chunkErr != nil {
				return ActivityPage{}, chunkErr
			}
			activities = append(activities, chunkActivities...)
		}
		sort.SliceStable(activities, func(i, j int) bool {
			if !activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
				return activities[i].CreatedAt.After(activities[j].CreatedAt)
			}
			return activities[i].ID < activities[j].ID
		})
		if len(activities) > query.PageSize {
			activities = activities[:query.PageSize]
		}
	}
	if err != nil {
		return ActivityPage{}, err
	}

	page := ActivityPage{Activities: activities}
	if len(activities) == query.PageSize {
		last := activities[len(activities)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// FetchExplore returns one page of discovery results for a category filter.
func (o *FirestoreOrigin) FetchExplore(ctx context.Context, query ExploreQuery) (types.ExplorePage, error) {
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	sortField := query.Sort
	if sortField == "" {
		sortField = "ratingAverage"
	}

	q := o.client.Collection(o.cfg.ContentsCollection).Query
	if query.Filter != "" {
		q = q.Where("category", "==", query.Filter)
	}
	q = q.OrderBy(sortField, firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(query.PageSize)
	if query.Cursor != "" {
		q = q.StartAfter(query.Cursor)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var page types.ExplorePage
	var lastDocID string
	for {
		doc, err := iter.Next()
		if err != nil {
			if isIteratorDone(err) {
				break
			}
			return types.ExplorePage{}, fmt.Errorf("firestore explore query: %w", err)
		}
		var summary types.ContentSummary
		if err := doc.DataTo(&summary); err != nil {
			return types.ExplorePage{}, fmt.Errorf("firestore explore DataTo: %w", err)
		}
		page.Items = append(page.Items, summary)
		lastDocID = doc.Ref.ID
	}
	if len(page.Items) == query.PageSize {
		page.NextCursor = lastDocID
	}
	return page, nil
}

// Close is a no-op; the Firestore client's lifecycle is managed externally.
func (o *FirestoreOrigin) Close() error {
	return nil
}

func (o *FirestoreOrigin) activityBase() firestore.Query {
	return o.client.Collection(o.cfg.ActivitiesCollection).Query
}

func (o *FirestoreOrigin) runActivityQuery(ctx context.Context, q firestore.Query, afterTime time.Time, afterID string, pageSize int) ([]types.Activity, error) {
	q = q.OrderBy("createdAt", firestore.Desc).OrderBy("id", firestore.Asc).Limit(pageSize)
	if !afterTime.IsZero() {
		q = q.StartAfter(afterTime, afterID)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var activities []types.Activity
	for {
		doc, err := iter.Next()
		if err != nil {
			if isIteratorDone(err) {
				break
			}
			return nil, fmt.Errorf("firestore activity query: %w", err)
		}
		activity, err := decodeActivityDoc(doc)
		if err != nil {
			o.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping malformed activity document.")
			continue
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// fetchDoc retrieves one document, mapping Firestore's NotFound onto the
// package sentinel.
func (o *FirestoreOrigin) fetchDoc(ctx context.Context, collection, id string, out any) error {
	doc, err := o.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("firestore get %s/%s: %w", collection, id, err)
	}
	if err := doc.DataTo(out); err != nil {
		return fmt.Errorf("firestore DataTo %s/%s: %w", collection, id, err)
	}
	return nil
}

func pairID(a, b string) string {
	return a + "_" + b
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// encodeCursor packs the last entry's sort values into an opaque cursor.
func encodeCursor(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
}

func decodeCursor(cursor string) (time.Time, string, error) {
	if cursor == "" {
		return time.Time{}, "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor %q", cursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor timestamp %q: %w", parts[0], err)
	}
	return createdAt, parts[1], nil
}
