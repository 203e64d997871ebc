package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// ActivityRow is the flattened analytics shape of an activity. BigQuery
// cannot hold the payload sum type directly, so the per-kind fields are
// spread into nullable columns.
type ActivityRow struct {
	ID        string    `bigquery:"id"`
	ActorID   string    `bigquery:"actor_id"`
	Kind      string    `bigquery:"kind"`
	CreatedAt time.Time `bigquery:"created_at"`
	ContentID string    `bigquery:"content_id"`
	Title     string    `bigquery:"title"`
	Score     float64   `bigquery:"score"`
	ListID    string    `bigquery:"list_id"`
	TargetID  string    `bigquery:"target_id"`
	Status    string    `bigquery:"status"`
}

// FlattenActivity projects an activity onto its analytics row. The switch is
// exhaustive over the closed payload set.
func FlattenActivity(activity types.Activity) ActivityRow {
	row := ActivityRow{
		ID:        activity.ID,
		ActorID:   activity.ActorID,
		Kind:      string(activity.Kind),
		CreatedAt: activity.CreatedAt,
	}
	switch p := activity.Payload.(type) {
	case types.RatingPayload:
		row.ContentID = p.ContentID
		row.Title = p.Title
		row.Score = p.Score
	case types.ReviewPayload:
		row.ContentID = p.ContentID
		row.Title = p.Title
	case types.ListAddPayload:
		row.ContentID = p.ContentID
		row.Title = p.Title
		row.ListID = p.ListID
	case types.FollowPayload:
		row.TargetID = p.FolloweeID
	case types.StatusUpdatePayload:
		row.ContentID = p.ContentID
		row.Title = p.Title
		row.Status = p.Status
	}
	return row
}

// BigQueryConfig holds configuration for the activity analytics table.
type BigQueryConfig struct {
	DatasetID string
	TableID   string
}

// NewBigQueryClient creates a BigQuery client for production use, using
// Application Default Credentials unless a credentials file is provided.
func NewBigQueryClient(ctx context.Context, projectID, credentialsFile string, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	logger.Info().Str("project_id", projectID).Msg("BigQuery client created successfully.")
	return client, nil
}

// BigQueryActivitySink streams activity rows into the analytics table. It
// implements BatchSink[ActivityRow].
type BigQueryActivitySink struct {
	client   *bigquery.Client
	inserter *bigquery.Inserter
	logger   zerolog.Logger
}

// NewBigQueryActivitySink verifies the target table, creating it with a
// schema inferred from ActivityRow when it does not exist.
func NewBigQueryActivitySink(
	ctx context.Context,
	client *bigquery.Client,
	cfg *BigQueryConfig,
	logger zerolog.Logger,
) (*BigQueryActivitySink, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	logger = logger.With().Str("dataset_id", cfg.DatasetID).Str("table_id", cfg.TableID).Logger()

	tableRef := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	_, err := tableRef.Metadata(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "notFound") {
			return nil, fmt.Errorf("failed to get BigQuery table metadata: %w", err)
		}
		logger.Warn().Msg("Activity table not found, creating with inferred schema.")
		schema, inferErr := bigquery.InferSchema(ActivityRow{})
		if inferErr != nil {
			return nil, fmt.Errorf("failed to infer activity row schema: %w", inferErr)
		}
		if createErr := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: schema}); createErr != nil {
			return nil, fmt.Errorf("failed to create BigQuery table %s.%s: %w", cfg.DatasetID, cfg.TableID, createErr)
		}
	}

	return &BigQueryActivitySink{
		client:   client,
		inserter: tableRef.Inserter(),
		logger:   logger.With().Str("component", "BigQueryActivitySink").Logger(),
	}, nil
}

// InsertBatch streams a batch of rows to the table, logging row-level errors
// when the client reports them.
func (s *BigQueryActivitySink) InsertBatch(ctx context.Context, rows []*ActivityRow) error {
	if len(rows) == 0 {
		return nil
	}

	if err := s.inserter.Put(ctx, rows); err != nil {
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				s.logger.Error().Int("row_index", rowErr.RowIndex).Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}
	return nil
}

// Close is a no-op; the BigQuery client's lifecycle is managed externally.
func (s *BigQueryActivitySink) Close() error {
	return nil
}

// ActivityMirror adapts a Batcher[ActivityRow] to the feed builder's sink
// contract, flattening each activity as it arrives.
type ActivityMirror struct {
	batcher *Batcher[ActivityRow]
}

// NewActivityMirror wraps the batcher.
func NewActivityMirror(batcher *Batcher[ActivityRow]) *ActivityMirror {
	return &ActivityMirror{batcher: batcher}
}

// Add flattens and enqueues the activity without blocking.
func (m *ActivityMirror) Add(activity types.Activity) {
	row := FlattenActivity(activity)
	m.batcher.Add(&row)
}
