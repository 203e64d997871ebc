package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// The GCS client is abstracted behind small interfaces so the uploader can be
// unit-tested without a real bucket.

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	NewWriter(ctx context.Context) io.WriteCloser
}

type gcsClientAdapter struct{ client *storage.Client }

// NewGCSClientAdapter makes a concrete *storage.Client satisfy GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketAdapter struct{ handle *storage.BucketHandle }

func (a *gcsBucketAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectAdapter{handle: a.handle.Object(name)}
}

type gcsObjectAdapter struct{ handle *storage.ObjectHandle }

func (a *gcsObjectAdapter) NewWriter(ctx context.Context) io.WriteCloser {
	return a.handle.NewWriter(ctx)
}

// GCSAuditConfig holds configuration for the notification audit trail.
type GCSAuditConfig struct {
	BucketName   string
	ObjectPrefix string
}

// GCSAuditSink writes batches of notification events as compressed JSONL
// objects, grouped by the day they were created. It implements
// BatchSink[types.NotificationEvent].
type GCSAuditSink struct {
	client GCSClient
	cfg    GCSAuditConfig
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewGCSAuditSink creates the sink.
func NewGCSAuditSink(client GCSClient, cfg GCSAuditConfig, logger zerolog.Logger) (*GCSAuditSink, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	return &GCSAuditSink{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "GCSAuditSink").Logger(),
	}, nil
}

// InsertBatch groups the events by day key and uploads each group as one
// object, in parallel.
func (s *GCSAuditSink) InsertBatch(ctx context.Context, events []*types.NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}

	groups := make(map[string][]*types.NotificationEvent)
	for _, event := range events {
		if event == nil {
			continue
		}
		created := event.CreatedAt.UTC()
		dayKey := fmt.Sprintf("%d/%02d/%02d", created.Year(), created.Month(), created.Day())
		groups[dayKey] = append(groups[dayKey], event)
	}

	var uploadWg sync.WaitGroup
	errs := make(chan error, len(groups))
	for dayKey, group := range groups {
		uploadWg.Add(1)
		s.wg.Add(1)
		go func(key string, batch []*types.NotificationEvent) {
			defer uploadWg.Done()
			defer s.wg.Done()
			if err := s.uploadGroup(ctx, key, batch); err != nil {
				errs <- err
			}
		}(dayKey, group)
	}
	uploadWg.Wait()
	close(errs)

	var combined error
	for err := range errs {
		combined = errors.Join(combined, err)
	}
	return combined
}

func (s *GCSAuditSink) uploadGroup(ctx context.Context, dayKey string, batch []*types.NotificationEvent) error {
	objectName := path.Join(s.cfg.ObjectPrefix, dayKey, fmt.Sprintf("%s.jsonl.gz", uuid.New().String()))

	writer := s.client.Bucket(s.cfg.BucketName).Object(objectName).NewWriter(ctx)
	gz := gzip.NewWriter(writer)
	enc := json.NewEncoder(gz)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			_ = gz.Close()
			_ = writer.Close()
			return fmt.Errorf("json encoding failed for %s: %w", objectName, err)
		}
	}
	if err := gz.Close(); err != nil {
		_ = writer.Close()
		return fmt.Errorf("gzip close failed for %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, err)
	}

	s.logger.Info().Str("object_name", objectName).Int("record_count", len(batch)).Msg("Uploaded notification audit batch.")
	return nil
}

// Close waits for in-flight uploads to complete.
func (s *GCSAuditSink) Close() error {
	s.wg.Wait()
	return nil
}

// AuditMirror adapts a Batcher[types.NotificationEvent] to the fan-out
// service's audit contract.
type AuditMirror struct {
	batcher *Batcher[types.NotificationEvent]
}

// NewAuditMirror wraps the batcher.
func NewAuditMirror(batcher *Batcher[types.NotificationEvent]) *AuditMirror {
	return &AuditMirror{batcher: batcher}
}

// Add enqueues a copy of the event without blocking.
func (m *AuditMirror) Add(event types.NotificationEvent) {
	m.batcher.Add(&event)
}
