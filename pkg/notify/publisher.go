package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// Publisher delivers one notification event to the persistence collaborator.
type Publisher interface {
	Publish(ctx context.Context, event types.NotificationEvent) error
	// Stop flushes any pending messages, respecting the context's deadline.
	Stop(ctx context.Context) error
}

// NewPubsubClient creates a Pub/Sub client for production use, using
// Application Default Credentials unless a credentials file is provided.
func NewPubsubClient(ctx context.Context, projectID, credentialsFile string, logger zerolog.Logger) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	logger.Info().Str("project_id", projectID).Msg("Pub/Sub client created successfully.")
	return client, nil
}

// GooglePublisher publishes notification events to a Pub/Sub topic. The
// collaborator notification store consumes the topic and owns persistence.
type GooglePublisher struct {
	topic  *pubsub.Topic
	logger zerolog.Logger
}

// NewGooglePublisher verifies the topic exists before returning a publisher.
func NewGooglePublisher(ctx context.Context, client *pubsub.Client, topicID string, logger zerolog.Logger) (*GooglePublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	topic := client.Topic(topicID)

	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", topicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", topicID)
	}

	return &GooglePublisher{
		topic:  topic,
		logger: logger.With().Str("component", "GooglePublisher").Str("topic_id", topicID).Logger(),
	}, nil
}

// Publish queues the event and returns immediately; the publish result is
// checked asynchronously so one slow delivery never blocks fan-out.
func (p *GooglePublisher) Publish(ctx context.Context, event types.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", event.ID, err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"recipient_id": event.RecipientID,
			"kind":         string(event.Kind),
		},
	})

	go func() {
		getCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := result.Get(getCtx); err != nil {
			p.logger.Error().Err(err).Str("notification_id", event.ID).Msg("Failed to publish notification.")
		}
	}()

	return nil
}

// Stop flushes pending messages, wrapping the blocking topic stop so the
// context deadline is honoured.
func (p *GooglePublisher) Stop(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}

	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
