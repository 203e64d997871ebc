package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-socialfeed/pkg/notify"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// mockPublisher records everything published.
type mockPublisher struct {
	mu         sync.Mutex
	published  []types.NotificationEvent
	publishErr error
	stopCalls  int
}

func (m *mockPublisher) Publish(_ context.Context, event types.NotificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockPublisher) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	return nil
}

func (m *mockPublisher) snapshot() []types.NotificationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.NotificationEvent(nil), m.published...)
}

// mockSettingsSource serves per-user settings, failing for listed users.
type mockSettingsSource struct {
	settings map[string]types.RecipientSettings
	failFor  map[string]bool
}

func (m *mockSettingsSource) RecipientSettings(_ context.Context, userID string) (types.RecipientSettings, error) {
	if m.failFor[userID] {
		return types.RecipientSettings{}, errors.New("settings unavailable")
	}
	return m.settings[userID], nil
}

// mockAudit records audited notifications.
type mockAudit struct {
	mu     sync.Mutex
	events []types.NotificationEvent
}

func (m *mockAudit) Add(event types.NotificationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockAudit) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestFanoutService(t *testing.T) {
	t.Run("Events Flow Through To Publisher And Audit", func(t *testing.T) {
		// Arrange
		publisher := &mockPublisher{}
		audit := &mockAudit{}
		service := notify.NewFanoutService(
			notify.FanoutConfig{NumWorkers: 2, InputBuffer: 8},
			&mockSettingsSource{},
			publisher,
			audit,
			zerolog.Nop(),
		)
		service.Start(context.Background())

		// Act
		service.Input() <- types.MutationEvent{
			Kind:            types.MutationFollow,
			PrimaryEntityID: "followee",
			ActorID:         "follower",
			AffectedUserIDs: []string{"followee"},
		}
		service.Input() <- types.MutationEvent{
			Kind:            types.MutationRate,
			PrimaryEntityID: "content-1",
			ActorID:         "rater",
			AffectedUserIDs: []string{"watcher-1", "watcher-2"},
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, service.Stop(stopCtx))

		// Assert: Stop drained the buffer before returning.
		published := publisher.snapshot()
		assert.Len(t, published, 3)
		assert.Equal(t, 3, audit.count())
		assert.Equal(t, 1, publisher.stopCalls)
	})

	t.Run("Settings Failure Excludes Only That Recipient", func(t *testing.T) {
		// Arrange
		publisher := &mockPublisher{}
		service := notify.NewFanoutService(
			notify.FanoutConfig{NumWorkers: 1, InputBuffer: 4},
			&mockSettingsSource{failFor: map[string]bool{"broken": true}},
			publisher,
			nil,
			zerolog.Nop(),
		)
		service.Start(context.Background())

		// Act
		service.Input() <- types.MutationEvent{
			Kind:            types.MutationReview,
			PrimaryEntityID: "content-1",
			ActorID:         "author",
			AffectedUserIDs: []string{"broken", "healthy"},
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, service.Stop(stopCtx))

		// Assert
		published := publisher.snapshot()
		require.Len(t, published, 1)
		assert.Equal(t, "healthy", published[0].RecipientID)
	})

	t.Run("Publish Failure Skips Audit", func(t *testing.T) {
		// Arrange
		publisher := &mockPublisher{publishErr: errors.New("broker down")}
		audit := &mockAudit{}
		service := notify.NewFanoutService(
			notify.FanoutConfig{NumWorkers: 1, InputBuffer: 4},
			&mockSettingsSource{},
			publisher,
			audit,
			zerolog.Nop(),
		)
		service.Start(context.Background())

		// Act
		service.Input() <- types.MutationEvent{
			Kind:            types.MutationFollow,
			PrimaryEntityID: "followee",
			ActorID:         "follower",
			AffectedUserIDs: []string{"followee"},
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, service.Stop(stopCtx))

		// Assert: nothing reached the audit trail.
		assert.Equal(t, 0, audit.count())
	})
}
