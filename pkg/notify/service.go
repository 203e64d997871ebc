package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/origin"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// AuditSink receives a copy of every published notification for archival.
// Add must not block the fan-out path.
type AuditSink interface {
	Add(event types.NotificationEvent)
}

// FanoutConfig holds configuration for the fan-out service.
type FanoutConfig struct {
	NumWorkers  int
	InputBuffer int
}

// FanoutService consumes mutation events from a channel, resolves each
// affected recipient's settings snapshot, runs the pure fan-out and hands the
// resulting notifications to the publisher. It runs alongside the
// invalidation path: both are driven from the same mutation event and neither
// can fail the mutation.
type FanoutService struct {
	cfg       FanoutConfig
	settings  origin.SettingsSource
	publisher Publisher
	audit     AuditSink
	logger    zerolog.Logger

	inputChan    chan types.MutationEvent
	wg           sync.WaitGroup
	shutdownCtx  context.Context
	shutdownFunc context.CancelFunc
}

// NewFanoutService creates the service. audit may be nil to disable the
// archival copy.
func NewFanoutService(
	cfg FanoutConfig,
	settings origin.SettingsSource,
	publisher Publisher,
	audit AuditSink,
	logger zerolog.Logger,
) *FanoutService {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 2
	}
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = 64
	}
	return &FanoutService{
		cfg:       cfg,
		settings:  settings,
		publisher: publisher,
		audit:     audit,
		logger:    logger.With().Str("component", "FanoutService").Logger(),
		inputChan: make(chan types.MutationEvent, cfg.InputBuffer),
	}
}

// Input returns the channel mutation events are submitted on.
func (s *FanoutService) Input() chan<- types.MutationEvent {
	return s.inputChan
}

// Start launches the fan-out workers.
func (s *FanoutService) Start(ctx context.Context) {
	s.shutdownCtx, s.shutdownFunc = context.WithCancel(ctx)
	s.logger.Info().Int("worker_count", s.cfg.NumWorkers).Msg("Starting fan-out workers...")
	for i := 0; i < s.cfg.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop closes the input channel and waits for the workers to drain it,
// respecting the context's deadline.
func (s *FanoutService) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping fan-out service...")
	close(s.inputChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Fan-out workers stopped gracefully.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for fan-out workers to stop.")
		s.shutdownFunc()
		return ctx.Err()
	}

	s.shutdownFunc()
	return s.publisher.Stop(ctx)
}

func (s *FanoutService) worker(workerID int) {
	defer s.wg.Done()
	s.logger.Debug().Int("worker_id", workerID).Msg("Fan-out worker started.")
	for event := range s.inputChan {
		s.process(s.shutdownCtx, event)
	}
	s.logger.Debug().Int("worker_id", workerID).Msg("Fan-out worker exiting.")
}

// process resolves the settings snapshot and publishes the fan-out result. A
// settings read failure for one recipient excludes only that recipient; the
// mutation succeeded upstream, so nothing here is allowed to escalate.
func (s *FanoutService) process(ctx context.Context, event types.MutationEvent) {
	snapshot := make(map[string]types.RecipientSettings, len(event.AffectedUserIDs))
	for _, userID := range event.AffectedUserIDs {
		if userID == event.ActorID {
			continue
		}
		settings, err := s.settings.RecipientSettings(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read recipient settings, excluding recipient.")
			snapshot[userID] = types.RecipientSettings{UserID: userID, MutedKinds: allKindsMuted()}
			continue
		}
		snapshot[userID] = settings
	}

	notifications := Emit(event, snapshot, time.Now().UTC())
	if len(notifications) == 0 {
		return
	}

	for _, notification := range notifications {
		if err := s.publisher.Publish(ctx, notification); err != nil {
			s.logger.Error().Err(err).Str("notification_id", notification.ID).Msg("Failed to publish notification.")
			continue
		}
		if s.audit != nil {
			s.audit.Add(notification)
		}
	}
	s.logger.Debug().
		Str("mutation_kind", string(event.Kind)).
		Int("notification_count", len(notifications)).
		Msg("Fan-out complete.")
}

// allKindsMuted is the snapshot used for a recipient whose settings could not
// be read: when in doubt, stay silent.
func allKindsMuted() map[types.NotificationKind]bool {
	return map[types.NotificationKind]bool{
		types.NotificationFollow:  true,
		types.NotificationRating:  true,
		types.NotificationReview:  true,
		types.NotificationListAdd: true,
	}
}
