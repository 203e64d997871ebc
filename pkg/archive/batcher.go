// Package archive provides the optional cold paths out of the engine: a
// streaming analytics archive of processed activities (BigQuery) and a
// compressed audit trail of emitted notifications (GCS). Both are fed
// asynchronously and never sit on a read or fan-out path.
package archive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchSink is the destination for a flushed batch.
type BatchSink[T any] interface {
	InsertBatch(ctx context.Context, items []*T) error
	Close() error
}

// BatcherConfig holds configuration for the Batcher.
type BatcherConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration
}

// Batcher accumulates items and flushes them to a sink when the batch fills
// or the flush interval elapses. A failed flush is logged and the batch
// dropped: archival is best-effort, the engine's source of truth is
// elsewhere.
type Batcher[T any] struct {
	cfg       BatcherConfig
	sink      BatchSink[T]
	logger    zerolog.Logger
	inputChan chan *T
	wg        sync.WaitGroup
}

// NewBatcher creates a batcher over the given sink.
func NewBatcher[T any](cfg BatcherConfig, sink BatchSink[T], logger zerolog.Logger) *Batcher[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 15 * time.Second
	}
	return &Batcher[T]{
		cfg:       cfg,
		sink:      sink,
		logger:    logger.With().Str("component", "Batcher").Logger(),
		inputChan: make(chan *T, cfg.BatchSize*2),
	}
}

// Add submits an item. It drops the item rather than block when the buffer is
// full; the archive must never apply backpressure to the paths feeding it.
func (b *Batcher[T]) Add(item *T) {
	select {
	case b.inputChan <- item:
	default:
		b.logger.Warn().Msg("Archive buffer full, dropping item.")
	}
}

// Start launches the batching worker.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.logger.Info().
		Int("batch_size", b.cfg.BatchSize).
		Dur("flush_interval", b.cfg.FlushInterval).
		Msg("Starting archive batcher...")
	b.wg.Add(1)
	go b.worker(ctx)
}

// Stop closes the input, waits for the final flush and closes the sink,
// respecting the context's deadline.
func (b *Batcher[T]) Stop(ctx context.Context) error {
	close(b.inputChan)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for archive batcher to stop.")
		return ctx.Err()
	}

	if err := b.sink.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Error closing archive sink.")
		return err
	}
	return nil
}

func (b *Batcher[T]) worker(ctx context.Context) {
	defer b.wg.Done()
	batch := make([]*T, 0, b.cfg.BatchSize)
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background(), batch)
			return
		case item, ok := <-b.inputChan:
			if !ok {
				b.flush(context.Background(), batch)
				return
			}
			batch = append(batch, item)
			if len(batch) >= b.cfg.BatchSize {
				b.flush(ctx, batch)
				batch = make([]*T, 0, b.cfg.BatchSize)
				ticker.Reset(b.cfg.FlushInterval)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(ctx, batch)
				batch = make([]*T, 0, b.cfg.BatchSize)
			}
		}
	}
}

func (b *Batcher[T]) flush(ctx context.Context, batch []*T) {
	if len(batch) == 0 {
		return
	}

	flushCtx, cancel := context.WithTimeout(ctx, b.cfg.FlushTimeout)
	defer cancel()

	if err := b.sink.InsertBatch(flushCtx, batch); err != nil {
		b.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to flush archive batch, dropping.")
		return
	}
	b.logger.Debug().Int("batch_size", len(batch)).Msg("Archive batch flushed.")
}
