package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis tier.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisTier is an optional remote cache tier sitting between the in-memory
// stores and the system of record. It lives on the collaborator side of the
// fetch path, so the in-memory stores keep their no-I/O contract; a chain is
// typically TTLStore -> RedisTier -> origin.
type RedisTier[K comparable, V any] struct {
	client   *redis.Client
	ttl      time.Duration
	fallback Fetcher[K, V]
	logger   zerolog.Logger
}

// NewRedisTier connects to Redis and returns a tier that falls back to the
// given fetcher on a remote miss. It pings the server before returning.
func NewRedisTier[K comparable, V any](
	ctx context.Context,
	cfg *RedisConfig,
	fallback Fetcher[K, V],
	logger zerolog.Logger,
) (*RedisTier[K, V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Connected to Redis cache tier.")

	return &RedisTier[K, V]{
		client:   client,
		ttl:      cfg.TTL,
		fallback: fallback,
		logger:   logger.With().Str("component", "RedisTier").Logger(),
	}, nil
}

// Fetch checks Redis first and falls back to the source on a miss. The source
// result is written back to Redis in the background so the read path does not
// wait on the remote write.
func (t *RedisTier[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	var zero V
	stringKey := fmt.Sprintf("%v", key)

	raw, err := t.client.Get(ctx, stringKey).Result()
	switch {
	case err == nil:
		var value V
		if unmarshalErr := json.Unmarshal([]byte(raw), &value); unmarshalErr != nil {
			t.logger.Error().Err(unmarshalErr).Str("key", stringKey).Msg("Failed to unmarshal cached data.")
			return zero, fmt.Errorf("failed to unmarshal data for %s: %w", stringKey, unmarshalErr)
		}
		return value, nil
	case !errors.Is(err, redis.Nil):
		t.logger.Error().Err(err).Str("key", stringKey).Msg("Unexpected Redis error during fetch.")
		return zero, err
	}

	if t.fallback == nil {
		return zero, fmt.Errorf("key '%v' not found in redis tier and no fallback is configured", key)
	}

	value, err := t.fallback.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if writeErr := t.write(writeCtx, stringKey, value); writeErr != nil {
			t.logger.Error().Err(writeErr).Str("key", stringKey).Msg("Failed to write to Redis in background.")
		}
	}()

	return value, nil
}

// Invalidate removes the key from the remote tier.
func (t *RedisTier[K, V]) Invalidate(ctx context.Context, key K) error {
	stringKey := fmt.Sprintf("%v", key)
	if err := t.client.Del(ctx, stringKey).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", stringKey, err)
	}
	return nil
}

func (t *RedisTier[K, V]) write(ctx context.Context, stringKey string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data for %s: %w", stringKey, err)
	}
	if err := t.client.Set(ctx, stringKey, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", stringKey, err)
	}
	return nil
}

// Close closes the Redis client and the fallback fetcher.
func (t *RedisTier[K, V]) Close() error {
	var errs []error
	if t.client != nil {
		errs = append(errs, t.client.Close())
	}
	if t.fallback != nil {
		errs = append(errs, t.fallback.Close())
	}
	return errors.Join(errs...)
}
