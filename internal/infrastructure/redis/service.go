package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/deepgram/aiproxy/internal/config"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/redis/go-redis/v9"
)

type Service struct {
	client *redis.Client
}

// NewService connects to the configured Redis. It returns nil when Redis is
// not configured or not reachable so callers can fall back to in-memory state.
func NewService(ctx context.Context, cfg config.RedisConfig) *Service {
	log := logger.For(logger.REDIS)

	if cfg.URL == "" {
		log.Warn().Msg("Redis URL not configured - service will be unavailable")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", cfg.URL).
			Msg("Failed to establish Redis connection")
		client.Close()
		return nil
	}

	log.Info().Str("addr", cfg.URL).Msg("Redis connection established")

	return &Service{
		client: client,
	}
}

// Incr increments key and, on the first hit, sets it to expire after window.
func (s *Service) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	log := logger.For(logger.REDIS)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("window", window).
			Msg("Critical Redis INCR operation failed")
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			log.Error().
				Err(err).
				Str("key", key).
				Dur("window", window).
				Msg("Failed to set expiry on rate limit key")
			return 0, fmt.Errorf("failed to expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
