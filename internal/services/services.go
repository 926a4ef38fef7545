package services

import (
	"context"
	"fmt"

	"github.com/deepgram/aiproxy/internal/aiproxy"
	"github.com/deepgram/aiproxy/internal/config"
	"github.com/deepgram/aiproxy/internal/connections"
	"github.com/deepgram/aiproxy/internal/infrastructure/redis"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/pkg/ratelimit"
)

const rateLimitPrefix = "aiproxy:ratelimit"

type Services struct {
	config             *config.Config
	dispatcher         *aiproxy.Client
	redisService       *redis.Service
	rateLimiter        ratelimit.Limiter
	connectionsManager *connections.Manager
}

// InitializeServices wires the gateway. Redis is optional: without it the
// rate limiter is kept in memory.
func InitializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.For(logger.APP)
	log.Info().Msg("Initializing core services")

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Refusing to initialize services with an invalid configuration")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	dispatcher := aiproxy.NewClient(cfg.Endpoint.URL, aiproxy.WithPersona(aiproxy.Persona(cfg.Endpoint.Persona)))
	log.Info().Str("endpoint", dispatcher.Endpoint()).Msg("Initializing dispatcher")

	var redisService *redis.Service
	if cfg.RedisEnabled() {
		redisService = redis.NewService(ctx, cfg.Redis)
		log.Info().Bool("available", redisService != nil).Msg("Initializing Redis service")
	}

	var rateLimiter ratelimit.Limiter
	switch {
	case !cfg.RateLimit.Enabled:
		log.Info().Msg("Inbound rate limiting disabled")
	case redisService != nil:
		rateLimiter = ratelimit.NewRedisLimiter(redisService, rateLimitPrefix, cfg.RateLimit.Window, cfg.RateLimit.MaxHits)
		log.Info().Int("max_hits", cfg.RateLimit.MaxHits).Dur("window", cfg.RateLimit.Window).Msg("Initializing Redis rate limiter")
	default:
		rateLimiter = ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxHits)
		log.Info().Int("max_hits", cfg.RateLimit.MaxHits).Dur("window", cfg.RateLimit.Window).Msg("Initializing in-memory rate limiter")
	}

	connectionsManager := connections.NewManager(connections.DefaultTimeouts)

	log.Info().Msg("All services initialized successfully")

	return &Services{
		config:             cfg,
		dispatcher:         dispatcher,
		redisService:       redisService,
		rateLimiter:        rateLimiter,
		connectionsManager: connectionsManager,
	}, nil
}

// GetConfig returns the configuration the services were built from
func (s *Services) GetConfig() *config.Config {
	return s.config
}

// GetDispatcher returns the inference endpoint client
func (s *Services) GetDispatcher() *aiproxy.Client {
	return s.dispatcher
}

// GetRateLimiter returns nil when inbound rate limiting is disabled
func (s *Services) GetRateLimiter() ratelimit.Limiter {
	return s.rateLimiter
}

// GetConnectionsManager returns the relay session manager
func (s *Services) GetConnectionsManager() *connections.Manager {
	return s.connectionsManager
}

// Close releases the Redis connection, if any.
func (s *Services) Close() error {
	if s.redisService == nil {
		return nil
	}
	return s.redisService.Close()
}
