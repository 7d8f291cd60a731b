package ratelimit

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// New creates the limiter described by cfg. A nil or disabled
// configuration yields a NoopLimiter.
func New(ctx context.Context, cfg *config.RateLimitConfig, logger observability.Logger) (Limiter, error) {
	if cfg == nil || !cfg.Enabled {
		return NewNoopLimiter(), nil
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Backend {
	case config.RateLimitBackendMemory, "":
		return NewTokenBucket(cfg.Requests, cfg.Window.Duration(), cfg.Burst,
			WithTokenBucketLogger(logger),
		), nil

	case config.RateLimitBackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend requires redis settings")
		}
		r, err := NewRedis(ctx, RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Requests:  cfg.Requests,
			Window:    cfg.Window.Duration(),
		}, WithRedisLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter: %w", err)
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unknown rate limit backend: %s", cfg.Backend)
	}
}
