package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// fixedWindowScript counts requests in the window containing now.
// Returns: allowed (0 or 1), remaining count, reset time in ms.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local window_start = math.floor(now / window_ms) * window_ms
	local window_key = key .. ':' .. window_start

	local count = tonumber(redis.call('GET', window_key) or '0')

	local allowed = 0
	if count < limit then
		count = redis.call('INCR', window_key)
		if count == 1 then
			redis.call('PEXPIRE', window_key, window_ms)
		end
		allowed = 1
	end

	local reset_ms = window_start + window_ms - now

	return {allowed, limit - count, reset_ms}
`)

// RedisConfig configures the redis limiter.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	KeyPrefix    string
	Requests     int
	Window       time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis is a fixed-window limiter shared through redis.
type Redis struct {
	client   *redis.Client
	prefix   string
	requests int
	window   time.Duration
	now      func() time.Time
	logger   observability.Logger
}

// RedisOption is a functional option for Redis.
type RedisOption func(*Redis)

// WithRedisClock sets the time source used to pick the window.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		r.now = now
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, opts ...RedisOption) (*Redis, error) {
	if cfg.Requests < 1 || cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("invalid redis limit %d per %s", cfg.Requests, cfg.Window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	r := &Redis{
		client:   client,
		prefix:   cfg.KeyPrefix,
		requests: cfg.Requests,
		window:   cfg.Window,
		now:      time.Now,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	r.logger.Info("redis rate limiter connected",
		observability.String("address", cfg.Address),
		observability.Int("requests", cfg.Requests),
		observability.Duration("window", cfg.Window),
	)
	return r, nil
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (*Result, error) {
	result, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		r.requests,
		r.window.Milliseconds(),
		r.now().UnixMilli(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("fixed window script error: %w", err)
	}
	return r.parseResult(result)
}

// parseResult converts the script reply [allowed, remaining, reset_ms].
func (r *Redis) parseResult(result any) (*Result, error) {
	values, ok := result.([]any)
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected script result format: %v", result)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	res := &Result{
		Allowed:    allowed == 1,
		Limit:      r.requests,
		Remaining:  max(int(remaining), 0),
		ResetAfter: time.Duration(resetMs) * time.Millisecond,
	}
	if !res.Allowed {
		res.RetryAfter = res.ResetAfter
	}
	return res, nil
}

// Ping checks the redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close implements Limiter.
func (r *Redis) Close() error {
	return r.client.Close()
}
