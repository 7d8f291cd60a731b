// Package ratelimit limits inbound requests per client.
//
// Two backends are provided: TokenBucket keeps per-client buckets in
// process memory, and Redis counts requests in fixed windows shared by
// every gateway instance.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
// Implementations are safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Close() error
}

// Result is one limiter decision. Limit is zero for limiters that do not
// publish quota headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is the time until the quota is full again.
	ResetAfter time.Duration
	// RetryAfter is set on denials only.
	RetryAfter time.Duration
}

// NoopLimiter allows every request and publishes no quota.
type NoopLimiter struct{}

// NewNoopLimiter returns the limiter used when rate limiting is off.
func NewNoopLimiter() *NoopLimiter { return &NoopLimiter{} }

func (*NoopLimiter) Allow(context.Context, string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

func (*NoopLimiter) Close() error { return nil }

var (
	_ Limiter = (*NoopLimiter)(nil)
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*Redis)(nil)
)
