package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// Default bucket housekeeping.
const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultBucketTTL       = 10 * time.Minute
)

// TokenBucket is an in-memory limiter with one token bucket per key.
// Buckets idle longer than the TTL are removed by a background loop;
// call Close to stop it.
type TokenBucket struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	logger          observability.Logger
	cleanupInterval time.Duration
	bucketTTL       time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketOption is a functional option for TokenBucket.
type TokenBucketOption func(*TokenBucket)

// WithCleanup sets the cleanup interval and the idle TTL of buckets.
func WithCleanup(interval, ttl time.Duration) TokenBucketOption {
	return func(l *TokenBucket) {
		l.cleanupInterval = interval
		l.bucketTTL = ttl
	}
}

// WithTokenBucketClock sets the time source.
func WithTokenBucketClock(now func() time.Time) TokenBucketOption {
	return func(l *TokenBucket) {
		l.now = now
	}
}

// WithTokenBucketLogger sets the logger.
func WithTokenBucketLogger(logger observability.Logger) TokenBucketOption {
	return func(l *TokenBucket) {
		l.logger = logger
	}
}

// NewTokenBucket allows requests per window with the given burst for
// each key.
func NewTokenBucket(requests int, window time.Duration, burst int, opts ...TokenBucketOption) *TokenBucket {
	l := &TokenBucket{
		limit:           rate.Limit(float64(requests) / window.Seconds()),
		burst:           max(burst, 1),
		now:             time.Now,
		logger:          observability.NopLogger(),
		cleanupInterval: DefaultCleanupInterval,
		bucketTTL:       DefaultBucketTTL,
		buckets:         make(map[string]*bucket),
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()
	return l
}

// Allow implements Limiter.
func (l *TokenBucket) Allow(_ context.Context, key string) (*Result, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	res := &Result{
		Allowed:    allowed,
		Limit:      l.burst,
		Remaining:  max(int(math.Floor(tokens)), 0),
		ResetAfter: l.refillTime(float64(l.burst) - tokens),
	}
	if !allowed {
		res.RetryAfter = l.refillTime(1 - tokens)
	}
	return res, nil
}

func (l *TokenBucket) refillTime(tokens float64) time.Duration {
	if tokens <= 0 || l.limit <= 0 {
		return 0
	}
	return time.Duration(tokens / float64(l.limit) * float64(time.Second))
}

// Len returns the number of tracked buckets.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup removes buckets idle for longer than ttl.
func (l *TokenBucket) Cleanup(ttl time.Duration) int {
	cutoff := l.now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *TokenBucket) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := l.Cleanup(l.bucketTTL); n > 0 {
				l.logger.Debug("removed idle rate limit buckets", observability.Int("count", n))
			}
		case <-l.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup loop. It is safe to call more than once.
func (l *TokenBucket) Close() error {
	l.cleanupOnce.Do(func() {
		close(l.stopCleanup)
	})
	return nil
}
