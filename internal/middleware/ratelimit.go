package middleware

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/ratelimit"
)

// RateLimitOption is a functional option for the rate limit middleware.
type RateLimitOption func(*rateLimitMiddleware)

type rateLimitMiddleware struct {
	limiter     ratelimit.Limiter
	name        string
	keyFunc     ratelimit.KeyFunc
	logger      observability.Logger
	metrics     *Metrics
	httpMetrics *observability.Metrics
}

// WithKeyFunc sets how clients are identified. Defaults to client IP.
func WithKeyFunc(fn ratelimit.KeyFunc) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger.
func WithRateLimitLogger(logger observability.Logger) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.logger = logger
	}
}

// WithRateLimitMetrics sets the middleware metrics.
func WithRateLimitMetrics(metrics *Metrics) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.metrics = metrics
	}
}

// WithHTTPMetrics records rejections on the process HTTP metrics under
// the limiter name.
func WithHTTPMetrics(metrics *observability.Metrics, limiterName string) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.httpMetrics = metrics
		m.name = limiterName
	}
}

// RateLimit returns a middleware that rejects requests over the limit
// with 429. Limiter failures are logged and the request proceeds.
func RateLimit(limiter ratelimit.Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	m := &rateLimitMiddleware{
		limiter: limiter,
		keyFunc: ratelimit.IPKeyFunc,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = GetMetrics()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := m.keyFunc(r)

			res, err := m.limiter.Allow(r.Context(), key)
			if err != nil {
				m.metrics.rateLimitErrors.Inc()
				m.logger.WithContext(r.Context()).Warn("rate limiter unavailable",
					observability.String("client", key),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if res.Limit > 0 {
				h := w.Header()
				h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
				h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
				h.Set(HeaderRateLimitReset, seconds(res.ResetAfter))
			}

			if !res.Allowed {
				m.metrics.rateLimitRejected.Inc()
				if m.httpMetrics != nil {
					m.httpMetrics.RecordRateLimitHit(m.name)
				}
				m.logger.WithContext(r.Context()).Warn("rate limit exceeded",
					observability.String("client", key),
					observability.String("path", r.URL.Path),
				)

				w.Header().Set(HeaderContentType, ContentTypeTextPlain)
				w.Header().Set(HeaderRetryAfter, seconds(res.RetryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, ErrRateLimitExceeded)
				return
			}

			m.metrics.rateLimitAllowed.Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// seconds rounds d up to whole seconds, at least one.
func seconds(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}
