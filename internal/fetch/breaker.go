package fetch

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// errUpstreamStatus marks a 5xx response as a breaker failure. The
// response itself is still delivered to the caller.
var errUpstreamStatus = errors.New("upstream server error")

// breakerSet holds one circuit breaker per upstream host.
type breakerSet struct {
	threshold uint32
	timeout   time.Duration
	logger    observability.Logger
	metrics   *Metrics

	breakers sync.Map
}

func newBreakerSet(threshold int, timeout time.Duration, logger observability.Logger, metrics *Metrics) *breakerSet {
	return &breakerSet{
		threshold: safeIntToUint32(threshold),
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// get returns the breaker for host, creating it on first use.
func (s *breakerSet) get(host string) *gobreaker.CircuitBreaker {
	if v, ok := s.breakers.Load(host); ok {
		return v.(*gobreaker.CircuitBreaker)
	}

	threshold := s.threshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    s.timeout,
		Timeout:     s.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("upstream circuit breaker state change",
				observability.String("host", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			s.metrics.breakerMove.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	actual, _ := s.breakers.LoadOrStore(host, cb)
	return actual.(*gobreaker.CircuitBreaker)
}

// state reports the breaker state for host, closed when none exists yet.
func (s *breakerSet) state(host string) gobreaker.State {
	if v, ok := s.breakers.Load(host); ok {
		return v.(*gobreaker.CircuitBreaker).State()
	}
	return gobreaker.StateClosed
}

// execute performs do through the breaker of host.
func (s *breakerSet) execute(host string, do func() (*http.Response, error)) (*http.Response, error) {
	out, err := s.get(host).Execute(func() (interface{}, error) {
		resp, err := do()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamStatus
		}
		return resp, nil
	})

	resp, _ := out.(*http.Response)
	if errors.Is(err, errUpstreamStatus) {
		return resp, nil
	}
	return resp, err
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// safeIntToUint32 clamps n into the uint32 range.
func safeIntToUint32(n int) uint32 {
	if n < 1 {
		return 1
	}
	if uint64(n) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
