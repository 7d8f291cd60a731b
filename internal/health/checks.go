package health

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avaimg/internal/fetch"
)

// QueueStatter is implemented by *fetch.Queue.
type QueueStatter interface {
	Stats() fetch.Stats
}

// QueueCheck reports the fetch queue as degraded once more than maxPending
// tasks wait for a worker. A non-positive maxPending disables the limit.
func QueueCheck(queue QueueStatter, maxPending int) CheckFunc {
	return func(context.Context) Check {
		stats := queue.Stats()
		msg := fmt.Sprintf("workers=%d pending=%d in_flight=%d",
			stats.Workers, stats.Pending, stats.InFlight)
		if maxPending > 0 && stats.Pending > maxPending {
			return Check{Status: StatusDegraded, Message: msg}
		}
		return Check{Status: StatusHealthy, Message: msg}
	}
}

// Pinger is implemented by dependencies that can be probed, such as the
// redis rate limiter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p.Ping fails. Non-critical
// dependencies are reported as degraded instead.
func PingCheck(p Pinger, critical bool) CheckFunc {
	return func(ctx context.Context) Check {
		if err := p.Ping(ctx); err != nil {
			if critical {
				return Check{Status: StatusUnhealthy, Message: err.Error()}
			}
			return Check{Status: StatusDegraded, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}

// FuncCheck adapts a plain error-returning probe.
func FuncCheck(fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		if err := fn(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}
