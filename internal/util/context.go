package util

import (
	"context"
	"time"
)

// RequestInfo collects facts about a request that inner handlers learn
// and outer middleware report once the handler returns. It belongs to a
// single request goroutine.
type RequestInfo struct {
	Start time.Time
	Route string
}

type requestInfoKey struct{}

// WithRequestInfo attaches a fresh RequestInfo started at start.
func WithRequestInfo(ctx context.Context, start time.Time) (context.Context, *RequestInfo) {
	info := &RequestInfo{Start: start}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// RequestInfoFromContext returns the RequestInfo attached to ctx, or nil.
func RequestInfoFromContext(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

// SetRoute records the matched route pattern. Without a RequestInfo it is
// a no-op.
func SetRoute(ctx context.Context, route string) {
	if info := RequestInfoFromContext(ctx); info != nil {
		info.Route = route
	}
}

// RouteFromContext returns the recorded route pattern.
func RouteFromContext(ctx context.Context) string {
	if info := RequestInfoFromContext(ctx); info != nil {
		return info.Route
	}
	return ""
}

// EnsureRequestInfo returns the RequestInfo already attached to ctx, or
// attaches a new one started at start.
func EnsureRequestInfo(ctx context.Context, start time.Time) (context.Context, *RequestInfo) {
	if info := RequestInfoFromContext(ctx); info != nil {
		return ctx, info
	}
	return WithRequestInfo(ctx, start)
}
