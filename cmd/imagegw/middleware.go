package main

import (
	"net/http"

	"github.com/vyrodovalexey/avaimg/internal/middleware"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// rateLimiterName labels rejections in the request metrics.
const rateLimiterName = "inbound"

// buildMiddlewareChain builds the middleware chain.
// The execution order (outermost executes first):
// Recovery -> RequestID -> Logging -> Metrics -> Tracing -> RateLimit -> [engine]
func buildMiddlewareChain(handler http.Handler, app *application) http.Handler {
	return middleware.Chain(handler,
		middleware.Recovery(app.logger),
		middleware.RequestID(),
		middleware.Logging(app.logger),
		observability.MetricsMiddleware(app.metrics),
		observability.TracingMiddleware(app.tracer),
		middleware.RateLimit(app.limiter,
			middleware.WithRateLimitLogger(app.logger),
			middleware.WithHTTPMetrics(app.metrics, rateLimiterName),
		),
	)
}
