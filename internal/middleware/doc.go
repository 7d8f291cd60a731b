// Package middleware provides the net/http middleware wrapped around the
// image gateway.
//
//   - Recovery: converts panics into 500 responses; http.ErrAbortHandler
//     is passed through so the server drops the connection
//   - RequestID: propagates or creates X-Request-ID
//   - Logging: one structured line per request
//   - RateLimit: per-client limits backed by a ratelimit.Limiter
//
// Middleware follow the func(http.Handler) http.Handler shape and are
// composed with Chain:
//
//	handler := middleware.Chain(engine,
//	    middleware.Recovery(logger),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
package middleware

import "net/http"

// Chain wraps h so the first middleware is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
