package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// maxRequestIDLength bounds client-supplied request IDs.
const maxRequestIDLength = 128

// RequestIDOption configures the RequestID middleware.
type RequestIDOption func(*requestIDConfig)

type requestIDConfig struct {
	generate func() string
	trust    bool
}

// WithRequestIDGenerator replaces the UUIDv4 generator.
func WithRequestIDGenerator(fn func() string) RequestIDOption {
	return func(c *requestIDConfig) { c.generate = fn }
}

// WithTrustIncoming controls whether an inbound X-Request-ID is kept.
// It is kept by default.
func WithTrustIncoming(trust bool) RequestIDOption {
	return func(c *requestIDConfig) { c.trust = trust }
}

// RequestID tags each request with an ID, stored in the request context
// for loggers and echoed in the X-Request-ID response header.
func RequestID(opts ...RequestIDOption) func(http.Handler) http.Handler {
	cfg := requestIDConfig{
		generate: func() string { return uuid.New().String() },
		trust:    true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderXRequestID)
			if !cfg.trust || !validRequestID(id) {
				id = cfg.generate()
			}

			w.Header().Set(HeaderXRequestID, id)
			next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// validRequestID accepts non-empty printable ASCII up to maxRequestIDLength.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
