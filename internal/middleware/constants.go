package middleware

// HTTP header constants.
const (
	HeaderContentType        = "Content-Type"
	HeaderRetryAfter         = "Retry-After"
	HeaderXRequestID         = "X-Request-ID"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// Content type constants.
const (
	ContentTypeTextPlain = "text/plain"
)

// Error response bodies.
const (
	ErrRateLimitExceeded   = "rate limit exceeded"
	ErrInternalServerError = "internal server error"
)
