package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP.
func IPKeyFunc(r *http.Request) string {
	return ClientIP(r)
}

// HeaderKeyFunc keys requests by a header value, falling back to the
// client IP when the header is absent.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) string {
		if value := r.Header.Get(header); value != "" {
			return value
		}
		return ClientIP(r)
	}
}

// ClientIP returns the originating client address. Forwarding headers
// are trusted, so the gateway must sit behind a proxy that sets them.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
