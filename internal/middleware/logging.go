package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/ratelimit"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// Logging returns a middleware that logs one line per request. Server
// errors log at warn level.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, info := util.EnsureRequestInfo(r.Context(), time.Now())
			r = r.WithContext(ctx)
			rw := util.NewResponseRecorder(w)

			next.ServeHTTP(rw, r)

			fields := []observability.Field{
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("route", info.Route),
				observability.String("query", r.URL.RawQuery),
				observability.Int("status", rw.StatusCode),
				observability.Int64("size", rw.BytesWritten),
				observability.Duration("duration", time.Since(info.Start)),
				observability.String("client_ip", ratelimit.ClientIP(r)),
				observability.String("user_agent", r.UserAgent()),
			}

			//nolint:contextcheck // request context carries the request id
			log := logger.WithContext(r.Context())
			if rw.StatusCode >= http.StatusInternalServerError {
				log.Warn("http request", fields...)
				return
			}
			log.Info("http request", fields...)
		})
	}
}
