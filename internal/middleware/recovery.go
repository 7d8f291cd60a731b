package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// Recovery returns a middleware that recovers from panics. A panic with
// http.ErrAbortHandler is re-raised so the server aborts the response.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return RecoveryWithMetrics(logger, GetMetrics())
}

// RecoveryWithMetrics is Recovery with explicit metrics.
func RecoveryWithMetrics(logger observability.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := util.NewResponseRecorder(w)
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(err)
				}

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Any("error", err),
					observability.String("stack", string(debug.Stack())),
				)
				metrics.panicsRecovered.Inc()

				if rw.HeaderWritten {
					panic(http.ErrAbortHandler)
				}
				rw.Header().Set(HeaderContentType, ContentTypeTextPlain)
				rw.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(rw, ErrInternalServerError)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
