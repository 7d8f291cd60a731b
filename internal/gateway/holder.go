package gateway

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Holder publishes the active Gateway. Each request loads the pointer
// once, so a concurrent Store never mixes two route tables.
type Holder struct {
	current atomic.Pointer[Gateway]
}

// ErrNilGateway is returned when storing a nil Gateway.
var ErrNilGateway = errors.New("nil gateway")

// NewHolder creates a Holder serving g. A nil g leaves the Holder empty
// until the first successful Store; an empty Holder handles no request.
func NewHolder(g *Gateway) *Holder {
	h := &Holder{}
	_ = h.Store(g)
	return h
}

// Load returns the active Gateway, nil while the Holder is empty.
func (h *Holder) Load() *Gateway {
	return h.current.Load()
}

// Store replaces the active Gateway. A nil g is rejected and the active
// Gateway keeps serving.
func (h *Holder) Store(g *Gateway) error {
	if g == nil {
		return ErrNilGateway
	}
	if old := h.current.Swap(g); old != nil {
		g.metrics.swaps.Inc()
	}
	g.metrics.routes.Set(float64(len(g.routes)))
	return nil
}

// Middleware returns net/http middleware bound to the active Gateway.
func (h *Holder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gw := h.Load()
			if gw == nil {
				next.ServeHTTP(w, r)
				return
			}
			gw.serve(w, r, func() { next.ServeHTTP(w, r) })
		})
	}
}

// GinHandler returns gin middleware bound to the active Gateway.
func (h *Holder) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gw := h.Load()
		if gw == nil {
			c.Next()
			return
		}
		gw.GinHandler()(c)
	}
}
