package gateway

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/processor"
	"github.com/vyrodovalexey/avaimg/internal/route"
	"github.com/vyrodovalexey/avaimg/internal/source"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

type entry struct {
	pattern *route.Pattern
	proc    *processor.Processor
}

// Gateway is an immutable ordered route table.
type Gateway struct {
	routes  []entry
	helpers processor.Helpers
	logger  observability.Logger
	metrics *Metrics
}

// Builder collects routes and helpers before the table is frozen.
// Register and Helper may be called concurrently.
type Builder struct {
	queue    processor.Fetcher
	logger   observability.Logger
	metrics  *Metrics
	procOpts []processor.Option

	mu      sync.Mutex
	routes  []entry
	helpers map[string]processor.HelperFunc
}

// Option is a functional option for configuring the Builder.
type Option func(*Builder)

// WithLogger sets the logger for dispatching and processing.
func WithLogger(logger observability.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics sets the dispatch metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(b *Builder) {
		b.metrics = metrics
	}
}

// WithProcessorOptions passes options to every processor built.
func WithProcessorOptions(opts ...processor.Option) Option {
	return func(b *Builder) {
		b.procOpts = append(b.procOpts, opts...)
	}
}

// NewBuilder creates a Builder whose processors fetch through queue.
func NewBuilder(queue processor.Fetcher, opts ...Option) *Builder {
	b := &Builder{
		queue:  queue,
		logger: observability.NopLogger(),
		helpers: map[string]processor.HelperFunc{
			processor.HelperTempDir: processor.TempDir,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = GetMetrics()
	}
	return b
}

// Register adds a route. Routes are tried in registration order.
func (b *Builder) Register(
	pattern, urlTemplate string,
	opts processor.Options,
	fn processor.TransformFunc,
) error {
	compiled, err := route.Compile(pattern)
	if err != nil {
		return err
	}
	if urlTemplate == "" {
		return util.NewConfigError("source", "url template for "+pattern+" is empty")
	}

	procOpts := append([]processor.Option{processor.WithLogger(b.logger)}, b.procOpts...)
	proc, err := processor.New(compiled, source.Parse(urlTemplate), b.queue, opts, fn, procOpts...)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, entry{pattern: compiled, proc: proc})
	return nil
}

// Helper adds a helper available to every request context.
func (b *Builder) Helper(name string, fn processor.HelperFunc) error {
	if name == "" || fn == nil {
		return util.NewConfigError("helper", "name and function are required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.helpers[name] = fn
	return nil
}

// Build freezes the registered routes and helpers. Later changes to the
// builder do not affect the returned Gateway.
func (b *Builder) Build() *Gateway {
	b.mu.Lock()
	defer b.mu.Unlock()

	routes := make([]entry, len(b.routes))
	copy(routes, b.routes)

	return &Gateway{
		routes:  routes,
		helpers: processor.NewHelpers(b.helpers),
		logger:  b.logger,
		metrics: b.metrics,
	}
}

// Routes returns the route patterns in match order.
func (g *Gateway) Routes() []string {
	out := make([]string, len(g.routes))
	for i, e := range g.routes {
		out[i] = e.pattern.String()
	}
	return out
}

// Dispatch runs the first route matching r. When no route matches it
// calls notHandled and returns nil.
func (g *Gateway) Dispatch(w http.ResponseWriter, r *http.Request, notHandled func()) error {
	path := r.URL.EscapedPath()
	for _, e := range g.routes {
		if !e.pattern.Match(path) {
			continue
		}

		routeName := e.pattern.String()
		util.SetRoute(r.Context(), routeName)
		g.metrics.dispatched.WithLabelValues(routeName).Inc()

		c := processor.NewContext(r, g.helpers, g.logger)
		return e.proc.Process(c, w)
	}

	g.metrics.unmatched.Inc()
	if notHandled != nil {
		notHandled()
	}
	return nil
}

// serve dispatches and applies the HTTP consequences of err.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, notHandled func()) {
	err := g.Dispatch(w, r, notHandled)
	if err == nil {
		return
	}

	logger := g.logger.WithContext(r.Context())
	var emitErr *util.EmitError
	if errors.As(err, &emitErr) && emitErr.Partial {
		g.metrics.aborted.Inc()
		logger.Warn("aborting partially written response",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		panic(http.ErrAbortHandler)
	}

	logger.Debug("request failed",
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)
}

// Middleware returns net/http middleware that serves matching requests
// and passes the rest to next.
func (g *Gateway) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, func() { next.ServeHTTP(w, r) })
		})
	}
}

// ServeHTTP serves matching requests and answers 404 otherwise.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, func() { http.NotFound(w, r) })
}

// GinHandler returns gin middleware that serves matching requests and
// continues the gin chain for the rest.
func (g *Gateway) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		handled := true
		g.serve(c.Writer, c.Request, func() {
			handled = false
			c.Next()
		})
		if handled {
			c.Abort()
		}
	}
}
