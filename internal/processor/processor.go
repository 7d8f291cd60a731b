package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avaimg/internal/fetch"
	"github.com/vyrodovalexey/avaimg/internal/imaging"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/route"
	"github.com/vyrodovalexey/avaimg/internal/source"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// Fetcher submits upstream fetches. *fetch.Queue implements it.
type Fetcher interface {
	Push(ctx context.Context, task fetch.Task) *fetch.Future
}

// Options configures one route's processor.
type Options struct {
	// CacheExpiration, when set, adds Expires and
	// "Cache-Control: public, max-age=N" to successful responses.
	CacheExpiration *int
	// SocketTimeout is the upstream idle timeout; zero leaves it unset.
	SocketTimeout time.Duration
	// GIFFirstFrame keeps only the first frame of .gif sources.
	GIFFirstFrame bool
	// Stream writes the encoded image as it is produced instead of
	// buffering it; no Content-Length is sent.
	Stream bool
	// MaxSourceBytes rejects larger upstream bodies; zero means unlimited.
	MaxSourceBytes int64
	// MaxPixels bounds width x height x frames of decoded and resized
	// images; zero means imaging.DefaultMaxPixels.
	MaxPixels int64
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.CacheExpiration != nil && *o.CacheExpiration < 0 {
		return util.NewConfigError("cacheExpiration", "must be >= 0")
	}
	if o.SocketTimeout < 0 {
		return util.NewConfigError("socketTimeout", "must be > 0 when set")
	}
	if o.MaxSourceBytes < 0 {
		return util.NewConfigError("maxSourceBytes", "must be >= 0")
	}
	if o.MaxPixels < 0 {
		return util.NewConfigError("maxPixels", "must be >= 0")
	}
	return nil
}

// Processor executes the pipeline of one route. It is immutable and safe
// for concurrent use.
type Processor struct {
	pattern   *route.Pattern
	tmpl      *source.Template
	queue     Fetcher
	opts      Options
	transform TransformFunc

	logger  observability.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option is a functional option for configuring the Processor.
type Option func(*Processor)

// WithLogger sets the logger used when no request logger is available.
func WithLogger(logger observability.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Processor) {
		p.metrics = metrics
	}
}

// WithClock sets the time source for Date and Expires headers.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New creates a Processor.
func New(
	pattern *route.Pattern,
	tmpl *source.Template,
	queue Fetcher,
	opts Options,
	fn TransformFunc,
	options ...Option,
) (*Processor, error) {
	switch {
	case pattern == nil:
		return nil, util.NewConfigError("pattern", "is required")
	case tmpl == nil:
		return nil, util.NewConfigError("source", "is required")
	case queue == nil:
		return nil, util.NewConfigError("queue", "is required")
	case fn == nil:
		return nil, util.NewConfigError("transform", "is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.CacheExpiration != nil {
		v := *opts.CacheExpiration
		opts.CacheExpiration = &v
	}

	p := &Processor{
		pattern:   pattern,
		tmpl:      tmpl,
		queue:     queue,
		opts:      opts,
		transform: fn,
		logger:    observability.NopLogger(),
		now:       time.Now,
	}
	for _, o := range options {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = GetMetrics()
	}

	return p, nil
}

// Pattern returns the route pattern.
func (p *Processor) Pattern() *route.Pattern {
	return p.pattern
}

// Options returns a copy of the processor options.
func (p *Processor) Options() Options {
	return p.opts
}

// Process runs the pipeline for c and writes the response to w. The
// returned error describes a per-request failure whose response, if any,
// has already been written.
func (p *Processor) Process(c *Context, w http.ResponseWriter) (err error) {
	rw := util.NewResponseRecorder(w)
	routeName := p.pattern.String()
	outcome := outcomeOK

	ctx, span := observability.StartStage(c.Context(), "process",
		attribute.String("imagegw.route", routeName),
	)

	defer func() {
		if failed := c.runCleanup(); failed > 0 {
			p.metrics.cleanupErrors.Add(float64(failed))
		}
		p.metrics.outcomes.WithLabelValues(routeName, outcome).Inc()
		span.SetAttributes(attribute.String("imagegw.outcome", outcome))
		observability.EndSpan(span, err)
	}()

	// extract
	params, err := p.pattern.Extract(c.Request().URL.EscapedPath(), c.Request().URL.RawQuery)
	if err != nil {
		outcome = outcomeResolve
		p.fail(rw, err)
		return err
	}
	c.Params = params

	// resolve
	resolved, err := p.tmpl.Resolve(params)
	if err != nil {
		outcome = outcomeResolve
		p.fail(rw, err)
		return err
	}
	c.ResolvedURL = resolved
	c.Basename = source.Basename(resolved)

	// fetch
	res, err := p.fetch(ctx, c)
	if err != nil {
		outcome = outcomeFetch
		p.fail(rw, err)
		return err
	}

	if res.StatusCode != http.StatusOK {
		outcome = outcomeForwarded
		p.forward(c, rw, res)
		return nil
	}

	c.ContentType = res.Header.Get("Content-Type")
	c.LastModified = res.Header.Get("Last-Modified")

	// decode
	img, err := p.decode(ctx, c, res.Body)
	if err != nil {
		outcome = outcomeDecode
		p.fail(rw, err)
		return err
	}

	// transform
	out, err := p.runTransform(ctx, c, img)
	if err != nil {
		outcome = outcomeTransform
		if errors.As(err, new(*util.ContractViolationError)) {
			outcome = outcomeContract
		}
		p.fail(rw, err)
		return err
	}

	// emit
	if err := p.emit(ctx, c, rw, out); err != nil {
		outcome = outcomeEmit
		return err
	}

	return nil
}

func (p *Processor) observe(stage string, start time.Time) {
	p.metrics.stageDuration.WithLabelValues(p.pattern.String(), stage).Observe(time.Since(start).Seconds())
}

func (p *Processor) fetch(ctx context.Context, c *Context) (*fetch.Result, error) {
	defer p.observe("fetch", time.Now())

	future := p.queue.Push(ctx, fetch.Task{
		Source:  c.ResolvedURL,
		Timeout: p.opts.SocketTimeout,
		Route:   p.pattern.String(),
	})
	return future.Wait(c.Context())
}

func (p *Processor) decode(ctx context.Context, c *Context, body io.ReadCloser) (*imaging.Image, error) {
	defer p.observe("decode", time.Now())
	defer body.Close()

	_, span := observability.StartStage(ctx, "decode", attribute.String("imagegw.basename", c.Basename))

	var r io.Reader = body
	if p.opts.MaxSourceBytes > 0 {
		r = &limitedReader{r: body, remaining: p.opts.MaxSourceBytes}
	}

	firstFrame := p.opts.GIFFirstFrame && source.Extension(c.ResolvedURL) == imaging.FormatGIF
	img, err := imaging.Decode(r, c.Basename, imaging.DecodeOptions{
		FirstFrame: firstFrame,
		MaxPixels:  p.opts.MaxPixels,
	})
	if err != nil {
		err = util.NewTransformError(err)
	}
	observability.EndSpan(span, err)
	return img, err
}

func (p *Processor) runTransform(ctx context.Context, c *Context, img *imaging.Image) (*imaging.Image, error) {
	defer p.observe("transform", time.Now())

	_, span := observability.StartStage(ctx, "transform")

	res, err := invoke(p.transform, img, c)
	var out *imaging.Image
	if err == nil {
		out, err = res.resolve(c.Context())
	}
	err = classify(err)
	observability.EndSpan(span, err)
	return out, err
}

// classify maps a transform failure onto the client-visible error types.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var contract *util.ContractViolationError
	if errors.As(err, &contract) {
		return contract
	}
	var transform *util.TransformError
	if errors.As(err, &transform) {
		return transform
	}
	return util.NewTransformError(err)
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errSourceTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errSourceTooLarge
	}
	return n, err
}

var errSourceTooLarge = fmt.Errorf("source image too large: %w", util.ErrInvalidInput)
