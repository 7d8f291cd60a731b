package fetch

import (
	"container/list"
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// DefaultWorkers is the worker count used when New receives a value below one.
const DefaultWorkers = 4

// Task describes one upstream fetch.
type Task struct {
	// Source is the absolute http or https URL to GET.
	Source string
	// Timeout is the socket idle timeout; zero disables it.
	Timeout time.Duration
	// Route labels metrics and logs.
	Route string
}

// Stats is a snapshot of the queue.
type Stats struct {
	Workers  int
	Pending  int
	InFlight int
}

type job struct {
	ctx      context.Context
	task     Task
	future   *Future
	enqueued time.Time
}

// Queue is a bounded pool of fetch workers fed by an unbounded FIFO.
type Queue struct {
	workers   int
	client    *http.Client
	logger    observability.Logger
	userAgent string
	metrics   *Metrics

	breakerThreshold int
	breakerTimeout   time.Duration
	breakers         *breakerSet

	mu       sync.Mutex
	cond     *sync.Cond
	pending  *list.List
	inFlight int
	closed   bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option is a functional option for configuring the Queue.
type Option func(*Queue)

// WithClient sets the HTTP client used for upstream requests.
func WithClient(client *http.Client) Option {
	return func(q *Queue) {
		q.client = client
	}
}

// WithLogger sets the logger for the queue.
func WithLogger(logger observability.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithUserAgent sets the User-Agent header of upstream requests.
func WithUserAgent(userAgent string) Option {
	return func(q *Queue) {
		q.userAgent = userAgent
	}
}

// WithCircuitBreaker enables a circuit breaker per upstream host. The
// breaker opens after threshold consecutive failures and probes again
// after timeout.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(q *Queue) {
		q.breakerThreshold = threshold
		q.breakerTimeout = timeout
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(q *Queue) {
		q.metrics = metrics
	}
}

// New creates a queue and starts its workers.
func New(workers int, opts ...Option) *Queue {
	if workers < 1 {
		workers = DefaultWorkers
	}

	q := &Queue{
		workers: workers,
		logger:  observability.NopLogger(),
		pending: list.New(),
	}
	q.cond = sync.NewCond(&q.mu)

	for _, opt := range opts {
		opt(q)
	}

	if q.client == nil {
		q.client = NewClient(DefaultClientConfig())
	}
	if q.metrics == nil {
		q.metrics = GetMetrics()
	}
	if q.breakerTimeout > 0 {
		q.breakers = newBreakerSet(q.breakerThreshold, q.breakerTimeout, q.logger, q.metrics)
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}

	return q
}

// Push enqueues task and returns its future without blocking. ctx is
// used for its values only.
func (q *Queue) Push(ctx context.Context, task Task) *Future {
	f := newFuture()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.metrics.outcomes.WithLabelValues(task.Route, outcomeClosed).Inc()
		f.settle(nil, util.ErrQueueClosed)
		return f
	}
	q.pending.PushBack(&job{
		ctx:      context.WithoutCancel(ctx),
		task:     task,
		future:   f,
		enqueued: time.Now(),
	})
	q.metrics.queueDepth.Set(float64(q.pending.Len()))
	q.mu.Unlock()

	q.cond.Signal()
	return f
}

// Stats returns a snapshot of the queue state.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Workers:  q.workers,
		Pending:  q.pending.Len(),
		InFlight: q.inFlight,
	}
}

// Close rejects further pushes, lets the workers finish the queued
// tasks and waits for them to exit.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for q.pending.Len() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.pending.Len() == 0 {
			q.mu.Unlock()
			return
		}
		j := q.pending.Remove(q.pending.Front()).(*job)
		q.inFlight++
		q.metrics.queueDepth.Set(float64(q.pending.Len()))
		q.metrics.inFlight.Set(float64(q.inFlight))
		q.mu.Unlock()

		q.run(j)

		q.mu.Lock()
		q.inFlight--
		q.metrics.inFlight.Set(float64(q.inFlight))
		q.mu.Unlock()
	}
}

func (q *Queue) run(j *job) {
	q.metrics.waitSeconds.Observe(time.Since(j.enqueued).Seconds())

	ctx, span := observability.StartStage(j.ctx, "fetch",
		attribute.String("url.full", j.task.Source),
		attribute.String("imagegw.route", j.task.Route),
	)

	start := time.Now()
	res, err := q.fetch(ctx, j.task)
	elapsed := time.Since(start)

	outcome := outcomeOK
	switch {
	case err == nil && res.StatusCode != http.StatusOK:
		outcome = outcomeNon200
	case isBreakerOpen(err):
		outcome = outcomeBreakerOpen
	case util.IsTimeout(err):
		outcome = outcomeTimeout
	case err != nil:
		outcome = outcomeTransport
	}

	q.metrics.duration.WithLabelValues(j.task.Route).Observe(elapsed.Seconds())
	q.metrics.outcomes.WithLabelValues(j.task.Route, outcome).Inc()
	if res != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}
	observability.EndSpan(span, err)

	logger := q.logger.WithContext(ctx)
	if err != nil {
		logger.Warn("upstream fetch failed",
			observability.String("url", j.task.Source),
			observability.String("outcome", outcome),
			observability.Duration("duration", elapsed),
			observability.Error(err),
		)
		j.future.settle(nil, q.wrapError(j.task, err))
		return
	}

	logger.Debug("upstream responded",
		observability.String("url", j.task.Source),
		observability.Int("status", res.StatusCode),
		observability.Duration("duration", elapsed),
	)
	j.future.settle(res, nil)
}

// fetch issues the GET and returns once the response headers arrive.
func (q *Queue) fetch(ctx context.Context, task Task) (*Result, error) {
	u, err := url.Parse(task.Source)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, util.WrapError(util.ErrInvalidInput, "unsupported scheme "+u.Scheme)
	}

	var timer *idleTimer
	reqCtx := ctx
	if task.Timeout > 0 {
		reqCtx, timer = startIdleTimer(ctx, task.Timeout)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.Source, nil)
	if err != nil {
		if timer != nil {
			timer.stop()
		}
		return nil, err
	}
	if q.userAgent != "" {
		req.Header.Set("User-Agent", q.userAgent)
	}
	observability.InjectTraceContext(ctx, req)

	do := func() (*http.Response, error) { return q.client.Do(req) }

	var resp *http.Response
	if q.breakers != nil {
		resp, err = q.breakers.execute(hostOf(u), do)
	} else {
		resp, err = do()
	}

	if err != nil {
		if timer != nil {
			err = timer.wrap("fetch "+task.Source, err)
			timer.stop()
		}
		return nil, err
	}

	body := resp.Body
	if timer != nil {
		body = &idleTimeoutBody{body: resp.Body, timer: timer, operation: "read " + task.Source}
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// wrapError maps a fetch failure to the client-visible error types.
func (q *Queue) wrapError(task Task, err error) error {
	if util.IsTimeout(err) {
		return err
	}
	return util.NewTransportError(task.Source, err)
}

// hostOf returns the host of u without a default port.
func hostOf(u *url.URL) string {
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host
	}
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}
	return u.Host
}
