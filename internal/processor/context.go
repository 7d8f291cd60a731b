package processor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// HelperFunc is a caller-defined capability bound to a request Context.
type HelperFunc func(c *Context, args ...any) (any, error)

// Helpers is an immutable set of named helpers.
type Helpers struct {
	fns map[string]HelperFunc
}

// NewHelpers copies fns into a new helper set.
func NewHelpers(fns map[string]HelperFunc) Helpers {
	copied := make(map[string]HelperFunc, len(fns))
	for name, fn := range fns {
		if fn != nil {
			copied[name] = fn
		}
	}
	return Helpers{fns: copied}
}

// With returns a copy of the set with name bound to fn.
func (h Helpers) With(name string, fn HelperFunc) Helpers {
	copied := make(map[string]HelperFunc, len(h.fns)+1)
	for k, v := range h.fns {
		copied[k] = v
	}
	copied[name] = fn
	return Helpers{fns: copied}
}

// Has reports whether a helper is registered under name.
func (h Helpers) Has(name string) bool {
	_, ok := h.fns[name]
	return ok
}

// Names returns the sorted helper names.
func (h Helpers) Names() []string {
	names := make([]string, 0, len(h.fns))
	for name := range h.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HelperTempDir is the name of the built-in temporary directory helper.
const HelperTempDir = "tempDir"

// TempDir creates a per-request temporary directory and registers its
// removal as a cleanup callback. It returns the directory path.
func TempDir(c *Context, _ ...any) (any, error) {
	dir, err := os.MkdirTemp("", "imagegw-*")
	if err != nil {
		return nil, err
	}
	c.OnCleanup(func() error {
		return os.RemoveAll(dir)
	})
	return dir, nil
}

// Context is the per-request state threaded through the pipeline. It is
// created when a route matches and must not be shared between requests.
type Context struct {
	// Params holds the query and route parameters; route variables win.
	Params map[string]string
	// ResolvedURL is the upstream URL built from the template.
	ResolvedURL string
	// Basename is the last path element of ResolvedURL.
	Basename string
	// ContentType and LastModified are copied from the upstream response.
	ContentType  string
	LastModified string

	req     *http.Request
	helpers Helpers
	logger  observability.Logger

	mu       sync.Mutex
	cleanups []func() error
	cleaned  bool
}

// NewContext creates the Context for r.
func NewContext(r *http.Request, helpers Helpers, logger observability.Logger) *Context {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Context{
		Params:  map[string]string{},
		req:     r,
		helpers: helpers,
		logger:  logger,
	}
}

// Request returns the inbound request.
func (c *Context) Request() *http.Request {
	return c.req
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.req.Context()
}

// Logger returns a logger carrying the request identifiers.
func (c *Context) Logger() observability.Logger {
	return c.logger.WithContext(c.req.Context())
}

// Param returns the named parameter or "".
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// OnCleanup registers fn to run when the request finishes. It is safe to
// call from goroutines started by the transform. Once the request's cleanup
// has run, fn runs immediately instead.
func (c *Context) OnCleanup(fn func() error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if !c.cleaned {
		c.cleanups = append(c.cleanups, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := safeCleanup(fn); err != nil {
		c.Logger().Warn("late cleanup callback failed", observability.Error(err))
	}
}

// HasHelper reports whether the named helper is available.
func (c *Context) HasHelper(name string) bool {
	return c.helpers.Has(name)
}

// Call invokes the named helper bound to this context.
func (c *Context) Call(name string, args ...any) (any, error) {
	fn, ok := c.helpers.fns[name]
	if !ok {
		return nil, fmt.Errorf("unknown helper %q", name)
	}
	return fn(c, args...)
}

// runCleanup runs the registered callbacks in order and returns how many
// failed. Later calls are no-ops. Errors and panics are logged and do not
// stop the sequence.
func (c *Context) runCleanup() int {
	c.mu.Lock()
	if c.cleaned {
		c.mu.Unlock()
		return 0
	}
	c.cleaned = true
	c.mu.Unlock()

	logger := c.Logger()
	failed := 0
	for i := 0; ; i++ {
		c.mu.Lock()
		if i >= len(c.cleanups) {
			c.mu.Unlock()
			return failed
		}
		fn := c.cleanups[i]
		c.mu.Unlock()

		if err := safeCleanup(fn); err != nil {
			failed++
			logger.Warn("cleanup callback failed",
				observability.Int("index", i),
				observability.Error(err),
			)
		}
	}
}

func safeCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panic: %v", r)
		}
	}()
	return fn()
}
