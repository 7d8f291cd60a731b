package fetch

import (
	"context"
	"io"
	"net/http"
)

// Result is the upstream response head plus the unread body. The caller
// owns Body and must close it.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Future is the pending outcome of a pushed Task. It settles exactly once.
type Future struct {
	done chan struct{}
	res  *Result
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(res *Result, err error) {
	f.res = res
	f.err = err
	close(f.done)
}

// Done is closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx ends. When ctx ends first,
// Wait returns ctx.Err() and the eventual result body is drained and
// closed in the background.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	default:
	}

	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		go func() {
			<-f.done
			if f.res != nil && f.res.Body != nil {
				_, _ = io.Copy(io.Discard, f.res.Body)
				_ = f.res.Body.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
