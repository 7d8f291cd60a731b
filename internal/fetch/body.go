package fetch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

// idleTimer cancels a request when no progress is made for timeout.
type idleTimer struct {
	timeout  time.Duration
	timer    *time.Timer
	cancel   context.CancelFunc
	timedOut atomic.Bool
}

func startIdleTimer(ctx context.Context, timeout time.Duration) (context.Context, *idleTimer) {
	ctx, cancel := context.WithCancel(ctx)
	t := &idleTimer{timeout: timeout, cancel: cancel}
	t.timer = time.AfterFunc(timeout, func() {
		t.timedOut.Store(true)
		cancel()
	})
	return ctx, t
}

// touch re-arms the timer unless it already fired.
func (t *idleTimer) touch() {
	if t.timedOut.Load() {
		return
	}
	t.timer.Reset(t.timeout)
}

func (t *idleTimer) stop() {
	t.timer.Stop()
	t.cancel()
}

// wrap converts err into a TimeoutError when the timer fired.
func (t *idleTimer) wrap(operation string, err error) error {
	if err == nil || !t.timedOut.Load() {
		return err
	}
	return &util.TimeoutError{Operation: operation, Duration: t.timeout, Cause: err}
}

// idleTimeoutBody re-arms the idle timer on every read.
type idleTimeoutBody struct {
	body      io.ReadCloser
	timer     *idleTimer
	operation string
	closeOnce sync.Once
	closeErr  error
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	b.timer.touch()
	n, err := b.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, b.timer.wrap(b.operation, err)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.closeOnce.Do(func() {
		b.timer.stop()
		b.closeErr = b.body.Close()
	})
	return b.closeErr
}
