package processor

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avaimg/internal/imaging"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// TransformFunc transforms the decoded source image. It returns either an
// immediate image (Done) or a pending one (Await).
type TransformFunc func(img *imaging.Image, c *Context) (Result, error)

// Result is the tagged outcome of a TransformFunc. The zero value is
// neither form and is rejected as a contract violation.
type Result struct {
	img     *imaging.Image
	pending *Future
}

// Done wraps an immediately available image.
func Done(img *imaging.Image) Result {
	return Result{img: img}
}

// Await wraps an image that will be produced asynchronously.
func Await(f *Future) Result {
	return Result{pending: f}
}

// IsZero reports whether r carries neither an image nor a future.
func (r Result) IsZero() bool {
	return r.img == nil && r.pending == nil
}

// resolve returns the image, waiting on a pending future with ctx.
func (r Result) resolve(ctx context.Context) (*imaging.Image, error) {
	switch {
	case r.pending != nil:
		img, err := r.pending.Wait(ctx)
		if err != nil {
			return nil, util.NewTransformError(err)
		}
		if img == nil {
			return nil, errNoImage
		}
		return img, nil
	case r.img != nil:
		return r.img, nil
	default:
		return nil, errNoImage
	}
}

var errNoImage = util.NewContractViolationError(
	"transform function must return an image or a pending result")

// Future is an image being produced by another goroutine.
type Future struct {
	done chan struct{}
	img  *imaging.Image
	err  error
}

// Go runs fn in a new goroutine. A panic in fn rejects the future.
func Go(fn func() (*imaging.Image, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.img, f.err = nil, fmt.Errorf("panic: %v", r)
			}
		}()
		f.img, f.err = fn()
	}()
	return f
}

// Wait blocks until the future settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (*imaging.Image, error) {
	select {
	case <-f.done:
		return f.img, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Chain composes transforms: each one receives the image produced by the
// previous one. The chain stops at the first failure.
func Chain(fns ...TransformFunc) TransformFunc {
	return func(img *imaging.Image, c *Context) (Result, error) {
		for _, fn := range fns {
			res, err := invoke(fn, img, c)
			if err != nil {
				return Result{}, err
			}
			img, err = res.resolve(c.Context())
			if err != nil {
				return Result{}, err
			}
		}
		return Done(img), nil
	}
}

// invoke calls fn, converting a panic into an error.
func invoke(fn TransformFunc, img *imaging.Image, c *Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(img, c)
}
