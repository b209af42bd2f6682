package assets

import (
	"context"
	"image"
)

// Future is an image load running in the background. Its result is only
// published while the context it was started with is live; once that
// context ends, waiters get a cancelled LoadError instead of a late image.
type Future struct {
	ctx  context.Context
	done chan struct{}
	img  image.Image
	err  error
}

// Go starts loading locator with l.
func Go(ctx context.Context, l Loader, locator string) *Future {
	f := &Future{ctx: ctx, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		img, err := l.Load(ctx, locator)
		if ctx.Err() != nil {
			img, err = nil, &LoadError{Locator: locator, Kind: FailureCancelled, Err: ctx.Err()}
		}
		f.img, f.err = img, err
	}()
	return f
}

// Resolved wraps an already loaded image, or nil for "no asset".
func Resolved(img image.Image) *Future {
	f := &Future{ctx: context.Background(), done: make(chan struct{}), img: img}
	close(f.done)
	return f
}

// Done is closed once the load has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Ready returns the result if the load has finished. ok is false while the
// load is still running.
func (f *Future) Ready() (img image.Image, ok bool, err error) {
	select {
	case <-f.done:
		return f.img, true, f.err
	default:
		return nil, false, nil
	}
}

// Wait blocks until the load finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-f.done:
		return f.img, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
