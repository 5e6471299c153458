package reconcile

import (
	"context"
	"sync"
)

// Future is a write-once (Result, error) pair.
type Future struct {
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	res       Result
	err       error
	callbacks []func(Result, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Settled returns a future that is already settled.
func Settled(res Result, err error) *Future {
	f := newFuture()
	f.settle(res, err)
	return f
}

// settle stores the outcome and runs callbacks on the calling goroutine.
// Only the first call has any effect.
func (f *Future) settle(res Result, err error) bool {
	settled := false
	f.once.Do(func() {
		f.mu.Lock()
		f.res, f.err = res, err
		cbs := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, cb := range cbs {
			cb(res, err)
		}
		settled = true
	})
	return settled
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnSettle registers fn to run once with the outcome. If the future has
// already settled fn runs immediately; otherwise it runs on the goroutine that
// settles it, which for streams is the caller's final Recv or Close.
func (f *Future) OnSettle(fn func(Result, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		res, err := f.res, f.err
		f.mu.Unlock()
		fn(res, err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}
