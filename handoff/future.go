package handoff

import (
	"context"
	"sync"
	"sync/atomic"
)

// Future is the eventual result of an operation started by [CallAsync].
//
// It settles on the host goroutine, at which point continuations registered
// via [Future.Then] run, in registration order, on that same goroutine.
type Future[T any] struct {
	h         *Handoff
	done      chan struct{}
	value     T
	err       error
	callbacks []func(T, error)
	mu        sync.Mutex
	claimed   atomic.Bool
	settled   bool
}

// CallAsync starts an asynchronous operation, and returns a Future for its
// result. start is called synchronously with a done callback, which may be
// called from any goroutine: the first call delivers the result to the
// host, subsequent calls are ignored.
//
// Example:
//
//	f := handoff.CallAsync(h, func(done func(iocontext.ErrorCode)) {
//	    _ = timer.AsyncWait(done)
//	})
//	f.Then(func(ec iocontext.ErrorCode, err error) {
//	    // runs on the host
//	})
func CallAsync[T any](h *Handoff, start func(done func(T))) *Future[T] {
	f := &Future[T]{
		h:    h,
		done: make(chan struct{}),
	}
	start(f.resolve)
	return f
}

func (f *Future[T]) resolve(value T) {
	f.deliver(value, nil)
}

// Cancel settles the future with ErrCanceled, unless it was already
// resolved, returning whether it did. As with resolution, the settlement
// itself happens on the host.
func (f *Future[T]) Cancel() bool {
	var zero T
	return f.deliver(zero, ErrCanceled)
}

func (f *Future[T]) deliver(value T, err error) bool {
	if !f.claimed.CompareAndSwap(false, true) {
		f.h.logger.Debug().
			Log("handoff: ignored duplicate completion")
		return false
	}
	f.h.post(ready{
		settle: func() { f.settle(value, err, true) },
		reject: func(rejectErr error) { f.settle(value, rejectErr, false) },
	})
	return true
}

// settle records the outcome, running continuations only on the host.
func (f *Future[T]) settle(value T, err error, onHost bool) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)

	if !onHost {
		return
	}
	for _, fn := range callbacks {
		fn(value, err)
	}
}

// Then registers fn to run on the host once the future settles. If it has
// already settled, fn is submitted to the host. Continuations are not run
// if the host terminated before the future could settle.
func (f *Future[T]) Then(fn func(value T, err error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()

	if submitErr := f.h.sched.Submit(func() { fn(value, err) }); submitErr != nil {
		f.h.logger.Warning().
			Err(submitErr).
			Log("handoff: dropped continuation, host unavailable")
	}
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Value returns the result, and true, if the future settled successfully.
func (f *Future[T]) Value() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled || f.err != nil {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Err returns the error the future settled with, if any.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Await blocks until the future settles or ctx is done. It must not be
// called from the host goroutine of a [Loop], which would deadlock.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
