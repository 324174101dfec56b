package iocontext

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	opPending uint32 = iota
	opCompleted
)

// Timer is a one-shot deadline timer bound to an [IoContext]. Each
// [Timer.AsyncWait] registers a handler that is invoked exactly once, with
// success when the expiry elapses, or with [OperationAborted] if the wait is
// canceled first.
//
// Closing the timer cancels any pending wait. A timer that is dropped
// without being closed still completes its pending wait normally.
//
// Stopping the context also cancels a pending wait, but its handler is only
// queued: it runs once the context is restarted and run again, or when the
// context is shut down, not when the runners return from Run.
type Timer struct {
	ctx    *IoContext
	op     *waitOp
	expiry time.Time
	mu     sync.Mutex
	closed bool
}

// waitOp is a single AsyncWait registration.
type waitOp struct {
	ctx     *IoContext
	handler func(ErrorCode)
	timer   *time.Timer
	mu      sync.Mutex // guards timer
	state   atomic.Uint32
}

// NewTimer returns a timer expiring d from now.
func NewTimer(ctx *IoContext, d time.Duration) *Timer {
	return NewTimerAt(ctx, time.Now().Add(d))
}

// NewTimerAt returns a timer expiring at t.
func NewTimerAt(ctx *IoContext, t time.Time) *Timer {
	if ctx == nil {
		panic("iocontext: nil context")
	}
	return &Timer{ctx: ctx, expiry: t}
}

// Context returns the context the timer's handlers are queued on.
func (t *Timer) Context() *IoContext {
	return t.ctx
}

// Expiry returns the absolute expiry time.
func (t *Timer) Expiry() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry
}

// ExpiresAfter cancels any pending wait, then sets the expiry to d from now.
// It returns the number of waits canceled.
func (t *Timer) ExpiresAfter(d time.Duration) int {
	return t.ExpiresAt(time.Now().Add(d))
}

// ExpiresAt cancels any pending wait, then sets the expiry to at. It
// returns the number of waits canceled.
func (t *Timer) ExpiresAt(at time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.cancelLocked()
	t.expiry = at
	return n
}

// AsyncWait registers handler to be run, by a goroutine draining the
// context, once the expiry elapses. A wait that is still pending is first
// canceled with [OperationAborted].
//
// It returns ErrTimerClosed after Close, and ErrContextClosed after the
// context is shut down.
func (t *Timer) AsyncWait(handler func(ErrorCode)) error {
	if handler == nil {
		return ErrNilHandler
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTimerClosed
	}

	op := &waitOp{ctx: t.ctx, handler: handler}
	if err := t.ctx.startOp(op); err != nil {
		return err
	}

	if prev := t.op; prev != nil {
		prev.abort()
	}
	t.op = op

	op.mu.Lock()
	op.timer = time.AfterFunc(time.Until(t.expiry), func() {
		op.complete(ErrorCode{})
	})
	if op.state.Load() != opPending {
		// aborted before the timer was armed
		op.timer.Stop()
	}
	op.mu.Unlock()

	return nil
}

// Cancel cancels the pending wait, if any, returning the number canceled.
func (t *Timer) Cancel() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked()
}

// Close cancels the pending wait, if any. Subsequent waits fail with
// ErrTimerClosed. Close is idempotent.
func (t *Timer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancelLocked()
	return nil
}

func (t *Timer) cancelLocked() int {
	op := t.op
	t.op = nil
	if op != nil && op.abort() {
		return 1
	}
	return 0
}

// complete transitions the op to completed, exactly once, and queues the
// handler with ec.
func (op *waitOp) complete(ec ErrorCode) bool {
	if !op.state.CompareAndSwap(opPending, opCompleted) {
		return false
	}
	handler := op.handler
	op.ctx.completeOp(op, func() { handler(ec) })
	return true
}

func (op *waitOp) abort() bool {
	if !op.complete(OperationAborted) {
		return false
	}
	op.mu.Lock()
	if op.timer != nil {
		op.timer.Stop()
	}
	op.mu.Unlock()
	return true
}
