package iocontext

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-iocontext/internal/goroutineid"
	"github.com/joeycumines/logiface"
)

var contextIDs atomic.Uint64

// asyncOp is a pending asynchronous operation, counted as outstanding work
// until it is completed and its handler queued.
type asyncOp interface {
	// abort completes the operation with OperationAborted, returning false
	// if it had already completed.
	abort() bool
}

// IoContext is a run queue of completion handlers, drained by one or more
// goroutines calling [IoContext.Run] (typically a [Runner]).
//
// All methods are safe to call concurrently.
type IoContext struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger       *logiface.Logger[logiface.Event]
	panicLimiter *catrate.Limiter

	// pending operations, canceled by Stop and Shutdown
	pending map[asyncOp]struct{}

	// goroutines currently inside run or drain, by goroutine id
	active map[uint64]int

	cond *sync.Cond

	queue runQueue

	mu sync.Mutex

	// guards + pending ops + queued handlers
	outstanding int64

	id              uint64
	concurrencyHint int

	// started runners that have not yet exited
	runners int

	stopped bool
	closed  bool
}

// New creates an IoContext with an empty run queue.
func New(opts ...Option) (*IoContext, error) {
	options, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &IoContext{
		logger:          options.logger,
		pending:         make(map[asyncOp]struct{}),
		active:          make(map[uint64]int),
		id:              contextIDs.Add(1),
		concurrencyHint: options.concurrencyHint,
	}
	c.cond = sync.NewCond(&c.mu)
	if options.panicLogRates != nil {
		if c.panicLimiter, err = newPanicLimiter(options.panicLogRates); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func newPanicLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iocontext: invalid panic log rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// ConcurrencyHint returns the value supplied via [WithConcurrencyHint].
func (c *IoContext) ConcurrencyHint() int {
	return c.concurrencyHint
}

// Stopped reports whether the context has been stopped, either explicitly or
// because it ran out of work.
func (c *IoContext) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop marks the context stopped, causing every Run call to return as soon
// as possible. Handlers already queued stay queued. Pending operations are
// canceled, queuing their handlers with [OperationAborted], to be run after
// [IoContext.Restart], or by [IoContext.Shutdown].
func (c *IoContext) Stop() {
	c.mu.Lock()
	c.stopLocked()
	ops := c.pendingOpsLocked()
	c.mu.Unlock()

	for _, op := range ops {
		op.abort()
	}
}

// Restart clears the stopped flag, allowing Run to be called again. It has
// no effect once the context has been shut down.
func (c *IoContext) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.stopped = false
	}
}

// Post queues fn to be run by a goroutine draining the context.
func (c *IoContext) Post(fn func()) error {
	if fn == nil {
		return ErrNilHandler
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.outstanding++
	c.queue.push(fn)
	c.cond.Signal()
	return nil
}

// Run runs handlers until the context is stopped, it runs out of work, or
// ctx is done, returning the number of handlers executed. The context stops
// itself once no guards, pending operations, or queued handlers remain.
//
// Run returns ctx.Err() if ctx ended the run, or ErrContextClosed if the
// context has been shut down.
func (c *IoContext) Run(ctx context.Context) (int, error) {
	return c.run(ctx, -1, true)
}

// RunOne runs at most one handler, blocking until one is ready, the context
// is stopped, or ctx is done.
func (c *IoContext) RunOne(ctx context.Context) (int, error) {
	return c.run(ctx, 1, true)
}

// Poll runs every handler that is ready without blocking.
func (c *IoContext) Poll() (int, error) {
	return c.run(context.Background(), -1, false)
}

// PollOne runs at most one ready handler without blocking.
func (c *IoContext) PollOne() (int, error) {
	return c.run(context.Background(), 1, false)
}

// NewWorkGuard returns a guard that keeps the context from running out of
// work until it is reset.
func (c *IoContext) NewWorkGuard() *WorkGuard {
	c.mu.Lock()
	c.outstanding++
	c.mu.Unlock()
	return newWorkGuard(c)
}

// StartRunner starts a goroutine, locked to its own OS thread, that calls
// Run once, then exits.
func (c *IoContext) StartRunner(opts ...RunnerOption) (*Runner, error) {
	options, err := resolveRunnerOptions(opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrContextClosed
	}
	c.runners++
	c.mu.Unlock()

	r := newRunner(c, options)
	go r.loop()
	return r, nil
}

// Shutdown stops the context, cancels pending operations, waits for
// every goroutine in Run to return, then invokes each remaining handler
// exactly once on the calling goroutine. The context is then closed: new
// work is rejected with ErrContextClosed.
//
// If ctx expires while waiting for runners, Shutdown returns ctx.Err() and
// the context stays stopped but open, so Shutdown may be retried.
func (c *IoContext) Shutdown(ctx context.Context) error {
	gid := goroutineid.Get()

	c.mu.Lock()
	if c.active[gid] != 0 {
		c.mu.Unlock()
		return ErrReentrantShutdown
	}
	if c.closed {
		c.mu.Unlock()
		return ErrContextClosed
	}
	c.mu.Unlock()

	c.Stop()

	idle := make(chan struct{})
	go func() {
		c.mu.Lock()
		for c.runners != 0 || len(c.active) != 0 {
			c.cond.Wait()
		}
		c.mu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContextClosed
	}
	c.closed = true
	c.stopped = true
	c.active[gid]++
	c.drainLocked()
	delete(c.active, gid)
	c.mu.Unlock()

	c.logger.Debug().
		Uint64("context", c.id).
		Log("iocontext: context shut down")

	return nil
}

// drainLocked runs queued handlers, and aborts pending operations, until
// neither remain.
//
// CALLER MUST HOLD c.mu. It is released while handlers run.
func (c *IoContext) drainLocked() {
	for {
		if fn, ok := c.queue.pop(); ok {
			c.mu.Unlock()
			c.safeExecute(fn)
			c.mu.Lock()
			c.workFinishedLocked()
			continue
		}

		if len(c.pending) == 0 {
			return
		}

		ops := c.pendingOpsLocked()
		c.mu.Unlock()
		var aborted bool
		for _, op := range ops {
			if op.abort() {
				aborted = true
			}
		}
		c.mu.Lock()

		// an op that completed concurrently is queued by its own goroutine
		if !aborted && c.queue.len() == 0 && len(c.pending) != 0 {
			c.cond.Wait()
		}
	}
}

func (c *IoContext) run(ctx context.Context, limit int, block bool) (int, error) {
	gid := goroutineid.Get()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrContextClosed
	}

	if c.outstanding == 0 {
		c.stopLocked()
		return 0, nil
	}

	c.active[gid]++
	defer func() {
		if c.active[gid]--; c.active[gid] == 0 {
			delete(c.active, gid)
		}
		c.cond.Broadcast()
	}()

	if block && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer stop()
	}

	var n int
	for !c.stopped {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		fn, ok := c.queue.pop()
		if !ok {
			if !block {
				break
			}
			c.cond.Wait()
			continue
		}

		c.mu.Unlock()
		c.safeExecute(fn)
		c.mu.Lock()
		c.workFinishedLocked()
		n++

		if limit > 0 && n >= limit {
			break
		}
	}

	return n, nil
}

// stopLocked marks the context stopped and wakes every blocked Run call.
//
// CALLER MUST HOLD c.mu.
func (c *IoContext) stopLocked() {
	c.stopped = true
	c.cond.Broadcast()
}

// workFinishedLocked decrements the outstanding work count, stopping the
// context on reaching zero.
//
// CALLER MUST HOLD c.mu.
func (c *IoContext) workFinishedLocked() {
	c.outstanding--
	if c.outstanding <= 0 {
		c.outstanding = 0
		c.stopLocked()
	}
}

func (c *IoContext) workFinished() {
	c.mu.Lock()
	c.workFinishedLocked()
	c.mu.Unlock()
}

// runnerExited is called by each started runner as its goroutine exits.
func (c *IoContext) runnerExited() {
	c.mu.Lock()
	c.runners--
	c.cond.Broadcast()
	c.mu.Unlock()
}

// startOp registers op as pending, counting it as outstanding work.
func (c *IoContext) startOp(op asyncOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.outstanding++
	c.pending[op] = struct{}{}
	return nil
}

// completeOp moves op from pending to the run queue, as handler. The work
// count is unchanged, as the queued handler takes over op's share.
func (c *IoContext) completeOp(op asyncOp, handler func()) {
	c.mu.Lock()
	delete(c.pending, op)
	c.queue.push(handler)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// CALLER MUST HOLD c.mu.
func (c *IoContext) pendingOpsLocked() []asyncOp {
	if len(c.pending) == 0 {
		return nil
	}
	ops := make([]asyncOp, 0, len(c.pending))
	for op := range c.pending {
		ops = append(ops, op)
	}
	return ops
}

// safeExecute runs fn, recovering and logging any panic.
func (c *IoContext) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logPanic(r)
		}
	}()
	fn()
}
