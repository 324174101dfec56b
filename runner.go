package iocontext

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-iocontext/internal/goroutineid"
)

const (
	runnerJoinable uint32 = iota
	runnerJoined
	runnerDetached
)

// Runner is a handle to a goroutine, locked to its own OS thread, that runs
// an [IoContext] until it stops. See [IoContext.StartRunner].
//
// Like a thread handle, a Runner must be joined or detached at most once.
type Runner struct {
	ctx     *IoContext
	done    chan struct{}
	err     error
	name    string
	cpus    []int
	gid     atomic.Uint64
	tid     atomic.Int64
	handled atomic.Int64
	state   atomic.Uint32
}

func newRunner(ctx *IoContext, options *runnerOptions) *Runner {
	return &Runner{
		ctx:  ctx,
		done: make(chan struct{}),
		name: options.name,
		cpus: options.cpuAffinity,
	}
}

func (r *Runner) loop() {
	defer r.ctx.runnerExited()
	defer close(r.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.gid.Store(goroutineid.Get())
	r.tid.Store(int64(currentThreadID()))

	if len(r.cpus) != 0 {
		if err := setThreadAffinity(r.cpus); err != nil {
			r.logAffinityFailure(err)
		}
	}

	r.logStarted()

	n, err := r.ctx.Run(context.Background())
	r.handled.Store(int64(n))
	r.err = err

	r.logExited(n, err)
}

// Context returns the context this runner drains.
func (r *Runner) Context() *IoContext {
	return r.ctx
}

// Join blocks until the runner's run loop returns. It returns ErrNotJoinable
// if the runner was already joined or detached, and ErrJoinSelf if called
// from the runner itself.
func (r *Runner) Join() error {
	if gid := r.gid.Load(); gid != 0 && gid == goroutineid.Get() {
		return ErrJoinSelf
	}
	if !r.state.CompareAndSwap(runnerJoinable, runnerJoined) {
		return ErrNotJoinable
	}
	<-r.done
	return nil
}

// Detach releases the handle's responsibility for the runner, which keeps
// running until the context stops. It returns ErrNotJoinable if the runner
// was already joined or detached.
func (r *Runner) Detach() error {
	if !r.state.CompareAndSwap(runnerJoinable, runnerDetached) {
		return ErrNotJoinable
	}
	return nil
}

// Joinable reports whether Join or Detach may still be called.
func (r *Runner) Joinable() bool {
	return r.state.Load() == runnerJoinable
}

// Done is closed once the run loop has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Handled returns the number of handlers the runner executed. It is only
// meaningful after Done is closed.
func (r *Runner) Handled() int {
	return int(r.handled.Load())
}

// Err returns the error from the run loop, if any. It is only meaningful
// after Done is closed.
func (r *Runner) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// ThreadID returns the OS thread id the runner is locked to, or 0 if it is
// not yet known or unsupported on this platform.
func (r *Runner) ThreadID() int {
	return int(r.tid.Load())
}
