package iocontext

import (
	"runtime"
	"sync/atomic"
)

// WorkGuard keeps its [IoContext] from running out of work while it is
// active. A guard that becomes unreachable without being reset is released
// by the garbage collector.
type WorkGuard struct {
	ctx      *IoContext
	released *atomic.Bool
	cleanup  runtime.Cleanup
}

type workGuardRelease struct {
	ctx      *IoContext
	released *atomic.Bool
}

func (x workGuardRelease) release() bool {
	if x.released.CompareAndSwap(false, true) {
		x.ctx.workFinished()
		return true
	}
	return false
}

func newWorkGuard(ctx *IoContext) *WorkGuard {
	g := &WorkGuard{
		ctx:      ctx,
		released: new(atomic.Bool),
	}
	g.cleanup = runtime.AddCleanup(g, func(x workGuardRelease) {
		x.release()
	}, workGuardRelease{ctx: ctx, released: g.released})
	return g
}

// Context returns the guarded context.
func (g *WorkGuard) Context() *IoContext {
	return g.ctx
}

// OwnsWork reports whether the guard is still active.
func (g *WorkGuard) OwnsWork() bool {
	return !g.released.Load()
}

// Reset releases the guard. It is idempotent, and safe to call after the
// context has stopped.
func (g *WorkGuard) Reset() {
	if (workGuardRelease{ctx: g.ctx, released: g.released}).release() {
		g.cleanup.Stop()
	}
}
