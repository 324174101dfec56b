package iocontext

import (
	"fmt"
)

// logPanic reports a recovered handler panic, subject to the per-category
// rate limit, keyed by the dynamic type of the panic value.
func (c *IoContext) logPanic(r any) {
	if c.logger == nil {
		return
	}
	if c.panicLimiter != nil {
		if _, ok := c.panicLimiter.Allow(fmt.Sprintf("%T", r)); !ok {
			return
		}
	}
	c.logger.Err().
		Err(PanicError{Value: r}).
		Uint64("context", c.id).
		Log("iocontext: handler panicked")
}

func (r *Runner) logStarted() {
	r.ctx.logger.Debug().
		Uint64("context", r.ctx.id).
		Str("runner", r.name).
		Int("tid", r.ThreadID()).
		Log("iocontext: runner started")
}

func (r *Runner) logExited(handled int, err error) {
	b := r.ctx.logger.Debug().
		Uint64("context", r.ctx.id).
		Str("runner", r.name).
		Int("handled", handled)
	if err != nil {
		b = b.Err(err)
	}
	b.Log("iocontext: runner exited")
}

func (r *Runner) logAffinityFailure(err error) {
	r.ctx.logger.Warning().
		Uint64("context", r.ctx.id).
		Str("runner", r.name).
		Err(err).
		Log("iocontext: failed to set runner cpu affinity")
}
