package gojaio

import (
	"context"
	"time"

	"github.com/dop251/goja"
	iocontext "github.com/joeycumines/go-iocontext"
)

const (
	ioContextKey = "_ioContext"
	workGuardKey = "_workGuard"
	threadKey    = "_thread"
)

// jsNewIoContext implements `new IoContext(concurrencyHint?)`.
func (m *Module) jsNewIoContext(call goja.ConstructorCall) *goja.Object {
	opts := []iocontext.Option{iocontext.WithLogger(m.logger)}
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		opts = append(opts, iocontext.WithConcurrencyHint(int(arg.ToInteger())))
	}
	c, err := iocontext.New(opts...)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return m.IoContextObject(c)
}

// IoContextObject wraps an existing context for use from JavaScript, e.g.
// one shared between several runtimes.
func (m *Module) IoContextObject(c *iocontext.IoContext) *goja.Object {
	obj := m.runtime.NewObject()
	_ = obj.Set(ioContextKey, c)

	m.method(obj, "concurrencyHint", func(goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(c.ConcurrencyHint())
	})
	m.getter(obj, "stopped", func() any { return c.Stopped() })
	m.method(obj, "stop", func(goja.FunctionCall) goja.Value {
		c.Stop()
		return goja.Undefined()
	})
	m.method(obj, "restart", func(goja.FunctionCall) goja.Value {
		c.Restart()
		return goja.Undefined()
	})
	m.method(obj, "poll", func(goja.FunctionCall) goja.Value {
		n, err := c.Poll()
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return m.runtime.ToValue(n)
	})
	m.method(obj, "pollOne", func(goja.FunctionCall) goja.Value {
		n, err := c.PollOne()
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return m.runtime.ToValue(n)
	})
	m.method(obj, "createWorkGuard", func(goja.FunctionCall) goja.Value {
		return m.workGuardObject(c.NewWorkGuard())
	})
	m.method(obj, "startRunner", func(call goja.FunctionCall) goja.Value {
		var opts []iocontext.RunnerOption
		if name := call.Argument(0); !goja.IsUndefined(name) {
			opts = append(opts, iocontext.WithRunnerName(name.String()))
		}
		r, err := c.StartRunner(opts...)
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return m.threadObject(r)
	})
	// shutdown(timeoutSeconds?) blocks the host until runners have exited
	m.method(obj, "shutdown", func(call goja.FunctionCall) goja.Value {
		ctx := context.Background()
		if arg := call.Argument(0); !goja.IsUndefined(arg) {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, seconds(arg))
			defer cancel()
		}
		if err := c.Shutdown(ctx); err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	})

	return obj
}

func (m *Module) toIoContext(v goja.Value) *iocontext.IoContext {
	return unwrap[*iocontext.IoContext](m, v, ioContextKey, "IoContext")
}

func (m *Module) workGuardObject(g *iocontext.WorkGuard) *goja.Object {
	obj := m.runtime.NewObject()
	_ = obj.Set(workGuardKey, g)
	m.getter(obj, "ownsWork", func() any { return g.OwnsWork() })
	m.method(obj, "reset", func(goja.FunctionCall) goja.Value {
		g.Reset()
		return goja.Undefined()
	})
	return obj
}

func (m *Module) threadObject(r *iocontext.Runner) *goja.Object {
	obj := m.runtime.NewObject()
	_ = obj.Set(threadKey, r)
	m.getter(obj, "joinable", func() any { return r.Joinable() })
	m.getter(obj, "threadId", func() any { return r.ThreadID() })
	m.method(obj, "join", func(goja.FunctionCall) goja.Value {
		if err := r.Join(); err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	})
	m.method(obj, "detach", func(goja.FunctionCall) goja.Value {
		if err := r.Detach(); err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	})
	return obj
}

// seconds converts a JS number of seconds, which may be fractional.
func seconds(v goja.Value) time.Duration {
	return time.Duration(v.ToFloat() * float64(time.Second))
}
