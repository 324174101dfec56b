package gojaio

import (
	"errors"
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-iocontext/handoff"
)

// callAsyncOptions is the optional second argument to callAsync.
type callAsyncOptions struct {
	// fallback is the result when onReady is called without arguments
	fallback   goja.Value
	packSingle bool
}

// jsCallAsync implements `callAsync(start, options?)`.
//
// start is called synchronously with an onReady callback. The returned
// Promise resolves, on a later flush of the host, with the arguments of the
// first onReady call: the options.default value if there were none, the
// argument itself if there was one (unless options.packSingle), otherwise
// an array. Later calls are ignored. The Promise rejects if start throws.
func (m *Module) jsCallAsync(call goja.FunctionCall) goja.Value {
	start := m.callback(call.Argument(0), "callAsync: start")
	opts := m.callAsyncOptions(call.Argument(1))

	promise, resolve, reject := m.newPromise()

	var threw bool
	f := handoff.CallAsync(m.handoff, func(done func([]goja.Value)) {
		onReady := m.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
			done(slices.Clone(call.Arguments))
			return goja.Undefined()
		})
		if _, err := start(goja.Undefined(), onReady); err != nil {
			threw = true
			reject(thrownValue(m.runtime, err))
		}
	})
	if threw {
		f.Cancel()
	}

	f.Then(func(args []goja.Value, err error) {
		switch {
		case threw:
		case err != nil:
			reject(m.runtime.NewGoError(err))
		default:
			resolve(opts.result(m.runtime, args))
		}
	})

	return promise
}

func (m *Module) callAsyncOptions(v goja.Value) callAsyncOptions {
	opts := callAsyncOptions{fallback: goja.Undefined()}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return opts
	}
	obj := v.ToObject(m.runtime)
	if d := obj.Get("default"); d != nil {
		opts.fallback = d
	}
	if p := obj.Get("packSingle"); p != nil {
		opts.packSingle = p.ToBoolean()
	}
	return opts
}

func (o callAsyncOptions) result(runtime *goja.Runtime, args []goja.Value) goja.Value {
	switch {
	case len(args) == 0:
		return o.fallback
	case len(args) == 1 && !o.packSingle:
		return args[0]
	}
	values := make([]any, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return runtime.NewArray(values...)
}

// newPromise creates a pending Promise via the runtime's own constructor,
// returning functions that settle it. They must be called on the host.
func (m *Module) newPromise() (*goja.Object, func(goja.Value), func(goja.Value)) {
	var resolveFn, rejectFn goja.Callable
	executor := m.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		resolveFn, _ = goja.AssertFunction(call.Argument(0))
		rejectFn, _ = goja.AssertFunction(call.Argument(1))
		return goja.Undefined()
	})
	promise, err := m.runtime.New(m.runtime.Get("Promise"), executor)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	resolve := func(v goja.Value) { m.invoke(resolveFn, v) }
	reject := func(v goja.Value) { m.invoke(rejectFn, v) }
	return promise, resolve, reject
}

// thrownValue returns the JS value thrown, for an error returned by a
// [goja.Callable].
func thrownValue(runtime *goja.Runtime, err error) goja.Value {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exception.Value()
	}
	return runtime.NewGoError(err)
}
