package gojaio

import (
	"github.com/dop251/goja"
	iocontext "github.com/joeycumines/go-iocontext"
	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/joeycumines/logiface"
)

// Module provides iocontext support for a [goja.Runtime]. Each Module is
// bound to a single runtime, which must only be used from the goroutine
// served by its [handoff.Handoff].
type Module struct {
	runtime    *goja.Runtime
	handoff    *handoff.Handoff
	logger     *logiface.Logger[logiface.Event]
	categories map[*iocontext.ErrorCategory]*goja.Object
}

// New creates a new [Module] bound to the given [goja.Runtime].
//
// New panics if runtime is nil. It returns an error if option validation
// fails or if no host was configured, see [WithHandoff] and [WithLoop].
func New(runtime *goja.Runtime, opts ...Option) (*Module, error) {
	if runtime == nil {
		panic("gojaio: runtime must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Module{
		runtime:    runtime,
		handoff:    cfg.handoff,
		logger:     cfg.logger,
		categories: make(map[*iocontext.ErrorCategory]*goja.Object),
	}, nil
}

// Runtime returns the [goja.Runtime] this module is bound to.
func (m *Module) Runtime() *goja.Runtime {
	return m.runtime
}

// Handoff returns the channel used to deliver completions to the host.
func (m *Module) Handoff() *handoff.Handoff {
	return m.handoff
}

// SetupExports wires the module's JS API onto the given exports object.
// This is equivalent to the setup performed by [Require] but allows
// external consumers to configure exports without the require() mechanism.
func (m *Module) SetupExports(exports *goja.Object) {
	m.setupExports(exports)
}

func (m *Module) setupExports(exports *goja.Object) {
	_ = exports.Set("IoContext", m.runtime.ToValue(m.jsNewIoContext))
	_ = exports.Set("ErrorCategory", m.runtime.ToValue(func(goja.ConstructorCall) *goja.Object {
		panic(m.runtime.NewTypeError("ErrorCategory is not constructible"))
	}))
	_ = exports.Set("ErrorCode", m.runtime.ToValue(m.jsNewErrorCode))
	_ = exports.Set("SystemTimer", m.runtime.ToValue(m.jsNewSystemTimer))
	_ = exports.Set("callAsync", m.runtime.ToValue(m.jsCallAsync))
	_ = exports.Set("systemCategory", m.categoryObject(iocontext.SystemCategory()))
	_ = exports.Set("genericCategory", m.categoryObject(iocontext.GenericCategory()))
	_ = exports.Set("miscCategory", m.categoryObject(iocontext.MiscCategory()))
	_ = exports.Set("operationAborted", m.errorCodeObject(iocontext.OperationAborted))
}

// invoke calls a JavaScript callback, logging anything it throws. It must
// be called on the host.
func (m *Module) invoke(fn goja.Callable, args ...goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		m.logger.Err().
			Err(err).
			Log("gojaio: callback threw")
	}
}

// callback extracts a required function argument.
func (m *Module) callback(v goja.Value, what string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(m.runtime.NewTypeError("%s must be a function", what))
	}
	return fn
}

// unwrap returns the Go value stored under key on a wrapper object.
func unwrap[T any](m *Module, v goja.Value, key, what string) T {
	if obj, ok := v.(*goja.Object); ok {
		if val := obj.Get(key); val != nil {
			if native, ok := val.Export().(T); ok {
				return native
			}
		}
	}
	panic(m.runtime.NewTypeError("%s expected", what))
}

// method sets a native method on obj.
func (m *Module) method(obj *goja.Object, name string, fn func(call goja.FunctionCall) goja.Value) {
	_ = obj.Set(name, m.runtime.ToValue(fn))
}

// getter defines a read-only accessor on obj.
func (m *Module) getter(obj *goja.Object, name string, fn func() any) {
	_ = obj.DefineAccessorProperty(name,
		m.runtime.ToValue(func(goja.FunctionCall) goja.Value {
			return m.runtime.ToValue(fn())
		}),
		nil,
		goja.FLAG_FALSE,
		goja.FLAG_TRUE,
	)
}
