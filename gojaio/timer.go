package gojaio

import (
	"github.com/dop251/goja"
	iocontext "github.com/joeycumines/go-iocontext"
)

const timerKey = "_timer"

// jsNewSystemTimer implements `new SystemTimer(ioContext, seconds)`.
func (m *Module) jsNewSystemTimer(call goja.ConstructorCall) *goja.Object {
	c := m.toIoContext(call.Argument(0))
	t := iocontext.NewTimer(c, seconds(call.Argument(1)))
	return m.timerObject(t)
}

func (m *Module) timerObject(t *iocontext.Timer) *goja.Object {
	obj := m.runtime.NewObject()
	_ = obj.Set(timerKey, t)

	// asyncWait(onReady) calls onReady(errorCode) on the host, exactly once
	m.method(obj, "asyncWait", func(call goja.FunctionCall) goja.Value {
		onReady := m.callback(call.Argument(0), "asyncWait: onReady")
		err := t.AsyncWait(func(ec iocontext.ErrorCode) {
			// runs on a runner, or the goroutine shutting the context down
			m.handoff.Dispatch(func() {
				m.invoke(onReady, m.errorCodeObject(ec))
			})
		})
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	})
	m.method(obj, "cancel", func(goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(t.Cancel())
	})
	m.method(obj, "expiresAfter", func(call goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(t.ExpiresAfter(seconds(call.Argument(0))))
	})
	m.getter(obj, "expiry", func() any {
		// milliseconds since the epoch, as accepted by Date
		return t.Expiry().UnixMilli()
	})
	m.method(obj, "close", func(goja.FunctionCall) goja.Value {
		_ = t.Close()
		return goja.Undefined()
	})

	return obj
}
