package gojaio

import (
	"github.com/dop251/goja"
	iocontext "github.com/joeycumines/go-iocontext"
)

const (
	categoryKey  = "_errorCategory"
	errorCodeKey = "_errorCode"
)

// errorCodeHolder is the mutable state behind a JS ErrorCode.
type errorCodeHolder struct {
	ec iocontext.ErrorCode
}

// categoryObject returns the JS object for c, the same object for every
// call, so that categories compare by identity.
func (m *Module) categoryObject(c *iocontext.ErrorCategory) *goja.Object {
	if obj, ok := m.categories[c]; ok {
		return obj
	}

	obj := m.runtime.NewObject()
	_ = obj.Set(categoryKey, c)
	_ = obj.Set("name", c.Name())
	m.method(obj, "message", func(call goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(c.Message(int(call.Argument(0).ToInteger())))
	})
	m.method(obj, "toString", func(goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(c.String())
	})
	m.categories[c] = obj
	return obj
}

// toCategory converts a JS ErrorCategory, defaulting to the generic category
// when v is undefined.
func (m *Module) toCategory(v goja.Value) *iocontext.ErrorCategory {
	if v == nil || goja.IsUndefined(v) {
		return iocontext.GenericCategory()
	}
	return unwrap[*iocontext.ErrorCategory](m, v, categoryKey, "ErrorCategory")
}

// toErrorCode converts a JS ErrorCode.
func (m *Module) toErrorCode(v goja.Value) iocontext.ErrorCode {
	return unwrap[*errorCodeHolder](m, v, errorCodeKey, "ErrorCode").ec
}

// jsNewErrorCode implements `new ErrorCode()` and
// `new ErrorCode(value, category?)`.
func (m *Module) jsNewErrorCode(call goja.ConstructorCall) *goja.Object {
	var ec iocontext.ErrorCode
	if len(call.Arguments) > 0 {
		ec = iocontext.NewErrorCode(int(call.Argument(0).ToInteger()), m.toCategory(call.Argument(1)))
	}
	return m.errorCodeObject(ec)
}

func (m *Module) errorCodeObject(ec iocontext.ErrorCode) *goja.Object {
	holder := &errorCodeHolder{ec: ec}
	obj := m.runtime.NewObject()
	_ = obj.Set(errorCodeKey, holder)

	m.getter(obj, "value", func() any { return holder.ec.Value() })
	m.getter(obj, "category", func() any { return m.categoryObject(holder.ec.Category()) })
	m.getter(obj, "message", func() any { return holder.ec.Message() })
	m.getter(obj, "failed", func() any { return holder.ec.Failed() })

	m.method(obj, "assign", func(call goja.FunctionCall) goja.Value {
		category := m.toCategory(call.Argument(1))
		holder.ec.Assign(int(call.Argument(0).ToInteger()), category)
		return goja.Undefined()
	})
	m.method(obj, "clear", func(goja.FunctionCall) goja.Value {
		holder.ec.Clear()
		return goja.Undefined()
	})
	m.method(obj, "equals", func(call goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(holder.ec.Equal(m.toErrorCode(call.Argument(0))))
	})
	m.method(obj, "lessThan", func(call goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(holder.ec.Less(m.toErrorCode(call.Argument(0))))
	})
	m.method(obj, "toString", func(goja.FunctionCall) goja.Value {
		return m.runtime.ToValue(holder.ec.String())
	})

	return obj
}
