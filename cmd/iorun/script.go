package main

import (
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	iocontext "github.com/joeycumines/go-iocontext"
	"github.com/joeycumines/go-iocontext/gojaio"
	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/joeycumines/logiface"
)

// moduleName is the name scripts require the module by.
const moduleName = "iocontext"

// printer routes console output to the command's writers.
type printer struct {
	stdout io.Writer
	stderr io.Writer
}

func (p printer) Log(s string)   { _, _ = fmt.Fprintln(p.stdout, s) }
func (p printer) Warn(s string)  { _, _ = fmt.Fprintln(p.stderr, s) }
func (p printer) Error(s string) { _, _ = fmt.Fprintln(p.stderr, s) }

// evaluate runs the script, and must be called on the host loop. settle is
// called once the script has finished: immediately, or when the Promise it
// evaluated to settles.
func evaluate(
	logger *logiface.Logger[logiface.Event],
	h *handoff.Handoff,
	ioc *iocontext.IoContext,
	path, source string,
	stdout, stderr io.Writer,
	settle func(err error),
) {
	runtime := goja.New()

	m, err := gojaio.New(runtime, gojaio.WithHandoff(h), gojaio.WithLogger(logger))
	if err != nil {
		settle(err)
		return
	}

	registry := require.NewRegistry()
	registry.RegisterNativeModule(moduleName, func(_ *goja.Runtime, module *goja.Object) {
		m.SetupExports(module.Get("exports").(*goja.Object))
	})
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{stdout: stdout, stderr: stderr}))
	registry.Enable(runtime)
	console.Enable(runtime)
	_ = runtime.Set("ioContext", m.IoContextObject(ioc))

	program, err := goja.Compile(path, source, false)
	if err != nil {
		settle(fmt.Errorf("iorun: %w", err))
		return
	}
	value, err := runtime.RunProgram(program)
	if err != nil {
		settle(fmt.Errorf("iorun: %w", err))
		return
	}

	promise, ok := value.(*goja.Object)
	if !ok {
		settle(nil)
		return
	}
	if _, ok := promise.Export().(*goja.Promise); !ok {
		settle(nil)
		return
	}

	then, _ := goja.AssertFunction(promise.Get("then"))
	_, err = then(promise,
		runtime.ToValue(func(goja.FunctionCall) goja.Value {
			settle(nil)
			return goja.Undefined()
		}),
		runtime.ToValue(func(call goja.FunctionCall) goja.Value {
			settle(fmt.Errorf("iorun: script rejected: %s", call.Argument(0)))
			return goja.Undefined()
		}),
	)
	if err != nil {
		settle(fmt.Errorf("iorun: %w", err))
	}
}
