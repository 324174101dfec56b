package gojaio

import (
	"testing"
	"time"

	"github.com/dop251/goja"
	gojarequire "github.com/dop251/goja_nodejs/require"
	iocontext "github.com/joeycumines/go-iocontext"
	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_nilRuntime(t *testing.T) {
	assert.PanicsWithValue(t, "gojaio: runtime must not be nil", func() {
		_, _ = New(nil)
	})
}

func TestNew_options(t *testing.T) {
	_, err := New(goja.New())
	assert.ErrorContains(t, err, "handoff is required")

	_, err = New(goja.New(), WithHandoff(nil))
	assert.ErrorContains(t, err, "handoff must not be nil")

	_, err = New(goja.New(), WithLoop(nil))
	assert.ErrorContains(t, err, "loop must not be nil")

	loop, err := handoff.NewLoop()
	require.NoError(t, err)
	m, err := New(goja.New(), WithLoop(loop))
	require.NoError(t, err)
	require.NotNil(t, m.Handoff())
	assert.Equal(t, handoff.Scheduler(loop), m.Handoff().Scheduler())
}

func TestRequire(t *testing.T) {
	queue := handoff.NewQueue()
	h, err := handoff.New(queue)
	require.NoError(t, err)

	runtime := goja.New()
	registry := gojarequire.NewRegistry()
	registry.RegisterNativeModule("iocontext", Require(WithHandoff(h)))
	registry.RegisterNativeModule("broken", Require())
	registry.Enable(runtime)

	v, err := runtime.RunString(`
		const io = require('iocontext');
		[typeof io.IoContext, typeof io.SystemTimer, typeof io.callAsync, io.genericCategory.name].join(',');
	`)
	require.NoError(t, err)
	assert.Equal(t, "function,function,function,generic", v.String())

	_, err = runtime.RunString(`require('broken')`)
	assert.ErrorContains(t, err, "handoff is required")
}

func TestErrorCode(t *testing.T) {
	env := newTestEnv(t)

	v := env.run(t, `
		var ec = new io.ErrorCode();
		[ec.value, ec.failed, ec.message, ec.category === io.genericCategory].join(',');
	`)
	assert.Equal(t, "0,false,Success,true", v.String())

	v = env.run(t, `
		ec.assign(2, io.miscCategory);
		[ec.value, ec.failed, ec.message, ec.category === io.miscCategory, ec.category.name].join(',');
	`)
	assert.Equal(t, "2,true,End of file,true,iocontext.misc", v.String())

	v = env.run(t, `
		var other = new io.ErrorCode(2, io.miscCategory);
		var sys = new io.ErrorCode(2, io.systemCategory);
		[ec.equals(other), ec.equals(sys), new io.ErrorCode().lessThan(ec), ec.lessThan(ec)].join(',');
	`)
	assert.Equal(t, "true,false,true,false", v.String())

	v = env.run(t, `ec.clear(); [ec.value, ec.failed, ec.category === io.genericCategory].join(',')`)
	assert.Equal(t, "0,false,true", v.String())

	v = env.run(t, `new io.ErrorCode(1).category.name`)
	assert.Equal(t, "generic", v.String())

	v = env.run(t, `String(new io.ErrorCode(3, io.miscCategory))`)
	assert.Equal(t, `ErrorCode(value=3, category=ErrorCategory(name="iocontext.misc"), message="Element not found")`, v.String())

	v = env.run(t, `[io.operationAborted.failed, io.operationAborted.category === io.systemCategory].join(',')`)
	assert.Equal(t, "true,true", v.String())

	v = env.run(t, `io.miscCategory.message(4)`)
	assert.Equal(t, "The descriptor does not fit into the select call's fd_set", v.String())

	assert.ErrorContains(t, env.mustFail(t, `new io.ErrorCategory()`), "not constructible")
	assert.ErrorContains(t, env.mustFail(t, `new io.ErrorCode(1, {})`), "ErrorCategory expected")
	assert.ErrorContains(t, env.mustFail(t, `ec.equals(1)`), "ErrorCode expected")
}

func TestIoContext_lifecycle(t *testing.T) {
	env := newTestEnv(t)

	v := env.run(t, `
		var ctx = new io.IoContext(2);
		var guard = ctx.createWorkGuard();
		var thread = ctx.startRunner('js');
		[ctx.concurrencyHint(), guard.ownsWork, thread.joinable, ctx.stopped].join(',');
	`)
	assert.Equal(t, "2,true,true,false", v.String())

	v = env.run(t, `
		guard.reset();
		thread.join();
		[guard.ownsWork, thread.joinable, ctx.stopped].join(',');
	`)
	assert.Equal(t, "false,false,true", v.String())

	v = env.run(t, `ctx.stopped = false; ctx.stopped`)
	assert.Equal(t, true, v.Export())

	assert.ErrorContains(t, env.mustFail(t, `thread.join()`), iocontext.ErrNotJoinable.Error())

	v = env.run(t, `ctx.restart(); [ctx.stopped, ctx.poll()].join(',')`)
	assert.Equal(t, "false,0", v.String())

	env.run(t, `ctx.shutdown(1)`)
	assert.ErrorContains(t, env.mustFail(t, `ctx.startRunner()`), iocontext.ErrContextClosed.Error())
	assert.ErrorContains(t, env.mustFail(t, `ctx.shutdown()`), iocontext.ErrContextClosed.Error())
}

// TestSystemTimer_callAsync waits on a timer from JavaScript, with the
// completion produced on a runner and delivered through the host queue.
func TestSystemTimer_callAsync(t *testing.T) {
	env := newTestEnv(t)

	p := env.run(t, `
		var ctx = new io.IoContext();
		var guard = ctx.createWorkGuard();
		var thread = ctx.startRunner();
		var timer = new io.SystemTimer(ctx, 0.01);
		io.callAsync(cb => timer.asyncWait(cb));
	`)
	ec := env.await(t, p, 5*time.Second).ToObject(env.runtime)
	assert.Equal(t, int64(0), ec.Get("value").ToInteger())
	assert.False(t, ec.Get("failed").ToBoolean())

	v := env.run(t, `guard.reset(); thread.join(); ctx.stopped`)
	assert.True(t, v.ToBoolean())
}

func TestSystemTimer_gather(t *testing.T) {
	env := newTestEnv(t)

	p := env.run(t, `
		var ctx = new io.IoContext(2);
		var guard = ctx.createWorkGuard();
		var threads = [ctx.startRunner(), ctx.startRunner()];
		var timers = [];
		for (var i = 0; i < 10; i++) {
			timers.push(new io.SystemTimer(ctx, Math.random() * 0.05));
		}
		Promise.all(timers.map(t => io.callAsync(cb => t.asyncWait(cb))))
			.then(codes => codes.map(ec => ec.value));
	`)
	values := env.await(t, p, 5*time.Second).Export()
	assert.Equal(t, []any{int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0)}, values)

	env.run(t, `guard.reset(); threads.forEach(t => t.join())`)
}

// TestSystemTimer_shutdownAborts checks a pending wait is completed with
// operationAborted, exactly once, when the context is shut down.
func TestSystemTimer_shutdownAborts(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, `
		var ctx = new io.IoContext();
		var timer = new io.SystemTimer(ctx, 3600);
		var calls = [];
		timer.asyncWait(ec => calls.push(ec));
		ctx.shutdown();
	`)
	require.Equal(t, 1, env.queue.Drain(0))

	v := env.run(t, `[calls.length, calls[0].equals(io.operationAborted)].join(',')`)
	assert.Equal(t, "1,true", v.String())

	assert.ErrorContains(t, env.mustFail(t, `timer.asyncWait(() => {})`), iocontext.ErrContextClosed.Error())
	assert.ErrorContains(t, env.mustFail(t, `timer.asyncWait()`), "onReady must be a function")
}

func TestSystemTimer_cancel(t *testing.T) {
	env := newTestEnv(t)

	v := env.run(t, `
		var ctx = new io.IoContext();
		var timer = new io.SystemTimer(ctx, 3600);
		var before = timer.expiry;
		var calls = [];
		timer.asyncWait(ec => calls.push(ec.failed));
		var canceled = timer.cancel();
		ctx.poll();
		[canceled, timer.expiresAfter(7200), timer.expiry > before].join(',');
	`)
	assert.Equal(t, "1,0,true", v.String())

	require.Equal(t, 1, env.queue.Drain(0))
	assert.Equal(t, "true", env.run(t, `calls.join(',')`).String())

	env.run(t, `timer.close(); timer.close()`)
	assert.ErrorContains(t, env.mustFail(t, `timer.asyncWait(() => {})`), iocontext.ErrTimerClosed.Error())
}

func TestSystemTimer_callbackThrows(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, `
		var ctx = new io.IoContext();
		var timer = new io.SystemTimer(ctx, 3600);
		timer.asyncWait(() => { throw new Error('from callback'); });
		timer.cancel();
		ctx.poll();
	`)
	require.Equal(t, 1, env.queue.Drain(0))
	assert.Contains(t, env.logs.String(), `"msg":"gojaio: callback threw"`)
	assert.Contains(t, env.logs.String(), `from callback`)
}

func TestCallAsync_results(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		name string
		code string
		want any
	}{
		{name: "none", code: `io.callAsync(cb => cb())`, want: nil},
		{name: "default", code: `io.callAsync(cb => cb(), {default: 'd'})`, want: "d"},
		{name: "single", code: `io.callAsync(cb => cb(5))`, want: int64(5)},
		{name: "packSingle", code: `io.callAsync(cb => cb(5), {packSingle: true})`, want: []any{int64(5)}},
		{name: "multiple", code: `io.callAsync(cb => cb(1, 'two'))`, want: []any{int64(1), "two"}},
		{name: "firstWins", code: `io.callAsync(cb => { cb('first'); cb('second'); })`, want: "first"},
		{name: "later", code: `var later; var p = io.callAsync(cb => { later = cb; }); later('late'); p`, want: "late"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := env.await(t, env.run(t, tc.code), time.Second)
			assert.Equal(t, tc.want, v.Export())
		})
	}
}

func TestCallAsync_startThrows(t *testing.T) {
	env := newTestEnv(t)

	p := env.settle(t, env.run(t, `io.callAsync(cb => { throw new TypeError('bad start'); })`), time.Second)
	require.Equal(t, goja.PromiseStateRejected, p.State())
	assert.Contains(t, p.Result().String(), "bad start")

	assert.ErrorContains(t, env.mustFail(t, `io.callAsync(1)`), "start must be a function")
}

// TestCallAsync_onLoop runs the module on a real [handoff.Loop], with all
// runtime access submitted to it.
func TestCallAsync_onLoop(t *testing.T) {
	loop, err := handoff.NewLoop()
	require.NoError(t, err)
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(t.Context()) }()

	runtime := goja.New()
	m, err := New(runtime, WithLoop(loop))
	require.NoError(t, err)

	result := make(chan string, 1)
	require.NoError(t, loop.Submit(func() {
		exports := runtime.NewObject()
		m.SetupExports(exports)
		_ = runtime.Set("io", exports)
		_ = runtime.Set("report", func(s string) { result <- s })
		_, err := runtime.RunString(`
			var ctx = new io.IoContext();
			var guard = ctx.createWorkGuard();
			var thread = ctx.startRunner();
			var timer = new io.SystemTimer(ctx, 0.01);
			io.callAsync(cb => timer.asyncWait(cb)).then(ec => {
				guard.reset();
				thread.join();
				report(ec.message);
			});
		`)
		assert.NoError(t, err)
	}))

	select {
	case s := <-result:
		assert.Equal(t, "Success", s)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	require.NoError(t, loop.Shutdown(t.Context()))
	assert.NoError(t, <-loopErr)
}
