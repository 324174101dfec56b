package gojaio

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv is a runtime hosted by a [handoff.Queue], which the test goroutine
// drains, so the test goroutine is the host.
type testEnv struct {
	runtime *goja.Runtime
	queue   *handoff.Queue
	module  *Module
	logs    *syncBuffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	var logs syncBuffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&logs), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	queue := handoff.NewQueue()
	h, err := handoff.New(queue, handoff.WithLogger(logger))
	require.NoError(t, err)

	runtime := goja.New()
	m, err := New(runtime, WithHandoff(h), WithLogger(logger))
	require.NoError(t, err)

	exports := runtime.NewObject()
	m.SetupExports(exports)
	require.NoError(t, runtime.Set("io", exports))

	return &testEnv{
		runtime: runtime,
		queue:   queue,
		module:  m,
		logs:    &logs,
	}
}

// run executes JS code synchronously on the runtime.
func (e *testEnv) run(t *testing.T, code string) goja.Value {
	t.Helper()
	v, err := e.runtime.RunString(code)
	require.NoError(t, err)
	return v
}

// mustFail runs JS code and asserts that it throws an exception.
func (e *testEnv) mustFail(t *testing.T, code string) error {
	t.Helper()
	_, err := e.runtime.RunString(code)
	require.Error(t, err)
	return err
}

// settle drains the host queue until the promise v is no longer pending.
func (e *testEnv) settle(t *testing.T, v goja.Value, timeout time.Duration) *goja.Promise {
	t.Helper()
	p, ok := v.Export().(*goja.Promise)
	require.True(t, ok, "expected a promise, got %T", v.Export())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for p.State() == goja.PromiseStatePending {
		require.NoError(t, e.queue.Wait(ctx), "timeout waiting for promise")
		e.queue.Drain(0)
	}
	return p
}

// await settles v, requiring it to fulfill, and returns the result.
func (e *testEnv) await(t *testing.T, v goja.Value, timeout time.Duration) goja.Value {
	t.Helper()
	p := e.settle(t, v, timeout)
	require.Equal(t, goja.PromiseStateFulfilled, p.State(), "rejected: %v", p.Result())
	return p.Result()
}
