// Package iocontext provides a small completion-queue reactor: an executor
// context, keep-alive work guards, runner threads, error codes, and a timer
// completion source, plus (in subpackages) a handoff that moves completions
// onto a single-goroutine host scheduler.
//
// # Architecture
//
// An [IoContext] owns a run queue of pending completion handlers and an
// outstanding work count. The count covers every live [WorkGuard], every
// pending asynchronous operation (e.g. [Timer.AsyncWait]), and every queued
// handler. When it reaches zero the context stops itself, and every
// [IoContext.Run] call returns.
//
// [Runner] goroutines are locked to an OS thread and each call
// [IoContext.Run] exactly once. Any number of runners may drain the same
// context concurrently; handlers then run first-ready-first-run, with no
// ordering across distinct operations.
//
// Asynchronous outcomes are delivered only as an [ErrorCode] argument to the
// completion handler. A zero code means success; [OperationAborted] means the
// operation was canceled by [Timer.Cancel], [Timer.Close], [IoContext.Stop],
// or [IoContext.Shutdown]. Handler panics are recovered and logged, and never
// propagate into the runner.
//
// # Lifecycle
//
//	StartRunner / Run -> (work count reaches 0 | Stop) -> stopped
//	stopped -> Restart -> Run again
//	any -> Shutdown -> closed (terminal)
//
// [IoContext.Shutdown] cancels pending waits, joins the runners it started,
// and invokes every handler still in the queue exactly once, on the calling
// goroutine. Afterwards new work is rejected with [ErrContextClosed].
//
// # Usage
//
//	ctx, err := iocontext.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timer := iocontext.NewTimer(ctx, 100*time.Millisecond)
//	_ = timer.AsyncWait(func(ec iocontext.ErrorCode) {
//	    fmt.Println("fired:", ec.Message())
//	})
//	runner, err := ctx.StartRunner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = runner.Join()
//
// See the handoff package for delivering completions to a single-threaded
// host, and gojaio for the JavaScript binding.
package iocontext
