// Package gojaio exposes iocontext to JavaScript running in a
// [github.com/dop251/goja] runtime.
//
// The runtime is owned by a host scheduler (see the handoff package), and
// every JavaScript callback runs there. Completions produced by reactor
// runners are carried to the host by a [handoff.Handoff], so runners never
// touch the runtime.
//
// JavaScript API:
//
//	const io = require('iocontext');
//
//	const ctx = new io.IoContext();
//	const guard = ctx.createWorkGuard();
//	const thread = ctx.startRunner();
//
//	const timer = new io.SystemTimer(ctx, 0.5);
//	const ec = await io.callAsync(cb => timer.asyncWait(cb));
//	console.log(ec.value, ec.message); // 0 Success
//
//	guard.reset();
//	thread.join();
//
// Exports:
//   - IoContext: stopped, stop, restart, poll, pollOne, createWorkGuard,
//     startRunner, shutdown, concurrencyHint
//   - ErrorCategory: not constructible, see the systemCategory,
//     genericCategory, and miscCategory exports
//   - ErrorCode: value, category, message, failed, assign, clear, equals,
//     lessThan, toString
//   - SystemTimer: asyncWait, cancel, expiresAfter, expiry, close
//   - callAsync: adapts a callback-style operation into a Promise
//   - operationAborted: the ErrorCode passed to cancelled waits
package gojaio
