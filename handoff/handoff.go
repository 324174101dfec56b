// Package handoff delivers completions produced on arbitrary goroutines (such
// as iocontext runners) to a single-goroutine host scheduler, so that
// continuation logic only ever runs on the host.
//
// A [Handoff] collects ready completions under a lock, and keeps at most one
// flush task submitted to the host [Scheduler] at a time: completions that
// arrive while a flush is pending join its batch. [CallAsync] adapts a
// callback-style asynchronous operation into a [Future] settled by that
// flush.
//
// Two hosts are provided: [Loop], which owns a goroutine, and [Queue], which
// is drained by the caller.
package handoff

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Scheduler is a host that runs submitted tasks one at a time, on its own
// goroutine. Implemented by [Loop] and [Queue].
type Scheduler interface {
	Submit(task func()) error
}

// DropNotifier is implemented by a [Scheduler] that may discard a task it
// already accepted, such as a [Loop] shut down before it ran. dropped is
// called, at most once, with the reason. Handoff relies on it so a discarded
// flush fails its batch instead of blocking every later completion.
type DropNotifier interface {
	SubmitOrDrop(task func(), dropped func(err error)) error
}

// ready is a completion awaiting delivery.
type ready struct {
	// settle runs on the host
	settle func()
	// reject runs on the completing goroutine if the host is gone
	reject func(err error)
}

// Handoff is a thread-safe channel of completions into a [Scheduler].
type Handoff struct {
	sched  Scheduler
	logger *logiface.Logger[logiface.Event]

	ready []ready

	flushes atomic.Uint64

	mu sync.Mutex

	flushPending bool
}

// New returns a Handoff delivering to sched.
func New(sched Scheduler, opts ...Option) (*Handoff, error) {
	if sched == nil {
		return nil, ErrNilScheduler
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Handoff{
		sched:  sched,
		logger: cfg.logger,
	}, nil
}

// Scheduler returns the host.
func (h *Handoff) Scheduler() Scheduler {
	return h.sched
}

// Flushes returns the number of flush tasks run so far.
func (h *Handoff) Flushes() uint64 {
	return h.flushes.Load()
}

// Dispatch runs fn on the host, batched with any other completions pending
// delivery. It is safe to call from any goroutine. If the host has
// terminated, fn is dropped and the failure logged.
func (h *Handoff) Dispatch(fn func()) {
	h.post(ready{
		settle: fn,
		reject: func(err error) {
			h.logger.Warning().
				Err(err).
				Log("handoff: dropped completion, host unavailable")
		},
	})
}

func (h *Handoff) post(r ready) {
	h.mu.Lock()
	h.ready = append(h.ready, r)
	schedule := !h.flushPending
	h.flushPending = true
	h.mu.Unlock()

	if !schedule {
		return
	}

	var err error
	if d, ok := h.sched.(DropNotifier); ok {
		err = d.SubmitOrDrop(h.flush, h.rejectPending)
	} else {
		err = h.sched.Submit(h.flush)
	}
	if err != nil {
		h.rejectPending(err)
	}
}

// rejectPending fails every completion awaiting the flush that the host
// refused or discarded, allowing the next post to submit a new one.
func (h *Handoff) rejectPending(err error) {
	h.mu.Lock()
	batch := h.ready
	h.ready = nil
	h.flushPending = false
	h.mu.Unlock()

	for _, r := range batch {
		r.reject(err)
	}
}

// flush runs on the host, settling every completion posted so far.
// Completions posted while it runs schedule a new flush.
func (h *Handoff) flush() {
	h.mu.Lock()
	batch := h.ready
	h.ready = nil
	h.flushPending = false
	h.mu.Unlock()

	h.flushes.Add(1)

	for _, r := range batch {
		h.settle(r)
	}
}

func (h *Handoff) settle(r ready) {
	defer func() {
		if v := recover(); v != nil {
			h.logger.Err().
				Err(PanicError{Value: v}).
				Log("handoff: completion panicked")
		}
	}()
	r.settle()
}
