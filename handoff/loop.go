package handoff

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-iocontext/internal/goroutineid"
	"github.com/joeycumines/logiface"
)

var loopIDs atomic.Uint64

// Loop is a single-goroutine cooperative scheduler: the host that owns any
// state which must not be touched concurrently (e.g. a JavaScript runtime).
// Tasks run one at a time, in submission order, on the goroutine that
// called [Loop.Run].
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	state *fastState

	// Loop termination signaling
	loopDone chan struct{}

	// wake is signaled (non-blocking) whenever a task is queued
	wake chan struct{}

	// queued tasks, guarded by mu
	tasks []loopTask

	// batch is reused between ticks to avoid allocation
	batch []loopTask

	stopOnce sync.Once

	loopGoroutineID atomic.Uint64

	mu sync.Mutex

	id uint64

	unlockOSThread bool
}

type loopTask struct {
	run func()
	// dropped is called if the loop terminates without running the task
	dropped func(err error)
}

// NewLoop creates a loop in the Awake state.
func NewLoop(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		logger:         cfg.logger,
		state:          &fastState{},
		loopDone:       make(chan struct{}),
		wake:           make(chan struct{}, 1),
		id:             loopIDs.Add(1),
		unlockOSThread: cfg.unlockOSThread,
	}, nil
}

// Run runs the loop and blocks until fully stopped.
//
// Run blocks until the loop terminates (via Shutdown(), Close(), or ctx
// cancellation), in all cases running every task submitted before it
// terminated. To run in a separate goroutine, use: `go loop.Run(ctx)`.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		switch l.state.Load() {
		case StateTerminated, StateTerminating:
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	defer close(l.loopDone)

	return l.run(ctx)
}

// Submit queues task to run on the loop goroutine. It is safe to call from
// any goroutine, including the loop itself.
//
// Submit succeeds until the loop has terminated, including while it is
// terminating, so in-flight completions are not lost.
func (l *Loop) Submit(task func()) error {
	return l.SubmitOrDrop(task, nil)
}

// SubmitOrDrop is like [Loop.Submit], except dropped is called with
// ErrLoopTerminated if the loop accepts task but terminates without ever
// running it, as happens when a loop is shut down before [Loop.Run].
// dropped runs on the goroutine that terminated the loop.
func (l *Loop) SubmitOrDrop(task func(), dropped func(err error)) error {
	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.tasks = append(l.tasks, loopTask{run: task, dropped: dropped})
	l.mu.Unlock()

	l.signal()
	return nil
}

// Shutdown gracefully shuts down the loop, waiting for queued tasks to
// complete. It blocks until termination completes or ctx expires. A loop
// that was never run terminates immediately, discarding queued tasks (see
// [Loop.SubmitOrDrop]).
func (l *Loop) Shutdown(ctx context.Context) error {
	var result error
	l.stopOnce.Do(func() {
		result = l.shutdownImpl(ctx)
	})
	if result == nil && l.state.Load() != StateTerminated {
		// a previous call is still waiting, or timed out
		select {
		case <-l.loopDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return result
}

func (l *Loop) shutdownImpl(ctx context.Context) error {
	if l.requestTermination() {
		return nil
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests termination without waiting for it. Queued tasks are still
// run by the loop goroutine before Run returns.
func (l *Loop) Close() error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	l.requestTermination()
	return nil
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// State returns the current state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// requestTermination transitions to StateTerminating, or straight to
// StateTerminated if the loop was never run, returning true for the latter.
func (l *Loop) requestTermination() bool {
	for {
		current := l.state.Load()
		switch current {
		case StateTerminated, StateTerminating:
			return false
		}
		if !l.state.TryTransition(current, StateTerminating) {
			continue
		}
		if current == StateAwake {
			l.mu.Lock()
			discarded := l.tasks
			l.tasks = nil
			l.state.Store(StateTerminated)
			l.mu.Unlock()
			close(l.loopDone)
			l.drop(discarded)
			return true
		}
		l.signal()
		return false
	}
}

// drop notifies the submitters of tasks that will never run.
func (l *Loop) drop(tasks []loopTask) {
	var n int
	for _, task := range tasks {
		if task.dropped == nil {
			continue
		}
		n++
		l.safeExecute(func() { task.dropped(ErrLoopTerminated) })
	}
	if len(tasks) != 0 {
		l.logger.Debug().
			Uint64("loop", l.id).
			Int("discarded", len(tasks)).
			Int("notified", n).
			Log("handoff: loop terminated before running")
	}
}

func (l *Loop) run(ctx context.Context) error {
	if !l.unlockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	l.loopGoroutineID.Store(goroutineid.Get())
	defer l.loopGoroutineID.Store(0)

	l.logger.Debug().
		Uint64("loop", l.id).
		Log("handoff: loop started")

	for {
		select {
		case <-ctx.Done():
			l.requestTermination()
			l.shutdown()
			return ctx.Err()
		default:
		}

		if l.state.Load() == StateTerminating {
			l.shutdown()
			return nil
		}

		if l.tick() {
			continue
		}

		// idle
		if !l.state.TryTransition(StateRunning, StateSleeping) {
			continue
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
		}
		l.state.TryTransition(StateSleeping, StateRunning)
	}
}

// tick runs every task queued at its start, returning false if there were
// none.
func (l *Loop) tick() bool {
	l.mu.Lock()
	l.batch, l.tasks = l.tasks, l.batch[:0]
	batch := l.batch
	l.mu.Unlock()

	if len(batch) == 0 {
		return false
	}
	for i, task := range batch {
		batch[i] = loopTask{}
		l.safeExecute(task.run)
	}
	return true
}

// shutdown drains the queue until it is observed empty while transitioning
// to StateTerminated, so that no accepted task is lost.
func (l *Loop) shutdown() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.state.Store(StateTerminated)
			l.mu.Unlock()
			break
		}
		l.mu.Unlock()
		l.tick()
	}

	l.logger.Debug().
		Uint64("loop", l.id).
		Log("handoff: loop terminated")
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(task func()) {
	if task == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Err(PanicError{Value: r}).
				Uint64("loop", l.id).
				Log("handoff: task panicked")
		}
	}()

	task()
}

// IsLoopThread reports whether the caller is running on the loop goroutine.
func (l *Loop) IsLoopThread() bool {
	return l.isLoopThread()
}

func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return goroutineid.Get() == loopID
}
