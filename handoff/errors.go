package handoff

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("handoff: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("handoff: loop has been terminated")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("handoff: cannot call Run() from within the loop")

	// ErrQueueClosed is returned when tasks are submitted to a closed Queue.
	ErrQueueClosed = errors.New("handoff: queue has been closed")

	// ErrCanceled is the error of a Future canceled before it settled.
	ErrCanceled = errors.New("handoff: future canceled")

	// ErrNilScheduler is returned by New if no scheduler is provided.
	ErrNilScheduler = errors.New("handoff: scheduler must not be nil")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("handoff: task panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
