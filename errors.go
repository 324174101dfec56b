package iocontext

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrContextClosed is returned when work is submitted to an IoContext
	// after Shutdown.
	ErrContextClosed = errors.New("iocontext: context has been shut down")

	// ErrReentrantShutdown is returned when Shutdown is called from a handler
	// running on the context being shut down.
	ErrReentrantShutdown = errors.New("iocontext: cannot call Shutdown() from within a handler")

	// ErrNotJoinable is returned by Runner.Join and Runner.Detach once the
	// runner has already been joined or detached.
	ErrNotJoinable = errors.New("iocontext: runner is not joinable")

	// ErrJoinSelf is returned when a runner attempts to join itself, which
	// would deadlock.
	ErrJoinSelf = errors.New("iocontext: resource deadlock would occur")

	// ErrTimerClosed is returned when operations are attempted on a closed
	// Timer.
	ErrTimerClosed = errors.New("iocontext: timer has been closed")

	// ErrNilHandler is returned when a nil completion handler is supplied.
	ErrNilHandler = errors.New("iocontext: handler must not be nil")
)

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("iocontext: handler panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
