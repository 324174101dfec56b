package handoff

import (
	"sync/atomic"
)

// LoopState represents the current state of a [Loop].
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)        [Run()]
//	StateRunning (3) → StateSleeping (2)     [idle, via CAS]
//	StateSleeping (2) → StateRunning (3)     [woken, via CAS]
//	StateRunning/Sleeping → StateTerminating (4) [Shutdown(), Close(), ctx done]
//	StateAwake (0) → StateTerminated (1)     [Shutdown() before Run()]
//	StateTerminating (4) → StateTerminated (1) [queue drained]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary states, and Store only for
// StateTerminated.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has drained and stopped.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is idle, waiting for tasks.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding.
type fastState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // LoopState
	_ [56]byte      //nolint:unused
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
