package handoff

import (
	"context"
	"sync"
)

// Queue is a polled host: tasks are queued by Submit, from any goroutine,
// and run only when the owner calls Drain. It suits hosts that already have
// their own loop, and pump the queue from it.
type Queue struct {
	ready  chan struct{}
	tasks  []func()
	mu     sync.Mutex
	closed bool
}

// NewQueue returns an empty, open queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Submit queues task. It returns ErrQueueClosed after Close.
func (q *Queue) Submit(task func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Drain runs queued tasks on the calling goroutine, in order, returning the
// number run. If limit is positive, at most limit tasks are run. Tasks queued by
// running tasks are included. A panicking task propagates to the caller,
// leaving the remaining tasks queued.
func (q *Queue) Drain(limit int) int {
	var n int
	for limit <= 0 || n < limit {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			break
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		n++
		if task != nil {
			task()
		}
	}
	return n
}

// Wait blocks until a task is queued, the queue is closed, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		pending, closed := len(q.tasks) != 0, q.closed
		q.mu.Unlock()
		if pending {
			return nil
		}
		if closed {
			return ErrQueueClosed
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further submissions. Tasks already queued may still be
// drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}
