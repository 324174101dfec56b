package iocontext

import (
	"sync"
)

// handlerChunkSize is the number of handlers per node in the run queue.
const handlerChunkSize = 128

// runQueue is a chunked linked-list FIFO of ready handlers.
//
// Thread Safety: NOT thread-safe. The IoContext mutex guards every call.
type runQueue struct { // betteralign:ignore
	head   *handlerChunk
	tail   *handlerChunk
	length int
}

var handlerChunkPool = sync.Pool{
	New: func() any {
		return &handlerChunk{}
	},
}

// handlerChunk is a fixed-size node, read at readPos and written at pos.
type handlerChunk struct {
	handlers [handlerChunkSize]func()
	next     *handlerChunk
	readPos  int
	pos      int
}

func newHandlerChunk() *handlerChunk {
	c := handlerChunkPool.Get().(*handlerChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// releaseHandlerChunk clears retained closures and returns c to the pool.
func releaseHandlerChunk(c *handlerChunk) {
	for i := 0; i < c.pos; i++ {
		c.handlers[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	handlerChunkPool.Put(c)
}

// push appends fn.
//
// CALLER MUST HOLD THE CONTEXT MUTEX.
func (q *runQueue) push(fn func()) {
	if q.tail == nil {
		q.tail = newHandlerChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.handlers) {
		next := newHandlerChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.handlers[q.tail.pos] = fn
	q.tail.pos++
	q.length++
}

// pop removes the oldest handler, returning false if the queue is empty.
//
// CALLER MUST HOLD THE CONTEXT MUTEX.
func (q *runQueue) pop() (func(), bool) {
	if q.head == nil || q.length == 0 {
		return nil, false
	}

	if q.head.readPos >= q.head.pos {
		// exhausted, and length > 0 means there is a next chunk
		old := q.head
		q.head = q.head.next
		releaseHandlerChunk(old)
	}

	fn := q.head.handlers[q.head.readPos]
	q.head.handlers[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			old := q.head
			q.head = q.head.next
			releaseHandlerChunk(old)
		}
	}

	return fn, true
}

// len returns the number of queued handlers.
//
// CALLER MUST HOLD THE CONTEXT MUTEX.
func (q *runQueue) len() int {
	return q.length
}
