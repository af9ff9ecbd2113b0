package pool

import (
	"sync"
	"time"

	"github.com/taskwellio/taskwell/pkg/failfast"
)

// queuedJob is a job accepted by Submit, with the bookkeeping the pool
// attaches before it enters the queue.
type queuedJob struct {
	id       string
	job      Job
	enqueued time.Time
}

// boundedQueue is a bounded blocking FIFO over a jobDeque.
// A single mutex plus two condition variables replace the classic
// mutex + slots-empty + jobs-stored semaphore triple while keeping the
// same contract: put blocks at capacity (producer backpressure), take
// blocks when empty, and close wakes every waiter so blocked workers
// and submitters can observe shutdown. The closed flag is mutated under
// the same mutex that guards the waits, so its visibility is ordered
// before the wakeups.
type boundedQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	deque    *jobDeque
	capacity int
	closed   bool
}

func newBoundedQueue(capacity int) *boundedQueue {
	// New normalizes the configured size before it reaches here
	failfast.If(capacity >= 1, "queue capacity must be positive, got %d", capacity)
	q := &boundedQueue{
		deque:    newJobDeque(capacity),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// put appends qj, blocking while the queue is at capacity.
// Returns ErrPoolClosed if the queue is closed before or while waiting.
func (q *boundedQueue) put(qj *queuedJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.deque.len() == q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrPoolClosed
	}

	q.deque.pushBack(qj)
	q.notEmpty.Signal()
	return nil
}

// tryPut appends qj without blocking.
// Returns ErrPoolFull at capacity, ErrPoolClosed after close.
func (q *boundedQueue) tryPut(qj *queuedJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrPoolClosed
	}
	if q.deque.len() == q.capacity {
		return ErrPoolFull
	}

	q.deque.pushBack(qj)
	q.notEmpty.Signal()
	return nil
}

// take removes and returns the oldest job, blocking while the queue is
// empty. Returns ok=false only when the queue is closed and empty: a
// closed queue still serves remaining items, so workers drain queued
// work before exiting. The close broadcast wakes blocked takers, which
// re-check the closed flag before giving up.
func (q *boundedQueue) take() (*queuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.deque.len() == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	qj, ok := q.deque.popFront()
	if !ok {
		// closed and empty
		return nil, false
	}
	q.notFull.Signal()
	return qj, true
}

// close marks the queue closed and wakes every blocked waiter. Idempotent.
func (q *boundedQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// drain removes all remaining items without executing them.
// Idempotent on an empty queue.
func (q *boundedQueue) drain() []*queuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.deque.drain()
	q.notFull.Broadcast()
	return out
}

func (q *boundedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deque.len()
}

func (q *boundedQueue) cap() int {
	return q.capacity
}
