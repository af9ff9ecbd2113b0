package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a pool whose shutdown has begun
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolFull is returned by TrySubmit when the queue is at capacity (backpressure)
	ErrPoolFull = errors.New("pool queue is full")

	// ErrNilJob is returned when a nil job is submitted
	ErrNilJob = errors.New("job cannot be nil")
)
