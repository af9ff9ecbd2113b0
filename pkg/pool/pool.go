package pool

import (
	"context"
	"time"
)

// Pool is a fixed-size worker pool with strict FIFO delivery and
// producer backpressure. The worker count is fixed at construction and
// never changes for the pool's lifetime.
type Pool interface {
	// Submit queues a job for execution, blocking while the queue is at
	// capacity (backpressure). Returns ErrPoolClosed once shutdown has
	// begun and ErrNilJob for a nil job.
	Submit(job Job) error

	// TrySubmit queues a job without blocking.
	// Returns ErrPoolFull when the queue is at capacity.
	TrySubmit(job Job) error

	// MustSubmit is Submit with the fail-fast policy: any submission
	// failure terminates the process with a diagnostic. For callers that
	// treat submission failure as unrecoverable.
	MustSubmit(job Job)

	// Shutdown gracefully stops the pool: intake closes, queued jobs are
	// executed, and workers exit once the queue is empty. Blocks until
	// all workers have exited or ctx expires. Safe to call more than
	// once; later calls wait for the same shutdown.
	Shutdown(ctx context.Context) error

	// ShutdownNow stops the pool without executing queued jobs: intake
	// closes, the queue is drained, and workers exit after finishing
	// their current job. The drained, never-executed jobs are returned
	// to the caller rather than silently dropped.
	ShutdownNow() []Job

	// Stats returns a snapshot of pool counters.
	Stats() Stats

	// Workers returns the number of worker goroutines.
	Workers() int

	// IsRunning returns true until shutdown begins.
	IsRunning() bool
}

// Stats is a snapshot of pool activity
type Stats struct {
	Workers     int   // Worker goroutine count (fixed)
	Capacity    int   // Queue capacity
	Queued      int   // Jobs currently enqueued and awaiting a worker
	BusyWorkers int   // Workers currently executing a job
	Submitted   int64 // Total jobs accepted by Submit/TrySubmit
	Completed   int64 // Total jobs executed without error
	Failed      int64 // Total jobs whose Execute returned an error or panicked
	Rejected    int64 // Total TrySubmit rejections (backpressure)
	Drained     int64 // Total jobs removed unexecuted by ShutdownNow
}

// JobResult describes one finished job, delivered to the OnJobDone hook.
type JobResult struct {
	ID       string        // Job ID assigned at submission
	Name     string        // Job name
	Err      error         // Execution error, nil on success
	Wait     time.Duration // Time spent queued before a worker picked it up
	Duration time.Duration // Execution time
}

// Config configures a Pool
type Config struct {
	// Workers is the number of worker goroutines. Values below 1 are
	// clamped to 1.
	Workers int

	// QueueSize bounds the number of enqueued-but-undequeued jobs.
	// Values below 1 default to Workers, the classic bound where at most
	// one job may be queued per worker before submitters block.
	QueueSize int

	// Logger receives job failure reports. Defaults to a stderr logger.
	Logger Logger

	// OnJobDone, when set, is called after every job finishes (success,
	// error or panic). Called from the worker goroutine; keep it cheap.
	OnJobDone func(JobResult)
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 0, // defaults to Workers
	}
}
