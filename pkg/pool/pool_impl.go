package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskwellio/taskwell/pkg/failfast"
)

// defaultPool implements Pool
type defaultPool struct {
	queue   *boundedQueue
	workers int
	wg      sync.WaitGroup
	running int32 // Atomic flag
	logger  Logger
	onDone  func(JobResult)

	// Metrics (atomic for thread-safety)
	submitted int64
	completed int64
	failed    int64
	rejected  int64
	drained   int64
	busy      int64
}

// New creates a pool and spawns exactly cfg.Workers workers.
// The returned pool is running and accepts submissions immediately.
func New(cfg Config) Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.Logger == nil {
		cfg.Logger = newDefaultLogger()
	}

	p := &defaultPool{
		queue:   newBoundedQueue(cfg.QueueSize),
		workers: cfg.Workers,
		running: 1,
		logger:  cfg.Logger,
		onDone:  cfg.OnJobDone,
	}

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}

	return p
}

// worker is the consume loop: take a job (suspending while none is
// available), execute it outside the queue lock, report, repeat. A
// false ok from take means the pool is shutting down and the queue has
// nothing left to serve.
func (p *defaultPool) worker(id int) {
	defer p.wg.Done()

	for {
		qj, ok := p.queue.take()
		if !ok {
			return
		}

		atomic.AddInt64(&p.busy, 1)
		start := time.Now()
		err := p.execute(qj)
		duration := time.Since(start)
		atomic.AddInt64(&p.busy, -1)

		if err != nil {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Errorf("worker %d: job %s (%s) failed: %v", id, qj.job.Name(), qj.id, err)
		} else {
			atomic.AddInt64(&p.completed, 1)
		}

		if p.onDone != nil {
			p.onDone(JobResult{
				ID:       qj.id,
				Name:     qj.job.Name(),
				Err:      err,
				Wait:     start.Sub(qj.enqueued),
				Duration: duration,
			})
		}
	}
}

// execute runs one job, converting a panic into an error so a
// misbehaving job cannot kill its worker.
func (p *defaultPool) execute(qj *queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return qj.job.Execute(context.Background())
}

// Submit implements Pool interface
func (p *defaultPool) Submit(job Job) error {
	qj, err := p.accept(job)
	if err != nil {
		return err
	}
	if err := p.queue.put(qj); err != nil {
		return err
	}
	atomic.AddInt64(&p.submitted, 1)
	return nil
}

// TrySubmit implements Pool interface
func (p *defaultPool) TrySubmit(job Job) error {
	qj, err := p.accept(job)
	if err != nil {
		return err
	}
	if err := p.queue.tryPut(qj); err != nil {
		if err == ErrPoolFull {
			atomic.AddInt64(&p.rejected, 1)
		}
		return err
	}
	atomic.AddInt64(&p.submitted, 1)
	return nil
}

// MustSubmit implements Pool interface
func (p *defaultPool) MustSubmit(job Job) {
	if err := p.Submit(job); err != nil {
		failfast.Exitf("pool submit: %v", err)
	}
}

// accept validates the job and wraps it with its submission bookkeeping.
// A job that carries its own ID keeps it; anything else gets a fresh one.
func (p *defaultPool) accept(job Job) (*queuedJob, error) {
	if job == nil {
		return nil, ErrNilJob
	}
	if atomic.LoadInt32(&p.running) == 0 {
		return nil, ErrPoolClosed
	}
	id := ""
	if ij, ok := job.(IdentifiedJob); ok {
		id = ij.ID()
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &queuedJob{
		id:       id,
		job:      job,
		enqueued: time.Now(),
	}, nil
}

// Shutdown implements Pool interface
func (p *defaultPool) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&p.running, 0)
	p.queue.close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// ShutdownNow implements Pool interface
func (p *defaultPool) ShutdownNow() []Job {
	atomic.StoreInt32(&p.running, 0)
	p.queue.close()

	remaining := p.queue.drain()
	atomic.AddInt64(&p.drained, int64(len(remaining)))

	p.wg.Wait()

	jobs := make([]Job, 0, len(remaining))
	for _, qj := range remaining {
		// Preserve the pool's ID so callers can journal the drained job
		// under the same identifier its accepted entry used.
		jobs = append(jobs, WithID(qj.id, qj.job))
	}
	return jobs
}

// Stats implements Pool interface
func (p *defaultPool) Stats() Stats {
	return Stats{
		Workers:     p.workers,
		Capacity:    p.queue.cap(),
		Queued:      p.queue.len(),
		BusyWorkers: int(atomic.LoadInt64(&p.busy)),
		Submitted:   atomic.LoadInt64(&p.submitted),
		Completed:   atomic.LoadInt64(&p.completed),
		Failed:      atomic.LoadInt64(&p.failed),
		Rejected:    atomic.LoadInt64(&p.rejected),
		Drained:     atomic.LoadInt64(&p.drained),
	}
}

// Workers implements Pool interface
func (p *defaultPool) Workers() int {
	return p.workers
}

// IsRunning implements Pool interface
func (p *defaultPool) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}
