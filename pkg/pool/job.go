package pool

import (
	"context"

	"github.com/taskwellio/taskwell/pkg/failfast"
)

// Job represents a unit of work submitted to the pool
// A job is executed exactly once, by exactly one worker, then released
type Job interface {
	// Execute performs the job's work
	// ctx provides cancellation and timeout support
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the job (for logging/debugging)
	Name() string
}

// JobFunc is a function type that implements Job
// Allows closures to be used as jobs without creating a struct;
// the closure carries the job's argument
type JobFunc func(ctx context.Context) error

// Execute implements Job interface for JobFunc
func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name returns a default name for JobFunc
func (f JobFunc) Name() string {
	return "JobFunc"
}

// NamedJob wraps a JobFunc with a custom name
type NamedJob struct {
	name string
	fn   JobFunc
}

// NewNamedJob creates a new NamedJob
func NewNamedJob(name string, fn JobFunc) *NamedJob {
	failfast.NotNil(fn, "fn")
	return &NamedJob{
		name: name,
		fn:   fn,
	}
}

// Execute implements Job interface
func (nj *NamedJob) Execute(ctx context.Context) error {
	return nj.fn(ctx)
}

// Name returns the job name
func (nj *NamedJob) Name() string {
	return nj.name
}

// IdentifiedJob is a Job that carries its own identifier. The pool adopts
// the carried ID instead of assigning a fresh one, so a caller-issued
// request ID follows the job through results and journal entries.
type IdentifiedJob interface {
	Job

	// ID returns the job's identifier
	ID() string
}

// WithID attaches an identifier to a job. Submission surfaces use this to
// make the pool report the job under the ID they already handed the caller.
func WithID(id string, job Job) Job {
	failfast.If(id != "", "id must not be empty")
	failfast.NotNil(job, "job")
	return &identifiedJob{id: id, job: job}
}

type identifiedJob struct {
	id  string
	job Job
}

func (ij *identifiedJob) Execute(ctx context.Context) error {
	return ij.job.Execute(ctx)
}

func (ij *identifiedJob) Name() string {
	return ij.job.Name()
}

func (ij *identifiedJob) ID() string {
	return ij.id
}
