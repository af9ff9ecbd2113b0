package journal

import (
	"context"
	"time"

	"github.com/taskwellio/taskwell/pkg/failfast"
	"github.com/taskwellio/taskwell/pkg/pool"
)

// Status values recorded in journal entries
const (
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDrained   = "drained"
)

// Entry is one job lifecycle record
type Entry struct {
	JobID    string
	Name     string
	Source   string // gateway, nats, local
	Status   string
	Queued   time.Time
	Started  time.Time
	Finished time.Time
	Error    string
}

// Journal records job lifecycle entries for audit.
// Implementations must be safe for concurrent use.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Hook adapts a journal to pool.Config.OnJobDone: every finished job is
// recorded with its outcome. Record failures are reported to logf and
// never affect the pool.
func Hook(j Journal, source string, logf func(format string, args ...interface{})) func(pool.JobResult) {
	failfast.NotNil(j, "journal")
	return func(r pool.JobResult) {
		e := Entry{
			JobID:    r.ID,
			Name:     r.Name,
			Source:   source,
			Status:   StatusCompleted,
			Started:  time.Now().Add(-r.Duration),
			Finished: time.Now(),
		}
		if r.Err != nil {
			e.Status = StatusFailed
			e.Error = r.Err.Error()
		}
		if err := j.Record(context.Background(), e); err != nil && logf != nil {
			logf("journal record failed for job %s: %v", r.ID, err)
		}
	}
}

// Nop returns a journal that records nothing, for deployments with the
// journal disabled
func Nop() Journal {
	return nopJournal{}
}

type nopJournal struct{}

func (nopJournal) Record(ctx context.Context, e Entry) error { return nil }
func (nopJournal) Close() error                              { return nil }
