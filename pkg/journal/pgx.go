package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgxInsert = `INSERT INTO job_journal
(job_id, name, source, status, queued_at, started_at, finished_at, error, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// PGXJournal records entries through a native pgx connection pool, for
// Postgres deployments that skip database/sql
type PGXJournal struct {
	pool *pgxpool.Pool
}

// NewPGX connects to Postgres, bootstraps the journal schema and
// returns a ready journal
func NewPGX(ctx context.Context, dsn string) (*PGXJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("journal: DSN cannot be empty")
	}

	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: pgx connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("journal: pgx ping: %w", err)
	}
	if _, err := p.Exec(pingCtx, sqlSchema); err != nil {
		p.Close()
		return nil, fmt.Errorf("journal: pgx schema: %w", err)
	}

	return &PGXJournal{pool: p}, nil
}

// Record implements Journal interface
func (j *PGXJournal) Record(ctx context.Context, e Entry) error {
	_, err := j.pool.Exec(ctx, pgxInsert,
		e.JobID, e.Name, e.Source, e.Status,
		nullTime(e.Queued), nullTime(e.Started), nullTime(e.Finished),
		e.Error, time.Now())
	if err != nil {
		return fmt.Errorf("journal: pgx record: %w", err)
	}
	return nil
}

// Close implements Journal interface
func (j *PGXJournal) Close() error {
	j.pool.Close()
	return nil
}
