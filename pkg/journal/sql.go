package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS job_journal (
	job_id      TEXT NOT NULL,
	name        TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	queued_at   TIMESTAMP,
	started_at  TIMESTAMP,
	finished_at TIMESTAMP,
	error       TEXT,
	recorded_at TIMESTAMP NOT NULL
)`

// SQLConfig configures an SQL-backed journal
type SQLConfig struct {
	// DriverName is the database/sql driver: "sqlite3" or "postgres"
	DriverName string

	// DSN is the database connection string
	DSN string

	// MaxOpenConns bounds the connection pool. Default: 5.
	MaxOpenConns int
}

// SQLJournal records entries through database/sql
type SQLJournal struct {
	db     *sql.DB
	insert string
}

// NewSQL opens the database, bootstraps the journal schema and returns
// a ready journal. Fail-fast: configuration and connectivity problems
// surface here, not on the first Record.
func NewSQL(cfg SQLConfig) (*SQLJournal, error) {
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("journal: DriverName cannot be empty")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal: DSN cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 5
	}

	db, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.DriverName == "sqlite3" {
		// sqlite serializes writers anyway, and one connection keeps
		// an in-memory database on a single schema
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	return &SQLJournal{
		db:     db,
		insert: insertStatement(cfg.DriverName),
	}, nil
}

// insertStatement builds the insert with the driver's placeholder style
func insertStatement(driver string) string {
	const cols = `INSERT INTO job_journal
(job_id, name, source, status, queued_at, started_at, finished_at, error, recorded_at)
VALUES `
	if driver == "postgres" {
		return cols + "($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	}
	return cols + "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
}

// Record implements Journal interface
func (j *SQLJournal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, j.insert,
		e.JobID, e.Name, e.Source, e.Status,
		nullTime(e.Queued), nullTime(e.Started), nullTime(e.Finished),
		e.Error, time.Now())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Close implements Journal interface
func (j *SQLJournal) Close() error {
	return j.db.Close()
}

// DB returns the underlying handle, for tests and migrations
func (j *SQLJournal) DB() *sql.DB {
	return j.db
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
