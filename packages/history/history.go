// Package history stores finished runs in SQLite so they can be listed and
// compared later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TIMESTAMP NOT NULL,
	finished_at       TIMESTAMP NOT NULL,
	duration_ms       INTEGER NOT NULL,
	total             INTEGER NOT NULL,
	passed            INTEGER NOT NULL,
	failed            INTEGER NOT NULL,
	crashed           INTEGER NOT NULL,
	skipped           INTEGER NOT NULL,
	expected_failures INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	path        TEXT NOT NULL,
	manifest    TEXT NOT NULL,
	expected    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	message     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run is a stored run summary.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Duration         time.Duration
	Total            int
	Passed           int
	Failed           int
	Crashed          int
	Skipped          int
	ExpectedFailures int
}

// Unsuccessful mirrors runner.RunResult.Unsuccessful.
func (r *Run) Unsuccessful() int {
	return r.Failed + r.Crashed
}

// Result is a stored test result.
type Result struct {
	Path     string
	Manifest string
	Expected string
	Outcome  string
	Message  string
	Duration time.Duration
}

// Store represents a run history database
type Store struct {
	db *sql.DB
}

// Open opens the history store described by a connection string.
// Supported formats:
// - sqlite://path/to/runs.db
// - sqlite:./runs.db
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"+schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a finished run and its results.
func (s *Store) Record(ctx context.Context, res *runner.RunResult) error {
	if res.ID == "" {
		return errors.New("run has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, finished_at, duration_ms, total, passed, failed, crashed, skipped, expected_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.StartedAt.UTC(), res.FinishedAt.UTC(), res.Duration.Milliseconds(),
		res.Total, res.Passed, res.Failed, res.Crashed, res.Skipped, res.ExpectedFailures)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, seq, path, manifest, expected, outcome, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range res.Records {
		_, err := stmt.ExecContext(ctx, res.ID, i, r.Test.Path, r.Test.Manifest,
			string(r.Test.Expected), string(r.Outcome), r.Message, r.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, duration_ms, total, passed, failed, crashed, skipped, expected_failures
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &durationMs,
			&r.Total, &r.Passed, &r.Failed, &r.Crashed, &r.Skipped, &r.ExpectedFailures); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Last returns the most recent run, or nil if there is none.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Results returns the stored results of a run in execution order.
func (s *Store) Results(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, manifest, expected, outcome, message, duration_ms
		FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var durationMs int64
		if err := rows.Scan(&r.Path, &r.Manifest, &r.Expected, &r.Outcome, &r.Message, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	default:
		return "", fmt.Errorf("unsupported history store %q (expected sqlite:<path>)", connStr)
	}

	if connStr == "" {
		return "", errors.New("history store path is empty")
	}
	return connStr, nil
}
