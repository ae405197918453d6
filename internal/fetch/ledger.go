package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// sqlite driver registration.
	_ "github.com/mattn/go-sqlite3"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS fetch_tasks (
	run_id     TEXT NOT NULL,
	registry   TEXT NOT NULL,
	url        TEXT NOT NULL,
	filename   TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	bytes      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_tasks_run ON fetch_tasks(run_id);
`

// Ledger records fetch task outcomes in sqlite so failures stay
// enumerable after a run finishes.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores every task outcome of a run under runID.
func (l *Ledger) Record(ctx context.Context, runID string, tasks []Task) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fetch_tasks (run_id, registry, url, filename, status, error, bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, runID, t.Registry, t.URL, t.Filename, string(t.Status), t.Err, t.Bytes, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert ledger row for %s: %w", t.Registry, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// LatestRun returns the run ID of the most recent recorded run, or empty
// when the ledger holds nothing yet.
func (l *Ledger) LatestRun(ctx context.Context) (string, error) {
	var runID string
	err := l.db.QueryRowContext(ctx,
		`SELECT run_id FROM fetch_tasks ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

// FailedTasks returns the failed tasks recorded under runID.
func (l *Ledger) FailedTasks(ctx context.Context, runID string) ([]Task, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT registry, url, filename, error, bytes FROM fetch_tasks
		 WHERE run_id = ? AND status = ? ORDER BY rowid`, runID, string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("query failed tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t := Task{Status: StatusFailed}
		if err := rows.Scan(&t.Registry, &t.URL, &t.Filename, &t.Err, &t.Bytes); err != nil {
			return nil, fmt.Errorf("scan failed task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed tasks: %w", err)
	}
	return tasks, nil
}
