// internal/infra/database/sqlite_run_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/run"
)

// Dates and timestamps are stored as TEXT. The fixed-width UTC layout keeps them sortable.
const (
	sqliteDateLayout = "2006-01-02"
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS monitor_runs (
	id            TEXT PRIMARY KEY,
	run_date      TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	expired_count INTEGER NOT NULL DEFAULT 0,
	reset_count   INTEGER NOT NULL DEFAULT 0,
	issue_count   INTEGER NOT NULL DEFAULT 0,
	backup_path   TEXT,
	error         TEXT
);
CREATE INDEX IF NOT EXISTS monitor_runs_date_status_idx ON monitor_runs (run_date, status);
CREATE TABLE IF NOT EXISTS monitor_run_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES monitor_runs(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	row_index  INTEGER NOT NULL,
	label      TEXT NOT NULL,
	old_start  TEXT,
	new_start  TEXT,
	total_days INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS monitor_run_events_run_idx ON monitor_run_events (run_id);`

// SQLiteRunRepository is the default journal, kept next to the table on the same host.
type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(ctx context.Context, db *sql.DB) (*SQLiteRunRepository, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &SQLiteRunRepository{db: db}, nil
}

func (r *SQLiteRunRepository) CreateRun(ctx context.Context, rn *run.Run) error {
	query := `INSERT INTO monitor_runs (id, run_date, strategy, status, started_at, finished_at,
                   expired_count, reset_count, issue_count, backup_path, error)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rn.ID, rn.RunDate.Format(sqliteDateLayout), string(rn.Strategy), string(rn.Status),
		sqliteTime(rn.StartedAt), sqliteTime(rn.FinishedAt),
		rn.ExpiredCount, rn.ResetCount, rn.IssueCount, rn.BackupPath, rn.Error)
	if err != nil {
		return fmt.Errorf("error creating run %s: %w", rn.ID, err)
	}
	return nil
}

func (r *SQLiteRunRepository) BulkCreateEvents(ctx context.Context, events []*run.Event) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO monitor_run_events (run_id, kind, row_index, label, old_start, new_start, total_days)
                                         VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk create: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.ExecContext(ctx, e.RunID, string(e.Kind), e.RowIndex, e.Label, nullDate(e.OldStart), nullDate(e.NewStart), e.TotalDays)
		if err != nil {
			return fmt.Errorf("error executing statement for bulk create (run %s, row %d, %s): %w", e.RunID, e.RowIndex, e.Kind, err)
		}
	}

	return txn.Commit()
}

const sqliteRunColumns = `id, run_date, strategy, status, started_at, finished_at,
       expired_count, reset_count, issue_count, backup_path, error`

func (r *SQLiteRunRepository) GetRunByID(ctx context.Context, id string) (*run.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM monitor_runs WHERE id = ?`
	rn, err := scanSQLiteRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting run by ID: %w", err)
	}
	return rn, nil
}

func (r *SQLiteRunRepository) GetLatestRunByDate(ctx context.Context, runDate time.Time, status run.Status) (*run.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM monitor_runs
               WHERE run_date = ? AND status = ?
               ORDER BY started_at DESC LIMIT 1`
	rn, err := scanSQLiteRun(r.db.QueryRowContext(ctx, query, runDate.Format(sqliteDateLayout), string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting run by date and status: %w", err)
	}
	return rn, nil
}

func (r *SQLiteRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM monitor_runs ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		rn, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning run row: %w", err)
		}
		runs = append(runs, rn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

func (r *SQLiteRunRepository) ListEventsByRun(ctx context.Context, runID string) ([]*run.Event, error) {
	query := `SELECT id, run_id, kind, row_index, label, old_start, new_start, total_days
               FROM monitor_run_events WHERE run_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error listing events of run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []*run.Event
	for rows.Next() {
		var (
			e                  = &run.Event{}
			kind               string
			oldStart, newStart sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.RowIndex, &e.Label, &oldStart, &newStart, &e.TotalDays); err != nil {
			return nil, fmt.Errorf("error scanning event row: %w", err)
		}
		e.Kind = run.EventKind(kind)
		if e.OldStart, err = parseNullDate(oldStart); err != nil {
			return nil, err
		}
		if e.NewStart, err = parseNullDate(newStart); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}

func scanSQLiteRun(s rowScanner) (*run.Run, error) {
	var (
		rn                        = &run.Run{}
		runDate, strategy, status string
		startedAt, finishedAt     string
	)
	err := s.Scan(&rn.ID, &runDate, &strategy, &status, &startedAt, &finishedAt,
		&rn.ExpiredCount, &rn.ResetCount, &rn.IssueCount, &rn.BackupPath, &rn.Error)
	if err != nil {
		return nil, err
	}
	rn.Strategy = expiry.Strategy(strategy)
	rn.Status = run.Status(status)
	if rn.RunDate, err = time.Parse(sqliteDateLayout, runDate); err != nil {
		return nil, fmt.Errorf("bad run_date %q: %w", runDate, err)
	}
	if rn.StartedAt, err = time.Parse(sqliteTimeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	if rn.FinishedAt, err = time.Parse(sqliteTimeLayout, finishedAt); err != nil {
		return nil, fmt.Errorf("bad finished_at %q: %w", finishedAt, err)
	}
	return rn, nil
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseNullDate(s sql.NullString) (sql.NullTime, error) {
	if !s.Valid || s.String == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(sqliteDateLayout, s.String)
	if err != nil {
		return sql.NullTime{}, fmt.Errorf("bad event date %q: %w", s.String, err)
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}
