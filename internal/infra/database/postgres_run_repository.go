// internal/infra/database/postgres_run_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rental_expiry_monitor/internal/domain/record"
	"rental_expiry_monitor/internal/domain/run"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS monitor_runs (
	id            TEXT PRIMARY KEY,
	run_date      DATE NOT NULL,
	strategy      TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	expired_count INTEGER NOT NULL DEFAULT 0,
	reset_count   INTEGER NOT NULL DEFAULT 0,
	issue_count   INTEGER NOT NULL DEFAULT 0,
	backup_path   TEXT,
	error         TEXT
);
CREATE INDEX IF NOT EXISTS monitor_runs_date_status_idx ON monitor_runs (run_date, status);
CREATE TABLE IF NOT EXISTS monitor_run_events (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES monitor_runs(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	row_index  INTEGER NOT NULL,
	label      TEXT NOT NULL,
	old_start  DATE,
	new_start  DATE,
	total_days INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS monitor_run_events_run_idx ON monitor_run_events (run_id);`

type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates the journal tables if they do not exist yet.
func NewPostgresRunRepository(ctx context.Context, db *sql.DB) (*PostgresRunRepository, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &PostgresRunRepository{db: db}, nil
}

func (r *PostgresRunRepository) CreateRun(ctx context.Context, rn *run.Run) error {
	query := `INSERT INTO monitor_runs (id, run_date, strategy, status, started_at, finished_at,
                   expired_count, reset_count, issue_count, backup_path, error)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		rn.ID, dateOnly(rn.RunDate), rn.Strategy, rn.Status, rn.StartedAt, rn.FinishedAt,
		rn.ExpiredCount, rn.ResetCount, rn.IssueCount, rn.BackupPath, rn.Error)
	if err != nil {
		return fmt.Errorf("error creating run %s: %w", rn.ID, err)
	}
	return nil
}

func (r *PostgresRunRepository) BulkCreateEvents(ctx context.Context, events []*run.Event) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO monitor_run_events (run_id, kind, row_index, label, old_start, new_start, total_days)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk create: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.ExecContext(ctx, e.RunID, e.Kind, e.RowIndex, e.Label, nullDate(e.OldStart), nullDate(e.NewStart), e.TotalDays)
		if err != nil {
			return fmt.Errorf("error executing statement for bulk create (run %s, row %d, %s): %w", e.RunID, e.RowIndex, e.Kind, err)
		}
	}

	return txn.Commit()
}

const postgresRunColumns = `id, run_date, strategy, status, started_at, finished_at,
       expired_count, reset_count, issue_count, backup_path, error`

func (r *PostgresRunRepository) GetRunByID(ctx context.Context, id string) (*run.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM monitor_runs WHERE id = $1`
	rn, err := scanPostgresRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting run by ID: %w", err)
	}
	return rn, nil
}

func (r *PostgresRunRepository) GetLatestRunByDate(ctx context.Context, runDate time.Time, status run.Status) (*run.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM monitor_runs
               WHERE run_date = $1 AND status = $2
               ORDER BY started_at DESC LIMIT 1`
	rn, err := scanPostgresRun(r.db.QueryRowContext(ctx, query, dateOnly(runDate), status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting run by date and status: %w", err)
	}
	return rn, nil
}

func (r *PostgresRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM monitor_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		rn, err := scanPostgresRun(rows)
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

func (r *PostgresRunRepository) ListEventsByRun(ctx context.Context, runID string) ([]*run.Event, error) {
	query := `SELECT id, run_id, kind, row_index, label, old_start, new_start, total_days
               FROM monitor_run_events WHERE run_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error listing events of run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []*run.Event
	for rows.Next() {
		e := &run.Event{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.RowIndex, &e.Label, &e.OldStart, &e.NewStart, &e.TotalDays); err != nil {
			return nil, fmt.Errorf("error scanning event row: %w", err)
		}
		if e.OldStart.Valid {
			e.OldStart.Time = record.DateOf(e.OldStart.Time)
		}
		if e.NewStart.Valid {
			e.NewStart.Time = record.DateOf(e.NewStart.Time)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *PostgresRunRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresRun(s rowScanner) (*run.Run, error) {
	rn := &run.Run{}
	err := s.Scan(&rn.ID, &rn.RunDate, &rn.Strategy, &rn.Status, &rn.StartedAt, &rn.FinishedAt,
		&rn.ExpiredCount, &rn.ResetCount, &rn.IssueCount, &rn.BackupPath, &rn.Error)
	if err != nil {
		return nil, err
	}
	rn.RunDate = record.DateOf(rn.RunDate)
	return rn, nil
}

// dateOnly renders a calendar date so the database never applies a time zone shift to it.
func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}

func nullDate(t sql.NullTime) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: dateOnly(t.Time), Valid: true}
}
