// internal/domain/run/run.go
package run

import (
	"database/sql"
	"time"

	"rental_expiry_monitor/internal/domain/expiry"
)

// Status is the final state of a reconciliation run.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Run is one journaled reconciliation pass.
// Corresponds to the 'monitor_runs' table.
type Run struct {
	ID           string          `json:"id"` // uuid
	RunDate      time.Time       `json:"run_date"`
	Strategy     expiry.Strategy `json:"strategy"`
	Status       Status          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	ExpiredCount int             `json:"expired_count"`
	ResetCount   int             `json:"reset_count"`
	IssueCount   int             `json:"issue_count"`
	BackupPath   sql.NullString  `json:"-"`
	Error        sql.NullString  `json:"-"`
}

// EventKind tells expiry and reset events apart in the journal.
type EventKind string

const (
	EventExpired EventKind = "EXPIRED"
	EventReset   EventKind = "RESET"
)

// Event is an audit copy of an expiry or reset. It is never read back by the engine.
// Corresponds to the 'monitor_run_events' table.
type Event struct {
	ID        int64        `json:"id"`
	RunID     string       `json:"run_id"`
	Kind      EventKind    `json:"kind"`
	RowIndex  int          `json:"row_index"`
	Label     string       `json:"label"`
	OldStart  sql.NullTime `json:"-"`
	NewStart  sql.NullTime `json:"-"`
	TotalDays int          `json:"total_days"`
}

// EventsFromOutcome flattens an outcome into journal rows for runID.
func EventsFromOutcome(runID string, o *expiry.Outcome) []*Event {
	events := make([]*Event, 0, len(o.Expired)+len(o.Resets))
	for _, e := range o.Expired {
		events = append(events, &Event{
			RunID:     runID,
			Kind:      EventExpired,
			RowIndex:  e.RowIndex,
			Label:     e.Label.String(),
			OldStart:  sql.NullTime{Time: e.StartDate, Valid: !e.StartDate.IsZero()},
			TotalDays: e.TotalDays,
		})
	}
	for _, r := range o.Resets {
		events = append(events, &Event{
			RunID:     runID,
			Kind:      EventReset,
			RowIndex:  r.RowIndex,
			Label:     r.Label.String(),
			OldStart:  sql.NullTime{Time: r.OldStart, Valid: !r.OldStart.IsZero()},
			NewStart:  sql.NullTime{Time: r.NewStart, Valid: !r.NewStart.IsZero()},
			TotalDays: r.TotalDays,
		})
	}
	return events
}
