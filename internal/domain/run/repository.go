// internal/domain/run/repository.go
package run

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunInProgress = errors.New("another reconciliation run is in progress")
)

// Repository persists the run journal.
type Repository interface {
	CreateRun(ctx context.Context, r *Run) error
	BulkCreateEvents(ctx context.Context, events []*Event) error
	GetRunByID(ctx context.Context, id string) (*Run, error)
	// GetLatestRunByDate returns the most recent run for the calendar date with the given status.
	GetLatestRunByDate(ctx context.Context, runDate time.Time, status Status) (*Run, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*Run, error)
	ListEventsByRun(ctx context.Context, runID string) ([]*Event, error)
	Close() error
}

// Guard serialises reconciliation passes. Acquire returns ErrRunInProgress when another pass holds it.
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}
