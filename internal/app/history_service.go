package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental_expiry_monitor/internal/domain/run"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// RunDetails is a journaled run with its audit events.
type RunDetails struct {
	Run    *run.Run     `json:"run"`
	Events []*run.Event `json:"events"`
}

// HistoryService reads the run journal for operators.
type HistoryService struct {
	runRepo run.Repository
}

// NewHistoryService accepts a nil repository when the journal is disabled.
func NewHistoryService(rr run.Repository) *HistoryService {
	return &HistoryService{runRepo: rr}
}

// ListRecent returns the newest runs first. limit <= 0 means the default.
func (s *HistoryService) ListRecent(ctx context.Context, limit int) ([]*run.Run, error) {
	if s.runRepo == nil {
		return nil, ErrJournalDisabled
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.runRepo.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	return runs, nil
}

// LatestSuccessful returns the last successful run of the given calendar day.
func (s *HistoryService) LatestSuccessful(ctx context.Context, date time.Time) (*run.Run, error) {
	if s.runRepo == nil {
		return nil, ErrJournalDisabled
	}
	r, err := s.runRepo.GetLatestRunByDate(ctx, date, run.StatusSucceeded)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return r, nil
}

// Details returns one run with its expiry and reset events.
func (s *HistoryService) Details(ctx context.Context, runID string) (*RunDetails, error) {
	if s.runRepo == nil {
		return nil, ErrJournalDisabled
	}
	r, err := s.runRepo.GetRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			return nil, run.ErrRunNotFound // Propagate specific error
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	events, err := s.runRepo.ListEventsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for run %s: %w", runID, err)
	}
	return &RunDetails{Run: r, Events: events}, nil
}
