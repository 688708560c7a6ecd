package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_expiry_monitor/internal/domain/run"
)

func TestHistoryListRecentClampsLimit(t *testing.T) {
	journal := &fakeJournal{}
	base := time.Date(2025, time.January, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 250; i++ {
		journal.runs = append(journal.runs, &run.Run{
			ID:        fmt.Sprintf("run-%03d", i),
			Status:    run.StatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	svc := NewHistoryService(journal)
	ctx := context.Background()

	runs, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, defaultHistoryLimit)
	assert.Equal(t, "run-249", runs[0].ID)

	runs, err = svc.ListRecent(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, runs, maxHistoryLimit)
}

func TestHistoryDetails(t *testing.T) {
	journal := &fakeJournal{
		runs:   []*run.Run{{ID: "r1", Status: run.StatusSucceeded}},
		events: []*run.Event{{RunID: "r1", Kind: run.EventExpired}, {RunID: "r2", Kind: run.EventReset}},
	}
	svc := NewHistoryService(journal)

	details, err := svc.Details(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", details.Run.ID)
	assert.Len(t, details.Events, 1)

	_, err = svc.Details(context.Background(), "missing")
	assert.ErrorIs(t, err, run.ErrRunNotFound)
}

func TestHistoryLatestSuccessful(t *testing.T) {
	today := day(2025, time.January, 2)
	journal := &fakeJournal{runs: []*run.Run{
		{ID: "ok", RunDate: today, Status: run.StatusSucceeded},
		{ID: "bad", RunDate: today, Status: run.StatusFailed},
	}}
	svc := NewHistoryService(journal)

	r, err := svc.LatestSuccessful(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.ID)

	_, err = svc.LatestSuccessful(context.Background(), today.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, run.ErrRunNotFound)
}

func TestHistoryWithoutJournal(t *testing.T) {
	svc := NewHistoryService(nil)
	_, err := svc.ListRecent(context.Background(), 5)
	assert.ErrorIs(t, err, ErrJournalDisabled)
}
