package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rental_expiry_monitor/internal/app"
	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/record"
	"rental_expiry_monitor/internal/domain/run"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMonitor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeMonitor) RunOnce(ctx context.Context, _ app.RunOptions) (*app.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &app.RunReport{RunID: "r1", Outcome: &expiry.Outcome{}}, nil
}

func (f *fakeMonitor) Columns(context.Context) (record.ColumnMapping, []string, error) {
	return nil, nil, nil
}

func (f *fakeMonitor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newScheduler(m app.MonitorService, spec string) (*MonitorScheduler, *test.Hook) {
	l, hook := test.NewNullLogger()
	return NewMonitorScheduler(m, logrus.NewEntry(l), spec, time.UTC, time.Minute), hook
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s, _ := newScheduler(&fakeMonitor{}, "not a cron spec")
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	m := &fakeMonitor{}
	s, _ := newScheduler(m, "0 7 * * *")
	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, m.Calls())
}

func TestCronTriggersRun(t *testing.T) {
	m := &fakeMonitor{}
	s, _ := newScheduler(m, "@every 1s")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return m.Calls() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNowLogsOutcome(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level logrus.Level
	}{
		{name: "success", level: logrus.InfoLevel},
		{name: "in progress", err: run.ErrRunInProgress, level: logrus.InfoLevel},
		{name: "already ran", err: app.ErrAlreadyRanToday, level: logrus.InfoLevel},
		{name: "failure", err: errors.New("disk full"), level: logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMonitor{err: tt.err}
			s, hook := newScheduler(m, "0 7 * * *")
			s.RunNow()

			assert.Equal(t, 1, m.Calls())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tt.level, hook.LastEntry().Level)
		})
	}
}
