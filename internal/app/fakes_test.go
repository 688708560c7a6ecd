package app

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/domain/record"
	"rental_expiry_monitor/internal/domain/run"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var rentalHeaders = []string{"店铺名称", "地址", "剩余天数", "总天数", "开始时间"}

// rentalRow builds a row in rentalHeaders order.
func rentalRow(name string, remaining, total record.Cell, start record.Cell) []record.Cell {
	return []record.Cell{record.TextCell(name), record.TextCell(name + "地址"), remaining, total, start}
}

func rentalMapping() record.ColumnMapping {
	return record.ColumnMapping{
		record.FieldName:      {Index: 0, Header: "店铺名称"},
		record.FieldAddress:   {Index: 1, Header: "地址"},
		record.FieldRemaining: {Index: 2, Header: "剩余天数"},
		record.FieldTotal:     {Index: 3, Header: "总天数"},
		record.FieldStartDate: {Index: 4, Header: "开始时间"},
	}
}

type fakeStore struct {
	table     *record.Table
	loadErr   error
	saveErr   error
	saveCalls int
	saved     []record.CellRef
}

func (s *fakeStore) Load(ctx context.Context) (*record.Table, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.table, nil
}

func (s *fakeStore) Save(ctx context.Context, t *record.Table) error {
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = t.Dirty()
	return nil
}

func (s *fakeStore) Path() string {
	return "/data/yxc.xlsx"
}

type fakeBackup struct {
	calls int
	err   error
}

func (b *fakeBackup) Backup(ctx context.Context, path string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return "/backups/yxc_backup.xlsx", nil
}

type fakeGuard struct {
	mu   sync.Mutex
	held bool
}

func (g *fakeGuard) Acquire(ctx context.Context) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, run.ErrRunInProgress
	}
	g.held = true
	return func() {
		g.mu.Lock()
		g.held = false
		g.mu.Unlock()
	}, nil
}

type fakeJournal struct {
	mu     sync.Mutex
	runs   []*run.Run
	events []*run.Event
	err    error
}

func (j *fakeJournal) CreateRun(ctx context.Context, r *run.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.runs = append(j.runs, r)
	return nil
}

func (j *fakeJournal) BulkCreateEvents(ctx context.Context, events []*run.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, events...)
	return nil
}

func (j *fakeJournal) GetRunByID(ctx context.Context, id string) (*run.Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, run.ErrRunNotFound
}

func (j *fakeJournal) GetLatestRunByDate(ctx context.Context, runDate time.Time, status run.Status) (*run.Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.runs) - 1; i >= 0; i-- {
		r := j.runs[i]
		if r.Status == status && r.RunDate.Equal(record.DateOf(runDate)) {
			return r, nil
		}
	}
	return nil, run.ErrRunNotFound
}

func (j *fakeJournal) ListRecentRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	runs := append([]*run.Run(nil), j.runs...)
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].StartedAt.After(runs[b].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (j *fakeJournal) ListEventsByRun(ctx context.Context, runID string) ([]*run.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*run.Event
	for _, e := range j.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *fakeJournal) Close() error { return nil }

type fakeNotifier struct {
	calls    int
	outcomes []*expiry.Outcome
}

func (n *fakeNotifier) Dispatch(ctx context.Context, outcome *expiry.Outcome, attachment string) []notify.Delivery {
	n.calls++
	n.outcomes = append(n.outcomes, outcome)
	return []notify.Delivery{{Channel: "fake"}}
}

func (n *fakeNotifier) Channels() []string { return []string{"fake"} }

type fakeChannel struct {
	name  string
	err   error
	block bool

	mu   sync.Mutex
	sent []notify.Message
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, msg notify.Message) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.sent...)
}
