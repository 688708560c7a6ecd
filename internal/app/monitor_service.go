// internal/app/monitor_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/domain/record"
	"rental_expiry_monitor/internal/domain/run"
)

// Backupper copies the table aside before a mutating pass and returns the copy's location.
type Backupper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// MonitorService is the single entry point for a reconciliation pass.
type MonitorService interface {
	RunOnce(ctx context.Context, opts RunOptions) (*RunReport, error)
	// Columns loads the table and resolves its columns without touching anything.
	Columns(ctx context.Context) (record.ColumnMapping, []string, error)
}

// RunOptions tune a single pass.
type RunOptions struct {
	// Force skips the once-per-day check of decrement mode.
	Force bool
	// DryRun computes the outcome without backup, save, journal or notifications.
	DryRun bool
	// Today overrides the run date. Zero means the current date in the configured time zone.
	Today time.Time
}

// RunReport is what a pass did, for the CLI and the HTTP API.
type RunReport struct {
	RunID      string               `json:"run_id"`
	RunDate    time.Time            `json:"run_date"`
	Strategy   expiry.Strategy      `json:"strategy"`
	Status     run.Status           `json:"status"`
	DryRun     bool                 `json:"dry_run"`
	Mapping    record.ColumnMapping `json:"mapping"`
	Outcome    *expiry.Outcome      `json:"outcome"`
	Issues     []string             `json:"issues,omitempty"`
	BackupPath string               `json:"backup_path,omitempty"`
	Deliveries []notify.Delivery    `json:"deliveries,omitempty"`
}

// MonitorServiceDeps groups the collaborators of MonitorServiceImpl. Journal and Backup may be nil.
type MonitorServiceDeps struct {
	Store       record.Store
	Backup      Backupper
	Keywords    record.Keywords
	Reconciler  *Reconciler
	Journal     run.Repository
	Guard       run.Guard
	Notifier    NotificationService
	AttachTable bool
	Location    *time.Location
	Logger      *logrus.Entry
}

// MonitorServiceImpl implements the MonitorService interface.
type MonitorServiceImpl struct {
	deps MonitorServiceDeps
	now  func() time.Time
}

func NewMonitorServiceImpl(deps MonitorServiceDeps) *MonitorServiceImpl {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Keywords == nil {
		deps.Keywords = record.DefaultKeywords()
	}
	return &MonitorServiceImpl{deps: deps, now: time.Now}
}

// RunOnce performs backup, load, resolve, reconcile, save, journal and notify, in that order.
// Nothing is written when loading or column resolution fails.
func (s *MonitorServiceImpl) RunOnce(ctx context.Context, opts RunOptions) (*RunReport, error) {
	startedAt := s.now()
	today := opts.Today
	if today.IsZero() {
		today = startedAt.In(s.deps.Location)
	}
	today = record.DateOf(today)

	report := &RunReport{
		RunID:   uuid.NewString(),
		RunDate: today,
		DryRun:  opts.DryRun,
		Status:  run.StatusFailed,
	}
	logger := s.deps.Logger.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"run_date": today.Format("2006-01-02"),
	})

	// 1. Only one pass at a time
	release, err := s.deps.Guard.Acquire(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not acquire run guard")
		return nil, err
	}
	defer release()

	report.Strategy = s.deps.Reconciler.EffectiveStrategy(today)
	logger = logger.WithField("strategy", report.Strategy)
	logger.Info("Starting reconciliation run")

	// 2. Decrement is not idempotent, so refuse a second journaled pass on the same day
	if report.Strategy == expiry.StrategyDecrement && !opts.Force && !opts.DryRun && s.deps.Journal != nil {
		prev, err := s.deps.Journal.GetLatestRunByDate(ctx, today, run.StatusSucceeded)
		switch {
		case err == nil:
			logger.WithField("previous_run_id", prev.ID).Warn("Decrement run already succeeded today, use force to run again")
			return nil, fmt.Errorf("%w (run %s)", ErrAlreadyRanToday, prev.ID)
		case errors.Is(err, run.ErrRunNotFound):
		default:
			logger.WithError(err).Warn("Could not check the run journal, continuing")
		}
	}

	// 3. Backup before anything can change
	if !opts.DryRun && s.deps.Backup != nil {
		path, err := s.deps.Backup.Backup(ctx, s.deps.Store.Path())
		if err != nil {
			logger.WithError(err).Warn("Backup failed, continuing without a backup copy")
		} else {
			report.BackupPath = path
			logger.WithField("backup", path).Info("Table backed up")
		}
	}

	// 4. Load and resolve; both are fatal and happen before any mutation
	table, err := s.deps.Store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load table: %w", err)
		s.fail(ctx, logger, report, startedAt, err)
		return report, err
	}
	mapping, err := ResolveColumns(table.Headers, s.deps.Keywords)
	if err != nil {
		s.fail(ctx, logger, report, startedAt, err)
		return report, err
	}
	report.Mapping = mapping
	for _, f := range append(append([]record.Field{}, record.RequiredFields...), record.OptionalFields...) {
		if col, ok := mapping.Lookup(f); ok {
			logger.WithFields(logrus.Fields{"field": f, "column": col.Header, "index": col.Index}).Info("Column resolved")
		}
	}

	// 5. Reconcile in memory
	outcome := s.deps.Reconciler.Reconcile(table, mapping, today)
	report.Outcome = outcome
	report.Issues = outcome.IssueMessages()
	logger.WithFields(logrus.Fields{
		"processed": outcome.Processed,
		"updated":   len(outcome.Updates),
		"expired":   len(outcome.Expired),
		"reset":     len(outcome.Resets),
		"issues":    len(outcome.Issues),
	}).Info("Reconciliation pass computed")

	if opts.DryRun {
		report.Status = run.StatusSucceeded
		logger.Info("Dry run, table left unchanged and no notifications sent")
		return report, nil
	}

	// 6. Persist; a pass that could not be saved is a failed run
	if err := s.deps.Store.Save(ctx, table); err != nil {
		err = fmt.Errorf("%w: %w", ErrTableNotSaved, err)
		s.fail(ctx, logger, report, startedAt, err)
		return report, err
	}
	table.ClearDirty()
	report.Status = run.StatusSucceeded
	logger.Info("Table saved")

	// 7. Journal, best effort
	s.journal(ctx, logger, report, startedAt, nil)

	// 8. Notify, best effort and after the save
	attachment := ""
	if s.deps.AttachTable {
		attachment = s.deps.Store.Path()
	}
	if s.deps.Notifier != nil {
		report.Deliveries = s.deps.Notifier.Dispatch(ctx, outcome, attachment)
	}

	logger.Info("Reconciliation run finished")
	return report, nil
}

func (s *MonitorServiceImpl) Columns(ctx context.Context) (record.ColumnMapping, []string, error) {
	table, err := s.deps.Store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load table: %w", err)
	}
	mapping, err := ResolveColumns(table.Headers, s.deps.Keywords)
	if err != nil {
		return nil, table.Headers, err
	}
	return mapping, table.Headers, nil
}

func (s *MonitorServiceImpl) fail(ctx context.Context, logger *logrus.Entry, report *RunReport, startedAt time.Time, err error) {
	report.Status = run.StatusFailed
	logger.WithError(err).Error("Reconciliation run failed")
	if report.DryRun {
		return
	}
	s.journal(ctx, logger, report, startedAt, err)
}

func (s *MonitorServiceImpl) journal(ctx context.Context, logger *logrus.Entry, report *RunReport, startedAt time.Time, runErr error) {
	if s.deps.Journal == nil {
		return
	}

	r := &run.Run{
		ID:         report.RunID,
		RunDate:    report.RunDate,
		Strategy:   report.Strategy,
		Status:     report.Status,
		StartedAt:  startedAt,
		FinishedAt: s.now(),
	}
	if report.BackupPath != "" {
		r.BackupPath = sql.NullString{String: report.BackupPath, Valid: true}
	}
	if runErr != nil {
		r.Error = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if o := report.Outcome; o != nil && report.Status == run.StatusSucceeded {
		r.ExpiredCount = len(o.Expired)
		r.ResetCount = len(o.Resets)
		r.IssueCount = len(o.Issues)
	}

	if err := s.deps.Journal.CreateRun(ctx, r); err != nil {
		logger.WithError(err).Error("Failed to journal run")
		return
	}
	if r.Status != run.StatusSucceeded || report.Outcome == nil {
		return
	}
	events := run.EventsFromOutcome(r.ID, report.Outcome)
	if len(events) == 0 {
		return
	}
	if err := s.deps.Journal.BulkCreateEvents(ctx, events); err != nil {
		logger.WithError(err).Error("Failed to journal run events")
	}
}
