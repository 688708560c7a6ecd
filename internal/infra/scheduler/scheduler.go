package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/app" // For MonitorService interface
	"rental_expiry_monitor/internal/domain/run"
)

type MonitorScheduler struct {
	cronEngine *cron.Cron
	monitor    app.MonitorService // Using the interface
	logger     *logrus.Entry
	cronSpec   string
	runTimeout time.Duration
}

func NewMonitorScheduler(
	monitor app.MonitorService,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 7 * * *" (07:00 daily)
	location *time.Location,
	runTimeout time.Duration,
) *MonitorScheduler {
	if location == nil {
		location = time.Local
	}
	return &MonitorScheduler{
		cronEngine: cron.New(cron.WithLocation(location)),
		monitor:    monitor,
		logger:     logger,
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

// Start registers the daily job and starts the cron engine. An invalid cron expression is returned, not fatal.
func (s *MonitorScheduler) Start() error {
	s.logger.Info("Starting monitor scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for daily reconciliation.")
		s.executeRun()
	})
	if err != nil {
		return fmt.Errorf("could not add reconciliation cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	for _, e := range s.cronEngine.Entries() {
		s.logger.WithField("next_run", e.Next.Format(time.RFC3339)).Info("Monitor scheduler started.")
	}
	return nil
}

// RunNow performs a pass immediately on the caller's goroutine, e.g. at startup.
func (s *MonitorScheduler) RunNow() {
	s.executeRun()
}

// executeRun is a helper shared by the cron job and RunNow.
func (s *MonitorScheduler) executeRun() {
	ctx := context.Background()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	report, err := s.monitor.RunOnce(ctx, app.RunOptions{})
	switch {
	case errors.Is(err, run.ErrRunInProgress):
		s.logger.Info("Another reconciliation run is in progress. Skipping.")
	case errors.Is(err, app.ErrAlreadyRanToday):
		s.logger.WithError(err).Info("Reconciliation already ran today. Skipping.")
	case err != nil:
		s.logger.WithError(err).Error("Error during reconciliation run")
	default:
		s.logger.WithFields(logrus.Fields{
			"run_id":  report.RunID,
			"expired": len(report.Outcome.Expired),
			"issues":  len(report.Issues),
		}).Info("Reconciliation run completed successfully.")
	}
}

func (s *MonitorScheduler) Stop() {
	s.logger.Info("Stopping monitor scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Monitor scheduler gracefully stopped.")
}
