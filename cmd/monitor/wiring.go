package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/app"
	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/domain/run"
	"rental_expiry_monitor/internal/infra/cloudstorage"
	"rental_expiry_monitor/internal/infra/config"
	idb "rental_expiry_monitor/internal/infra/database"
	"rental_expiry_monitor/internal/infra/email"
	"rental_expiry_monitor/internal/infra/lock"
	"rental_expiry_monitor/internal/infra/logger"
	"rental_expiry_monitor/internal/infra/pubsub"
	"rental_expiry_monitor/internal/infra/sms"
	"rental_expiry_monitor/internal/infra/spreadsheet"
	"rental_expiry_monitor/internal/infra/telegram"
	"rental_expiry_monitor/internal/infra/webhook"
)

// application holds the wired services and everything that must be closed on exit.
type application struct {
	monitor  *app.MonitorServiceImpl
	history  *app.HistoryService
	notifier *app.NotificationServiceImpl
	closers  []func() error
}

// buildApplication wires every component from the loaded configuration.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	log := logger.Component("wiring")
	a := &application{}

	keywords, err := config.LoadKeywords(cfg.ColumnKeywordsFile)
	if err != nil {
		return nil, err
	}
	strategy, err := expiry.ParseStrategy(cfg.UpdateStrategy)
	if err != nil {
		return nil, err
	}

	// Table store and backups
	store := spreadsheet.NewExcelStore(cfg.ExcelFile, cfg.ExcelSheet, logger.Component("store"))
	var mirror spreadsheet.Mirror
	if cfg.BackupGCSBucket != "" {
		gcs, err := cloudstorage.NewGCSMirror(ctx, cfg.BackupGCSBucket, cfg.BackupGCSPrefix, logger.Component("gcs"))
		if err != nil {
			log.WithError(err).Warn("GCS backup mirror unavailable, keeping local backups only")
		} else {
			mirror = gcs
			a.closers = append(a.closers, gcs.Close)
		}
	}
	backup := spreadsheet.NewBackupper(cfg.BackupDir, cfg.BackupKeep, mirror, logger.Component("backup"))

	// Run journal
	journal, err := openJournal(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if journal != nil {
		a.closers = append(a.closers, journal.Close)
	}

	// Run guard
	local := lock.NewLocalGuard()
	var guard run.Guard = local
	if cfg.RedisAddress != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, run guard stays in-process")
		} else {
			guard = lock.NewRedisGuard(local, lock.NewRedisLocker(rdb), cfg.RunLockTTL, logger.Component("lock"))
			a.closers = append(a.closers, rdb.Close)
		}
	}

	// Notifications
	renderer, err := app.NewMessageRenderer(cfg.SMS.Template, logger.Component("renderer"))
	if err != nil {
		a.Close()
		return nil, err
	}
	channels := a.buildChannels(ctx, cfg, log)
	a.notifier = app.NewNotificationServiceImpl(channels, renderer, cfg.NotifyTimeout, cfg.NotifyAllClear, logger.Component("notifier"))

	a.monitor = app.NewMonitorServiceImpl(app.MonitorServiceDeps{
		Store:       store,
		Backup:      backup,
		Keywords:    keywords,
		Reconciler:  app.NewReconciler(strategy, cfg.DecrementModeUntil, logger.Component("reconciler")),
		Journal:     journal,
		Guard:       guard,
		Notifier:    a.notifier,
		AttachTable: cfg.Email.AttachTable,
		Location:    cfg.Location,
		Logger:      logger.Component("monitor"),
	})
	a.history = app.NewHistoryService(journal)

	log.WithFields(logrus.Fields{
		"excel_file": cfg.ExcelFile,
		"strategy":   strategy,
		"journal":    cfg.JournalDriver,
		"channels":   a.notifier.Channels(),
	}).Info("Application wired")
	return a, nil
}

// openJournal returns a nil repository when the journal is disabled.
func openJournal(ctx context.Context, cfg *config.AppConfig) (run.Repository, error) {
	switch cfg.JournalDriver {
	case "sqlite":
		db, err := idb.NewSQLiteConnection(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("could not open run journal: %w", err)
		}
		repo, err := idb.NewSQLiteRunRepository(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	case "postgres":
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("could not connect to run journal database: %w", err)
		}
		repo, err := idb.NewPostgresRunRepository(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, nil
	}
}

// buildChannels creates every enabled channel. A channel that cannot be built is skipped with a
// warning so the others still deliver.
func (a *application) buildChannels(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) []notify.Channel {
	var channels []notify.Channel
	add := func(name string, ch notify.Channel, err error) {
		switch {
		case err == nil:
			channels = append(channels, ch)
			log.WithField("channel", name).Info("Notification channel enabled")
		case errors.Is(err, notify.ErrChannelDisabled):
		default:
			log.WithError(err).WithField("channel", name).Warn("Notification channel unavailable")
		}
	}

	emailCh, err := email.NewChannel(cfg.Email, logger.Component("email"))
	add("email", emailCh, err)

	httpClient := &http.Client{Timeout: cfg.NotifyTimeout}
	webhookCh, err := webhook.NewChannel(cfg.Webhook, httpClient, logger.Component("webhook"))
	add("webhook", webhookCh, err)

	smsCh, err := sms.NewChannel(cfg.SMS, httpClient, logger.Component("sms"))
	add("sms", smsCh, err)

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewBot(cfg.Telegram.Token, "")
		if err != nil {
			add("telegram", nil, fmt.Errorf("could not create Telegram bot: %w", err))
		} else {
			tgCh, err := telegram.NewTelebotAdapter(cfg.Telegram, bot, logger.Component("telegram"))
			add("telegram", tgCh, err)
		}
	}

	if cfg.PubSub.Enabled {
		pub, err := pubsub.NewPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, logger.Component("pubsub"))
		if err != nil {
			add("pubsub", nil, err)
		} else {
			a.closers = append(a.closers, pub.Close)
			add("pubsub", pub, nil)
		}
	}
	return channels
}

// Close releases connections in reverse order of creation.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Log.WithError(err).Warn("Error while closing a resource")
		}
	}
	a.closers = nil
}
