package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rental_expiry_monitor/internal/infra/httpapi"
	"rental_expiry_monitor/internal/infra/logger"
	"rental_expiry_monitor/internal/infra/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run passes on the cron schedule, with the optional HTTP API",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	log := logger.Component("main")
	log.Info("Rental expiry monitor starting...")

	a, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// A pass has to finish well before its cross-host lock can expire.
	monitorScheduler := scheduler.NewMonitorScheduler(a.monitor, logger.Component("scheduler"), cfg.CronSpec, cfg.Location, cfg.RunLockTTL)
	if err := monitorScheduler.Start(); err != nil {
		return err
	}

	var server *httpapi.Server
	if cfg.HTTPAddr != "" {
		handler := httpapi.NewHandler(a.monitor, a.history, logger.Component("http"))
		server = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(handler, cfg.HTTPAllowedOrigins), logger.Component("http"))
		server.Start()
	}

	if cfg.RunOnStart {
		// Same guard as the cron job, so an overlapping trigger is skipped, not doubled.
		go monitorScheduler.RunNow()
	}

	log.Info("Application setup complete. Scheduler is running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit // Block until a signal is received

	log.WithField("signal", sig.String()).Info("Shutting down application...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP API shutdown error")
		}
	}
	monitorScheduler.Stop()
	log.Info("Application shut down gracefully.")
	return nil
}
