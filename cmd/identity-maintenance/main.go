package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/identity/pkg/config"
	"github.com/platinummonkey/identity/pkg/maintenance"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/sessions"
	"github.com/platinummonkey/identity/pkg/storage/postgres"
)

var (
	purgeSchedule = flag.String("purge-schedule", "", "Cron schedule for the session purge (default: IDENTITY_SESSION_PURGE_SCHEDULE)")
	runOnce       = flag.Bool("run-once", false, "Purge expired sessions once and exit")
)

// identity-maintenance purges expired PostgreSQL sessions out of process, for
// deployments that run several API replicas and want a single purger.
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity-maintenance: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("component", "maintenance")

	if cfg.Sessions.Backend != config.SessionBackendPostgres {
		logger.WithField("backend", cfg.Sessions.Backend).Info("sessions expire on their own, nothing to purge")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cm, err := postgres.NewConnectionManager(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer cm.Close()

	store := sessions.NewPostgresStore(cm.DB())
	scheduler := maintenance.NewScheduler(nil, logger)

	// Run once mode (cron jobs, manual cleanup)
	if *runOnce {
		purgeCtx, cancel := context.WithTimeout(ctx, maintenance.DefaultJobTimeout)
		defer cancel()
		if _, err := scheduler.PurgeSessions(purgeCtx, purger{store}); err != nil {
			os.Exit(1)
		}
		return
	}

	schedule := cfg.Sessions.PurgeSchedule
	if *purgeSchedule != "" {
		schedule = *purgeSchedule
	}
	if err := scheduler.AddSessionPurge(schedule, purger{store}); err != nil {
		logger.WithError(err).Error("invalid schedule")
		os.Exit(1)
	}

	scheduler.Start()
	logger.WithField("schedule", schedule).Info("session purger started")

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("purge still running at shutdown")
	}
}

// purger adapts a session store to maintenance.Purger
type purger struct {
	store sessions.Store
}

func (p purger) Purge(ctx context.Context) (int64, error) {
	return p.store.Purge(ctx, time.Now())
}
