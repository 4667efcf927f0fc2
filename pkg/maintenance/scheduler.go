// Package maintenance runs the periodic housekeeping jobs of the service:
// purging expired sessions and sampling database pool statistics.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/identity/pkg/observability"
)

// DefaultJobTimeout bounds a single job run
const DefaultJobTimeout = time.Minute

// Purger removes expired sessions
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Recorder receives job results
type Recorder interface {
	SessionsPurged(n int64)
	RecordDBStats(stats sql.DBStats)
}

// Scheduler runs maintenance jobs on cron schedules
type Scheduler struct {
	cron     *cron.Cron
	recorder Recorder
	logger   *observability.Logger
	timeout  time.Duration
}

// NewScheduler creates a scheduler. recorder may be nil.
func NewScheduler(recorder Recorder, logger *observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scheduler{
		cron:     cron.New(),
		recorder: recorder,
		logger:   logger,
		timeout:  DefaultJobTimeout,
	}
}

// AddSessionPurge schedules PurgeSessions. schedule is a standard cron
// expression or a descriptor such as "@every 1h".
func (s *Scheduler) AddSessionPurge(schedule string, purger Purger) error {
	_, err := s.cron.AddFunc(schedule, func() {
		defer observability.RecoverPanic(s.logger, "session purge")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.PurgeSessions(ctx, purger)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session purge: %w", err)
	}
	return nil
}

// PurgeSessions runs one purge and records how many sessions were removed
func (s *Scheduler) PurgeSessions(ctx context.Context, purger Purger) (int64, error) {
	start := time.Now()
	n, err := purger.Purge(ctx)
	if err != nil {
		s.logger.WithError(err).Error("session purge failed")
		return 0, err
	}

	if s.recorder != nil {
		s.recorder.SessionsPurged(n)
	}
	s.logger.WithFields(map[string]interface{}{
		"purged":      n,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("expired sessions purged")
	return n, nil
}

// AddDBStats samples stats on schedule and hands them to the recorder
func (s *Scheduler) AddDBStats(schedule string, stats func() sql.DBStats) error {
	if s.recorder == nil {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		defer observability.RecoverPanic(s.logger, "db stats")
		s.recorder.RecordDBStats(stats())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule db stats: %w", err)
	}
	return nil
}

// Len returns the number of scheduled jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", s.Len()).Info("maintenance scheduler started")
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runAll runs every scheduled job once, in schedule order
func (s *Scheduler) runAll() {
	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}
}
