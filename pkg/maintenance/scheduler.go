// Package maintenance runs periodic housekeeping jobs for the version store.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Default schedules, in six-field cron syntax with seconds.
const (
	DefaultPurgeSchedule        = "0 30 3 * * *"
	DefaultAuditCleanupSchedule = "0 0 4 * * *"
)

// Scheduler wraps a cron instance with logging and panic recovery.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   int
}

// NewScheduler creates a scheduler. A nil logger uses slog.Default.
func NewScheduler(logger *slog.Logger) *Scheduler {
	logger = orDefault(logger).With("system", "cron")
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	return &Scheduler{cron: c, logger: logger}
}

// Add registers a job under a cron schedule. An empty schedule disables it.
func (s *Scheduler) Add(schedule string, job cron.Job) error {
	if schedule == "" {
		s.logger.Info("job disabled", "job_name", jobName(job))
		return nil
	}
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("scheduling %s: %w", jobName(job), err)
	}
	s.jobs++
	s.logger.Info("job registered", "job_name", jobName(job), "schedule", schedule)
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return s.jobs
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "jobs", s.jobs)
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}
