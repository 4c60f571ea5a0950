package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// defaultJobTimeout bounds a single job run.
const defaultJobTimeout = 10 * time.Minute

// Purger deletes versions older than the retention period.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuditCleaner deletes audit log entries older than their retention period.
type AuditCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// PurgeJob runs the version retention sweep.
type PurgeJob struct {
	purger  Purger
	logger  *slog.Logger
	timeout time.Duration
}

// NewPurgeJob creates a retention sweep job.
func NewPurgeJob(p Purger, logger *slog.Logger) *PurgeJob {
	return &PurgeJob{purger: p, logger: orDefault(logger), timeout: defaultJobTimeout}
}

// Run implements cron.Job.
func (j *PurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		jobFailuresTotal.WithLabelValues(j.Name()).Inc()
		j.logger.Error("version purge failed", "job_name", j.Name(), "error", err)
		return
	}
	j.logger.Info("version purge finished", "job_name", j.Name(), "deleted", n)
}

// Name identifies the job in logs.
func (*PurgeJob) Name() string {
	return "VersionPurgeJob"
}

// AuditCleanupJob removes expired audit log entries.
type AuditCleanupJob struct {
	cleaner AuditCleaner
	logger  *slog.Logger
	timeout time.Duration
}

// NewAuditCleanupJob creates an audit log cleanup job.
func NewAuditCleanupJob(c AuditCleaner, logger *slog.Logger) *AuditCleanupJob {
	return &AuditCleanupJob{cleaner: c, logger: orDefault(logger), timeout: defaultJobTimeout}
}

// Run implements cron.Job.
func (j *AuditCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.cleaner.Cleanup(ctx)
	if err != nil {
		jobFailuresTotal.WithLabelValues(j.Name()).Inc()
		j.logger.Error("audit cleanup failed", "job_name", j.Name(), "error", err)
		return
	}
	j.logger.Info("audit cleanup finished", "job_name", j.Name(), "deleted", n)
}

// Name identifies the job in logs.
func (*AuditCleanupJob) Name() string {
	return "AuditCleanupJob"
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
