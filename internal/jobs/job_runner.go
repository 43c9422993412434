package jobs

import (
	"context"
	"fmt"

	"forum-invitations/internal/config"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/metrics"
	"forum-invitations/internal/repository"
	"forum-invitations/internal/service"
)

const (
	JobSweepStaleInvitations = "sweep-stale-invitations"
	JobPurgeExpiredKeys      = "purge-expired-keys"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	invitations service.InvitationService
	purger      repository.KeyPurger
	config      *config.Config
}

// NewJobRunner creates a new job runner. purger may be nil when the store
// expires keys on its own.
func NewJobRunner(invitations service.InvitationService, purger repository.KeyPurger, cfg *config.Config) *JobRunner {
	return &JobRunner{
		invitations: invitations,
		purger:      purger,
		config:      cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		metrics.JobRun(jobName, err)
	}()

	logger.Info("Starting job", "job", jobName)
	if err = jobFunc(); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err)
		return err
	}
	logger.Info("Job completed", "job", jobName)
	return nil
}

// SweepStaleInvitations drops invitation references whose record or token
// has gone away
func (jr *JobRunner) SweepStaleInvitations() error {
	return jr.runWithRecovery(JobSweepStaleInvitations, func() error {
		removed, err := jr.invitations.SweepStaleInvitations(context.Background())
		if err != nil {
			return fmt.Errorf("failed to sweep stale invitations: %w", err)
		}
		logger.Info("Swept stale invitations", "removed", removed)
		return nil
	})
}

// PurgeExpiredKeys deletes expired token records from stores that only
// expire them lazily
func (jr *JobRunner) PurgeExpiredKeys() error {
	return jr.runWithRecovery(JobPurgeExpiredKeys, func() error {
		if jr.purger == nil {
			logger.Debug("Store expires keys itself, nothing to purge")
			return nil
		}
		n, err := jr.purger.PurgeExpired(context.Background())
		if err != nil {
			return fmt.Errorf("failed to purge expired keys: %w", err)
		}
		logger.Info("Purged expired keys", "count", n)
		return nil
	})
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() error {
	sweepErr := jr.SweepStaleInvitations()
	purgeErr := jr.PurgeExpiredKeys()
	if sweepErr != nil {
		return sweepErr
	}
	return purgeErr
}

// RunOnce runs a single job by name
func (jr *JobRunner) RunOnce(jobName string) error {
	switch jobName {
	case JobSweepStaleInvitations:
		return jr.SweepStaleInvitations()
	case JobPurgeExpiredKeys:
		return jr.PurgeExpiredKeys()
	case "all":
		return jr.RunAll()
	}
	return fmt.Errorf("unknown job: %s", jobName)
}
