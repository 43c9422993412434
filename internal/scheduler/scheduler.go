package scheduler

import (
	"fmt"
	"time"

	"forum-invitations/internal/jobs"
	"forum-invitations/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	scheduled := []struct {
		name string
		spec string
		run  func() error
	}{
		{jobs.JobSweepStaleInvitations, cfg.SweepStaleInvitations, s.jobs.SweepStaleInvitations},
		{jobs.JobPurgeExpiredKeys, cfg.PurgeExpiredKeys, s.jobs.PurgeExpiredKeys},
	}

	for _, job := range scheduled {
		// Failures are logged and counted by the runner
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() { _ = run() }); err != nil {
			logger.Error("Failed to register job", "job", job.name, "spec", job.spec, "error", err)
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
		logger.Debug("Registered job", "job", job.name, "spec", job.spec)
	}

	logger.Info("All cron jobs registered successfully")
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// NextRuns returns the next activation time of every registered job
func (s *Scheduler) NextRuns(from time.Time) []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Schedule.Next(from))
	}
	return next
}
