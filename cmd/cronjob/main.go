package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"forum-invitations/internal/bootstrap"
	"forum-invitations/internal/config"
	"forum-invitations/internal/domain"
	"forum-invitations/internal/i18n"
	"forum-invitations/internal/jobs"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/scheduler"
	"forum-invitations/internal/service"
)

// discard drops lifecycle events; maintenance jobs never issue invitations
type discard struct{}

func (discard) Publish(domain.Event) {}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'sweep-stale-invitations', 'purge-expired-keys', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Forum Invitations Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Repositories
	stores, err := bootstrap.OpenStores(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.Close()

	translator, err := i18n.New()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// Initialize Services
	invitationSvc := service.NewInvitationService(
		stores.KV,
		stores.Users,
		stores.Groups,
		service.NewLogEmailService(),
		translator,
		discard{},
		service.InvitationSettings{
			BaseURL:          cfg.Invitation.BaseURL,
			ExpirationDays:   cfg.Invitation.ExpirationDays,
			RegistrationType: domain.RegistrationType(cfg.Invitation.RegistrationType),
			DefaultLang:      cfg.Invitation.DefaultLang,
		},
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(invitationSvc, stores.Purger, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := jobRunner.RunOnce(*runOnce); err != nil {
			logger.Error("Job execution failed", "job", *runOnce, "error", err)
			fmt.Printf("Available jobs:\n")
			fmt.Printf("  - %s\n", jobs.JobSweepStaleInvitations)
			fmt.Printf("  - %s\n", jobs.JobPurgeExpiredKeys)
			fmt.Printf("  - all\n")
			stores.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}
