package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	httpapi "forum-invitations/internal/api/http"
	"forum-invitations/internal/bootstrap"
	"forum-invitations/internal/config"
	"forum-invitations/internal/domain"
	"forum-invitations/internal/events"
	"forum-invitations/internal/i18n"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/security"
	"forum-invitations/internal/service"
	"forum-invitations/internal/telemetry"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Forum Invitations API...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "health_address", cfg.GetHealthAddress())
	logger.Info("Invitation configuration",
		"base_url", cfg.Invitation.BaseURL,
		"expiration_days", cfg.Invitation.ExpirationDays,
		"registration_type", cfg.Invitation.RegistrationType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize Repositories
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.Close()

	// Initialize Translations
	translator, err := i18n.New()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}
	logger.Info("Translations loaded", "languages", translator.Languages())

	// Initialize Email Service
	var emailSvc service.EmailService
	if cfg.SendGrid.APIKey != "" {
		logger.Info("SendGrid configuration", "from", cfg.SendGrid.FromEmail, "templates", len(cfg.SendGrid.Templates))
		emailSvc = service.NewSendGridEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, cfg.SendGrid.Templates)
	} else {
		logger.Warn("No SendGrid API key configured; invitation emails are only logged")
		emailSvc = service.NewLogEmailService()
	}

	// Initialize Event Bus
	bus := events.NewBus(cfg.Events.QueueSize, cfg.Events.Workers)
	bus.Subscribe("log", "", events.LogObserver)
	bus.Start(ctx)

	// Initialize Services
	registrationType := domain.RegistrationType(cfg.Invitation.RegistrationType)
	invitationSvc := service.NewInvitationService(
		stores.KV,
		stores.Users,
		stores.Groups,
		emailSvc,
		translator,
		bus,
		service.InvitationSettings{
			BaseURL:          cfg.Invitation.BaseURL,
			ExpirationDays:   cfg.Invitation.ExpirationDays,
			RegistrationType: registrationType,
			DefaultLang:      cfg.Invitation.DefaultLang,
			Title:            cfg.Invitation.Title,
			BrowserTitle:     cfg.Invitation.BrowserTitle,
		},
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	router := httpapi.NewRouter(httpapi.Options{
		Service:          invitationSvc,
		Tokens:           tokenManager,
		Translator:       translator,
		DefaultLang:      cfg.Invitation.DefaultLang,
		RegistrationType: registrationType,
	})

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up gRPC health server
	var grpcServer *grpc.Server
	healthSvc := health.NewServer()
	if addr := cfg.GetHealthAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthSvc)
		// Register reflection service for grpcurl
		reflection.Register(grpcServer)

		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC health", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()
	healthSvc.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	healthSvc.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	bus.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown failed", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
