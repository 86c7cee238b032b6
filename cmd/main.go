package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-settlement/audit"
	"github.com/Dosada05/tournament-settlement/config"
	"github.com/Dosada05/tournament-settlement/db"
	"github.com/Dosada05/tournament-settlement/handlers"
	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/realtime"
	"github.com/Dosada05/tournament-settlement/repositories"
	api "github.com/Dosada05/tournament-settlement/routes"
	"github.com/Dosada05/tournament-settlement/services"
	"github.com/Dosada05/tournament-settlement/settlement"
	"github.com/Dosada05/tournament-settlement/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("database connection established")

	// Хранилище изображений: R2, если настроено, иначе в памяти.
	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		uploader = storage.NewMemoryUploader(fmt.Sprintf("http://localhost:%d/files", cfg.ServerPort))
		logger.Warn("R2 is not configured, proof images are kept in memory")
	}
	proofs := storage.NewProofStore(uploader)

	// WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := realtime.NewHub(logger)
	go wsHub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	store := repositories.NewPostgresStore(dbConn, logger)
	now := func() time.Time { return time.Now().UTC() }
	env := services.Env{
		Store:     store,
		Audit:     audit.NewRecorder(now),
		Publisher: wsHub,
		Logger:    logger,
		Now:       now,
	}

	policy := settlement.Policy{
		PlatformFeePercent: cfg.PlatformFeePercent,
		InstallmentSplit:   cfg.InstallmentSplit,
	}
	gate := services.NewRiskGate(store.Tournaments(),
		services.RiskPolicy(cfg.AssessmentRisk),
		services.RiskPolicy(cfg.ProtectionRisk),
		now)

	registrationService := services.NewRegistrationService(env, policy)
	payoutService := services.NewPayoutService(env)
	cancellationService := services.NewCancellationService(env, gate, cfg.FanOutConcurrency)
	auditService := services.NewAuditService(env)
	notificationService := services.NewNotificationService(env)
	logger.Info("Services initialized")

	scheduler, err := services.NewFanOutScheduler(cancellationService, cfg.FanOutResumeInterval, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("scheduler shutdown failed", slog.Any("error", err))
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(router, middleware.NewAuthenticator(cfg.JWTSecretKey), api.Handlers{
		Registrations: handlers.NewRegistrationHandler(registrationService, proofs),
		Payouts:       handlers.NewPayoutHandler(payoutService),
		Cancellations: handlers.NewCancellationHandler(cancellationService),
		Audit:         handlers.NewAuditHandler(auditService, notificationService),
		Uploads:       handlers.NewUploadHandler(proofs),
		WebSocket:     handlers.NewWebSocketHandler(wsHub, payoutService, cfg.CORSOrigins),
	}, cfg.CORSOrigins)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	stopHub()
	logger.Info("server shutdown complete")
	return nil
}
