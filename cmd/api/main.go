package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/handler"
	"github.com/campuslife/campus-events-api/internal/models"
	"github.com/campuslife/campus-events-api/internal/repository"
	"github.com/campuslife/campus-events-api/internal/service"
	"github.com/campuslife/campus-events-api/pkg/cache"
	"github.com/campuslife/campus-events-api/pkg/config"
	"github.com/campuslife/campus-events-api/pkg/database"
	"github.com/campuslife/campus-events-api/pkg/jobs"
	"github.com/campuslife/campus-events-api/pkg/logger"
	"github.com/campuslife/campus-events-api/pkg/storage"
)

// @title Campus Events API
// @version 1.0.0
// @description Event participation lifecycle service: registrations, QR check-in and post-event feedback
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheEnabled = false
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Feedback.CacheTTL, logr, cacheEnabled)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-events-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		BufferSize: cfg.Notifications.QueueSize,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	}, logr)
	eventSvc := service.NewEventService(eventRepo, store, signer, cacheSvc, notificationSvc, service.EventUploadPolicy{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, eventRepo, notificationSvc, store, metricsSvc, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, registrationRepo, eventRepo, cacheSvc, service.FeedbackPolicy{
		WindowDays: cfg.Feedback.WindowDays,
		MaxPending: cfg.Feedback.MaxPending,
		CacheTTL:   cfg.Feedback.CacheTTL,
	}, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notificationSvc.Start(rootCtx)
		defer notificationSvc.Stop()
	}

	// Lifecycle ticker keeps stored event statuses in step with wall-clock
	// time between request-driven reconciliations.
	go runLifecycleTicker(rootCtx, eventSvc, metricsSvc, logr)
	go runExportJanitor(rootCtx, store, cfg.Uploads.ExportRetention, logr)

	router := buildRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		metrics:       metricsSvc,
		authHandler:   handler.NewAuthHandler(authSvc),
		userHandler:   handler.NewUserHandler(userSvc),
		eventHandler:  handler.NewEventHandler(eventSvc, cacheSvc),
		regHandler:    handler.NewRegistrationHandler(registrationSvc),
		fbHandler:     handler.NewFeedbackHandler(feedbackSvc),
		notifHandler:  handler.NewNotificationHandler(notificationSvc),
		uploadHandler: handler.NewUploadHandler(store, signer),
		metricHandler: handler.NewMetricsHandler(metricsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func runLifecycleTicker(ctx context.Context, events *service.EventService, metrics *service.MetricsService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			transitions, err := events.AutoTransition(ctx)
			if err != nil {
				logr.Warn("lifecycle tick failed", zap.Error(err))
				continue
			}
			for range transitions.StartedEvents {
				metrics.RecordTransition(models.EventStatusOngoing)
			}
			for range transitions.CompletedEvents {
				metrics.RecordTransition(models.EventStatusCompleted)
			}
			if len(transitions.StartedEvents) > 0 || len(transitions.CompletedEvents) > 0 {
				logr.Info("lifecycle tick applied transitions",
					zap.Int("started", len(transitions.StartedEvents)),
					zap.Int("completed", len(transitions.CompletedEvents)))
			}
		}
	}
}

// runExportJanitor prunes archived attendee exports past their retention.
func runExportJanitor(ctx context.Context, store *storage.LocalStorage, retention time.Duration, logr *zap.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupOlderThan("exports", retention)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logr.Info("pruned archived exports", zap.Int("count", len(deleted)))
			}
		}
	}
}
