package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/config"
	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/domain/availability"
	"github.com/tutorhub/tutorhub-api/internal/domain/billing"
	"github.com/tutorhub/tutorhub-api/internal/domain/booking"
	"github.com/tutorhub/tutorhub-api/internal/domain/calendar"
	"github.com/tutorhub/tutorhub-api/internal/domain/earnings"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/domain/notify"
	"github.com/tutorhub/tutorhub-api/internal/domain/recurring"
	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/jwt"
	"github.com/tutorhub/tutorhub-api/internal/pkg/logger"
	"github.com/tutorhub/tutorhub-api/internal/pkg/storage"
)

// payment providers retry for up to three days
const webhookDedupeTTL = 72 * time.Hour

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "tutorhub-api",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting TutorHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.RunMigrations {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Redis carries the cross-instance booking feed and webhook de-duplication.
	// Without it the API still serves a single instance.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running single instance")
			rdb = nil
		} else {
			defer database.CloseRedis(rdb)
		}
	}

	var store storage.Storage
	if cfg.StorageEnabled() {
		s3Store, err := storage.NewS3Storage(storage.Config{
			S3Endpoint:  cfg.S3Endpoint,
			S3Region:    cfg.S3Region,
			S3Bucket:    cfg.S3Bucket,
			S3AccessKey: cfg.S3AccessKey,
			S3SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 storage")
		}
		store = s3Store
	} else if cfg.ArchiveDir != "" {
		localStore, err := storage.NewLocalStorage(cfg.ArchiveDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archive directory")
		}
		store = localStore
		log.Info().Str("dir", cfg.ArchiveDir).Msg("Payroll archives stored on local disk")
	} else {
		log.Warn().Msg("No archive storage configured, payroll archives disabled")
	}

	defaults, err := earnings.ParseDefaults(cfg.DefaultHourlyRate, cfg.DefaultGroupHourlyRate, cfg.Currency)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default hourly rates")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- WebSocket hub ----------
	hub := notify.NewHub(rdb)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Repositories ----------
	auditRepo := audit.NewRepository(db)
	ledgerRepo := entitlement.NewRepository(db)
	windowRepo := availability.NewRepository(db)
	earningsRepo := earnings.NewRepository(db)
	classRepo := booking.NewRepository(db)
	seriesRepo := recurring.NewRepository(db)
	calendarRepo := calendar.NewRepository(db)

	// ---------- Services ----------
	entitlementService := entitlement.NewService(db, ledgerRepo, auditRepo)
	availabilityService := availability.NewService(db, windowRepo, auditRepo)
	earningsService := earnings.NewService(db, earningsRepo, auditRepo, defaults, store)
	bookingService := booking.NewService(db, classRepo, ledgerRepo, windowRepo, earningsService, auditRepo, hub, booking.Config{
		RequestTTL:       cfg.SlotRequestTTL,
		LateCancelWindow: cfg.LateCancelWindow,
	})
	seriesService := recurring.NewService(db, seriesRepo, bookingService, auditRepo, hub, recurring.Config{
		FailureThreshold: cfg.PaymentFailureThreshold,
		MaxWeeks:         cfg.SeriesMaxWeeks,
		WeeksAhead:       cfg.SeriesWeeksAhead,
	})
	projector := calendar.NewProjector(calendarRepo, windowRepo)

	if cfg.PaymentWebhookSecret == "" {
		log.Warn().Msg("PAYMENT_WEBHOOK_SECRET not set, payment events will be rejected")
	}

	// ---------- Handlers ----------
	h := handlers{
		booking:      booking.NewHandler(bookingService),
		availability: availability.NewHandler(availabilityService),
		series:       recurring.NewHandler(seriesService),
		calendar:     calendar.NewHandler(projector),
		wallet:       entitlement.NewHandler(entitlementService),
		earnings:     earnings.NewHandler(earningsService),
		audit:        audit.NewHandler(auditRepo),
		feed:         notify.NewHandler(hub, cfg.AllowedOrigins),
		webhooks:     billing.NewHandler(seriesService, billing.NewRedisDeduper(rdb, webhookDedupeTTL), cfg.PaymentWebhookSecret),
	}

	r := newRouter(cfg, h, middleware.Auth(jwtService))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
