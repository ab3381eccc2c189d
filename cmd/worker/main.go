package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/config"
	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/domain/availability"
	"github.com/tutorhub/tutorhub-api/internal/domain/booking"
	"github.com/tutorhub/tutorhub-api/internal/domain/earnings"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/domain/notify"
	"github.com/tutorhub/tutorhub-api/internal/domain/recurring"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/logger"
)

const (
	runTimeout = 10 * time.Minute
	lockTTL    = 30 * time.Minute
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "tutorhub-worker",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().Str("schedule", cfg.SeriesCron).Int("weeks_ahead", cfg.SeriesWeeksAhead).Msg("Starting series worker")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.RunMigrations {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Redis is optional: it fans booking events out to API instances and
	// keeps two workers from generating the same run.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = database.NewRedis(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, events stay local and runs are not locked")
			rdb = nil
		} else {
			defer database.CloseRedis(rdb)
		}
	}

	defaults, err := earnings.ParseDefaults(cfg.DefaultHourlyRate, cfg.DefaultGroupHourlyRate, cfg.Currency)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default hourly rates")
	}

	hub := notify.NewHub(rdb)
	go hub.Run()
	defer hub.Shutdown()

	auditRepo := audit.NewRepository(db)
	windowRepo := availability.NewRepository(db)
	earningsService := earnings.NewService(db, earnings.NewRepository(db), auditRepo, defaults, nil)
	bookingService := booking.NewService(db, booking.NewRepository(db), entitlement.NewRepository(db), windowRepo, earningsService, auditRepo, hub, booking.Config{
		RequestTTL:       cfg.SlotRequestTTL,
		LateCancelWindow: cfg.LateCancelWindow,
	})
	seriesService := recurring.NewService(db, recurring.NewRepository(db), bookingService, auditRepo, hub, recurring.Config{
		FailureThreshold: cfg.PaymentFailureThreshold,
		MaxWeeks:         cfg.SeriesMaxWeeks,
		WeeksAhead:       cfg.SeriesWeeksAhead,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &generateJob{
		series:     seriesService,
		redis:      rdb,
		weeksAhead: cfg.SeriesWeeksAhead,
		ctx:        ctx,
	}

	cl := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddJob(cfg.SeriesCron, job); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SeriesCron).Msg("Invalid SERIES_CRON")
	}
	c.Start()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	log.Info().Msg("Shutdown signal received")

	cancel()
	<-c.Stop().Done()
	log.Info().Msg("series worker stopped")
}

type seriesGenerator interface {
	GenerateAllActive(ctx context.Context, weeksAhead int) (int, error)
}

// generateJob tops up every active series to the booking horizon
type generateJob struct {
	series     seriesGenerator
	redis      *redis.Client
	weeksAhead int
	ctx        context.Context
	now        func() time.Time
}

func (j *generateJob) Run() {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	started := now().UTC()

	ctx, cancel := context.WithTimeout(j.ctx, runTimeout)
	defer cancel()

	key := "worker:series:" + started.Truncate(time.Minute).Format(time.RFC3339)
	claimed, err := database.ClaimOnce(ctx, j.redis, key, lockTTL)
	if err != nil {
		log.Error().Err(err).Msg("series run lock failed")
		return
	}
	if !claimed {
		log.Info().Str("run", key).Msg("series run already taken by another worker")
		return
	}

	booked, err := j.series.GenerateAllActive(ctx, j.weeksAhead)
	if err != nil {
		log.Error().Err(err).Msg("series generation failed")
		return
	}
	log.Info().
		Int("booked", booked).
		Dur("duration", now().Sub(started)).
		Msg("series generation finished")
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
