package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/internal/cron"
	"github.com/tablewise/floorstaff-backend/internal/realtime"
	"github.com/tablewise/floorstaff-backend/pkg/config"
	"github.com/tablewise/floorstaff-backend/pkg/db"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/metrics"
	"github.com/tablewise/floorstaff-backend/pkg/migrate"
	"github.com/tablewise/floorstaff-backend/pkg/redis"
)

const lockKeyFormat = "fs:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	hub := realtime.NewHub()
	broadcaster, err := realtime.NewBroadcaster(realtime.BroadcasterParams{
		Bus:     redisClient,
		Hub:     hub,
		Channel: cfg.Realtime.StaffChannel,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create broadcaster", err)
		os.Exit(1)
	}

	repo := assignments.NewRepository(dbClient.DB())
	engine, err := assignments.NewService(assignments.ServiceParams{
		Repo:         repo,
		Events:       broadcaster,
		Logger:       logg,
		ClaimTimeout: cfg.Sweep.ClaimTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create claim engine", err)
		os.Exit(1)
	}

	timeoutJob, err := cron.NewAssignmentTimeoutJob(cron.AssignmentTimeoutJobParams{
		Logger:    logg,
		Reader:    repo,
		Engine:    engine,
		BatchSize: cfg.Sweep.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create timeout sweep job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(timeoutJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
