package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tablewise/floorstaff-backend/api/routes"
	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/internal/realtime"
	"github.com/tablewise/floorstaff-backend/pkg/auth/session"
	"github.com/tablewise/floorstaff-backend/pkg/config"
	"github.com/tablewise/floorstaff-backend/pkg/db"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/migrate"
	"github.com/tablewise/floorstaff-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	broadcaster, err := realtime.NewBroadcaster(realtime.BroadcasterParams{
		Bus:     redisClient,
		Sub:     redisClient,
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
	factory, err := assignments.NewFactory(assignments.FactoryParams{
		Repo:   repo,
		Engine: engine,
		Events: broadcaster,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment factory", err)
		os.Exit(1)
	}

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	go func() {
		if err := broadcaster.Run(relayCtx); err != nil && relayCtx.Err() == nil {
			logg.Error(relayCtx, "staff event relay stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, engine, factory, hub),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
