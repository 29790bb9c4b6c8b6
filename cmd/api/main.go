package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/novagile/wareflow-backend/api/routes"
	"github.com/novagile/wareflow-backend/internal/audit"
	"github.com/novagile/wareflow-backend/internal/ledger"
	"github.com/novagile/wareflow-backend/internal/overrides"
	"github.com/novagile/wareflow-backend/internal/tasks"
	"github.com/novagile/wareflow-backend/internal/users"
	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/db"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/metrics"
	"github.com/novagile/wareflow-backend/pkg/migrate"
	"github.com/novagile/wareflow-backend/pkg/outbox"
	"github.com/novagile/wareflow-backend/pkg/redis"
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

	gormDB := dbClient.DB()

	auditService, err := audit.NewService(audit.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	taskMetrics := metrics.NewTaskMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(
		ledger.NewRepository(gormDB),
		dbClient,
		auditService,
		outboxService,
		ledgerMetrics,
		cfg.Ledger,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	tasksRepo := tasks.NewRepository(gormDB)
	tasksService, err := tasks.NewService(
		tasksRepo,
		dbClient,
		usersService,
		auditService,
		outboxService,
		taskMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create tasks service", err)
		os.Exit(1)
	}

	overridesService, err := overrides.NewService(
		overrides.NewRepository(gormDB),
		tasksRepo,
		dbClient,
		usersService,
		auditService,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create overrides service", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ledgerService,
			tasksService,
			overridesService,
			auditService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
