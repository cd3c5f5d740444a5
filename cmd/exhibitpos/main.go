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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/exhibit-pos/exhibit-pos/cmd/exhibitpos/cli"
	"github.com/exhibit-pos/exhibit-pos/internal/app"
	"github.com/exhibit-pos/exhibit-pos/internal/auth"
	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	"github.com/exhibit-pos/exhibit-pos/internal/dashboard"
	"github.com/exhibit-pos/exhibit-pos/internal/exhibitions"
	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/observability"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/cache"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/db"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/sales"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
	"github.com/exhibit-pos/exhibit-pos/internal/users"
	"github.com/exhibit-pos/exhibit-pos/jobs"
	"github.com/exhibit-pos/exhibit-pos/migrations"
)

const usage = `usage: exhibitpos [serve | migrate | jobs trigger <name> | jobs stats]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrations.Apply(ctx, pool, logger)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	ops := cli.NewJobsCLI(cfg.RedisOpts())
	defer func() { _ = ops.Close() }()

	switch {
	case len(args) == 2 && args[0] == "trigger":
		info, err := ops.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
		return nil
	case len(args) == 1 && args[0] == "stats":
		stats, err := ops.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
		return nil
	default:
		return fmt.Errorf("%s\njobs: %v", usage, cli.JobNames())
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, dbpool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionSecret, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	rbacService := rbac.NewService(usersService)
	rbacMiddleware := rbac.Middleware{Sessions: sessionManager, Service: rbacService, Logger: logger}
	authService := auth.NewService(usersRepo, sessionManager, logger)

	inventoryRepo := inventory.NewRepository(dbpool)
	stock := inventory.NewService(inventoryRepo, inventoryRepo, logger, metrics)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), stock)
	exhibitionsService := exhibitions.NewService(exhibitions.NewRepository(dbpool), inventoryRepo, auditLogger)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	if err := dashboardCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("dashboard invalidation subscribe", slog.Any("error", err))
	}
	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), dashboardCache, logger)

	jobClient := jobs.NewClient(cfg.RedisOpts(), logger)
	defer func() { _ = jobClient.Close() }()
	inspector := asynq.NewInspector(cfg.RedisOpts())
	defer func() { _ = inspector.Close() }()

	salesService := sales.NewService(sales.Deps{
		Repo:        sales.NewRepository(dbpool),
		Products:    catalogService,
		Exhibitions: exhibitionsService,
		Stock:       stock,
		Policies:    cfg.PricingPolicies(),
		Audit:       auditLogger,
		Listeners:   []sales.Listener{metrics, dashboardService, jobClient},
		Logger:      logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, rbacMiddleware),
		ExhibitionsHandler: exhibitions.NewHandler(logger, exhibitionsService, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware, idempotencyStore),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		HealthChecks:       healthChecks(dbpool, redisClient),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func healthChecks(pool *pgxpool.Pool, client *redis.Client) map[string]app.Pinger {
	return map[string]app.Pinger{
		"postgres": pool,
		"redis": app.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}),
	}
}
