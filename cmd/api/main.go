package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/factoryops/jobdesk-permit/internal/api/http"
	"github.com/factoryops/jobdesk-permit/internal/api/http/handlers"
	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/config"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/observability"
	"github.com/factoryops/jobdesk-permit/internal/persistence"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	"github.com/factoryops/jobdesk-permit/internal/repository/memory"
	"github.com/factoryops/jobdesk-permit/internal/service"
	"github.com/factoryops/jobdesk-permit/internal/worker"
)

type stores struct {
	staff       repository.StaffRepository
	jobdesks    repository.JobdeskRepository
	policy      repository.PolicyRepository
	permissions repository.PermissionRepository
	sessions    repository.SessionStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := cfg.App.Location()
	if err != nil {
		logger.Fatal("invalid APP_TIMEZONE", zap.Error(err))
	}
	clk := clock.NewSystem(loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	healthDeps := map[string]handlers.Pinger{}
	mem := memory.NewStore().WithClock(clk.Now)
	repos := stores{
		staff:       mem.Staff(),
		jobdesks:    mem.Jobdesks(),
		policy:      mem.Policy(),
		permissions: mem.Permissions(),
		sessions:    mem.Sessions(),
	}
	if pool := pg.PoolHandle(); pool != nil {
		repos.staff = repository.NewStaffRepository(pool)
		repos.jobdesks = repository.NewJobdeskRepository(pool)
		repos.policy = repository.NewPolicyRepository(pool)
		repos.permissions = repository.NewPermissionRepository(pool)
		healthDeps["postgres"] = pg
	} else {
		logger.Warn("running with in-memory storage; data is lost on restart")
	}

	if cfg.Redis.Addr != "" {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		if err := redis.Ping(ctx); err != nil {
			logger.Warn("redis unreachable; keeping sessions in process", zap.Error(err))
		} else {
			repos.sessions = repository.NewRedisSessionStore(redis.Client, clk.Now)
			healthDeps["redis"] = redis
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	policyService := service.NewPolicyService(service.PolicyDependencies{
		PolicyRepo: repos.policy,
		Fallback:   cfg.Policy,
		Clock:      clk,
		Logger:     logger,
	})
	if err := policyService.EnsureStored(ctx); err != nil {
		logger.Fatal("failed to store initial policy", zap.Error(err))
	}

	engine := service.NewPermissionEngine(service.EngineDependencies{
		StaffRepo:      repos.staff,
		JobdeskRepo:    repos.jobdesks,
		PermissionRepo: repos.permissions,
		Policies:       policyService,
		Clock:          clk,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, clk.Now)
	gate := service.NewSessionGate(cfg.Auth, service.GateDependencies{
		StaffRepo:    repos.staff,
		SessionStore: repos.sessions,
		Engine:       engine,
		Policies:     policyService,
		Tokens:       tokens,
		Clock:        clk,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	adminService := service.NewAdminService(cfg.Auth, service.AdminDependencies{
		StaffRepo:   repos.staff,
		JobdeskRepo: repos.jobdesks,
		Engine:      engine,
		Policies:    policyService,
		Clock:       clk,
		Logger:      logger,
	})
	if err := adminService.Seed(ctx, cfg.App.SeedDemoData); err != nil {
		logger.Fatal("failed to seed data", zap.Error(err))
	}

	notifications := service.NewNotificationService(dispatcher, service.NewLogNotifier(logger), logger)
	worker.StartNotificationWorker(notifications)

	scheduler := worker.NewExpiryScheduler(ctx, worker.SchedulerDependencies{
		Engine:     engine,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	workerDone := worker.StartExpiryWorker(ctx, scheduler, cfg.Worker.SweepInterval(), logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:           handlers.NewAuthHandler(gate),
		Permissions:    handlers.NewPermissionHandler(engine),
		Admin:          handlers.NewAdminHandler(adminService, policyService, engine),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.sessions, repos.staff),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
	cancel()
	<-workerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
