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

	httptransport "github.com/spec-kit/fieldops-console/internal/api/http"
	"github.com/spec-kit/fieldops-console/internal/api/http/handlers"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/events"
	"github.com/spec-kit/fieldops-console/internal/observability"
	"github.com/spec-kit/fieldops-console/internal/persistence"
	"github.com/spec-kit/fieldops-console/internal/repository"
	"github.com/spec-kit/fieldops-console/internal/service"
	"github.com/spec-kit/fieldops-console/internal/worker"
)

// stores groups the repositories behind the services.
type stores struct {
	tenants  repository.TenantRepository
	staff    repository.StaffRepository
	sessions repository.SessionRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	dependencies := map[string]handlers.Pinger{}
	var repos stores
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = stores{
			tenants:  repository.NewTenantRepository(pool),
			staff:    repository.NewStaffRepository(pool),
			sessions: repository.NewSessionRepository(pool),
		}
		dependencies["postgres"] = pg
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		memory := repository.NewMemoryStore(nil)
		repos = stores{tenants: memory.Tenants(), staff: memory.Staff(), sessions: memory.Sessions()}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()
	limiter, denylist := rdb.Stores(cache.NewMemory(nil))
	if rdb.Available() {
		dependencies["redis"] = rdb
	}

	metrics := observability.NewMetrics()
	inner := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(inner, logger, cfg.Notification)
	dispatcher := worker.StartNotificationWorker(notifications, inner, 128, logger)
	defer dispatcher.Stop()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		TenantRepo:  repos.tenants,
		StaffRepo:   repos.staff,
		SessionRepo: repos.sessions,
		Denylist:    denylist,
		Logger:      logger,
	})
	pinService := service.NewPINService(*cfg, service.PINDependencies{
		TenantRepo: repos.tenants,
		StaffRepo:  repos.staff,
		Sessions:   authService,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	staffService := service.NewStaffService(*cfg, service.StaffDependencies{
		StaffRepo:   repos.staff,
		SessionRepo: repos.sessions,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	resolver := service.NewResolverService(repos.tenants, repos.staff)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.staff, denylist, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, dependencies),
		Links:          handlers.NewLinkHandler(resolver),
		PINs:           handlers.NewPINHandler(pinService),
		Auth:           handlers.NewAuthHandler(authService),
		Staff:          handlers.NewStaffHandler(staffService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
