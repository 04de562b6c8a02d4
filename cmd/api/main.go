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

	httptransport "github.com/spec-kit/moments/internal/api/http"
	"github.com/spec-kit/moments/internal/api/http/handlers"
	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/observability"
	"github.com/spec-kit/moments/internal/persistence"
	"github.com/spec-kit/moments/internal/repository"
	"github.com/spec-kit/moments/internal/service"
	"github.com/spec-kit/moments/internal/worker"
)

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

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	sessionRepo := repository.NewSessionRepository(redis.Client)
	ledger := repository.NewTokenLedger(redis.Client)

	dispatcher := events.NewInMemoryDispatcher(logger)
	mailer, err := service.NewMailer(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("failed to init mailer", zap.Error(err))
	}
	notifications := service.NewNotificationService(dispatcher, mailer, cfg.App.BaseURL, logger, metrics)
	stopNotifications := worker.StartNotificationWorker(notifications, mailer, logger)
	defer stopNotifications()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Ledger:      ledger,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	accountService := service.NewAccountService(userRepo, sessionRepo, logger)

	cookie := auth.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:     handlers.NewAuthHandler(authService, cookie),
		Settings: handlers.NewSettingsHandler(authService),
		Admin:    handlers.NewAdminHandler(accountService),
		Sessions: auth.NewSessionMiddleware(authService, cookie),
		Guard:    auth.NewGuard(cfg.Auth.LockoutThreshold),
		Metrics:  metrics,
	})

	go func() {
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
