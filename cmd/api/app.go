package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/mail"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

// application holds the wired dependency graph shared by every command.
type application struct {
	cfg    *config.Config
	logger *zap.Logger

	metrics  *observability.Metrics
	postgres *persistence.Postgres
	redis    *persistence.Redis
	redisUp  bool
	store    repository.Store

	dispatcher    events.Dispatcher
	tokens        *auth.TokenManager
	tickets       *service.TicketService
	notifications *service.NotificationService
	auth          *service.AuthService
	maintenance   *service.MaintenanceService
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

// newApplication connects to the backing services and builds the services.
// Without POSTGRES_DSN the in-memory store is used; an unreachable Redis
// disables the unread counter cache and the maintenance lock.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	app.postgres = pg

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		app.store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		app.store = memory.NewStore()
	}

	app.redis = persistence.NewRedis(cfg.Redis, logger)
	app.redisUp = app.redis.Ping(ctx) == nil

	app.dispatcher = events.NewInMemoryDispatcher(logger)
	app.tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app.tickets = service.NewTicketService(service.TicketDependencies{
		Store:      app.store,
		Dispatcher: app.dispatcher,
		Logger:     logger.Named("tickets"),
		Metrics:    app.metrics,
	})

	notifyDeps := service.NotificationDependencies{
		Store:      app.store,
		Dispatcher: app.dispatcher,
		CacheTTL:   time.Duration(cfg.Notification.UnreadCacheTTLSeconds) * time.Second,
		Logger:     logger.Named("notifications"),
	}
	if app.redisUp {
		notifyDeps.Cache = app.redis.Client
	}
	if cfg.Notification.EmailEnabled() {
		notifyDeps.Mailer = mail.NewSMTPSender(cfg.Notification)
	}
	app.notifications = service.NewNotificationService(notifyDeps)
	app.notifications.RegisterHandlers()

	app.auth = service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Store:  app.store,
		Tokens: app.tokens,
		Logger: logger.Named("auth"),
	})

	app.maintenance = service.NewMaintenanceService(service.MaintenanceDependencies{
		Store:         app.store,
		Tickets:       app.tickets,
		Notifications: app.notifications,
		Settings:      service.SettingsFromConfig(cfg.Maintenance),
		Metrics:       app.metrics,
		Logger:        logger.Named("maintenance"),
	})

	if cfg.Auth.BootstrapAdminEmail != "" {
		if _, err := app.auth.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminName, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
			app.close()
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	return app, nil
}

// healthDeps lists what the readiness probe checks. Redis only counts when
// it was reachable at startup; without it the service runs uncached.
func (a *application) healthDeps() map[string]handlers.Pinger {
	return readinessDeps(a.postgres, a.redis, a.redisUp)
}

func readinessDeps(pg *persistence.Postgres, rdb *persistence.Redis, redisUp bool) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	if redisUp {
		deps["redis"] = rdb
	}
	return deps
}

// maintenanceWorker returns the periodic sweeper, guarded by a Redis lock
// when Redis is reachable.
func (a *application) maintenanceWorker() *worker.MaintenanceWorker {
	var lock *worker.Lock
	if a.redisUp {
		lock = worker.NewLock(a.redis.Client, worker.LockKey, a.cfg.Maintenance.LockTTL())
	}
	return worker.NewMaintenanceWorker(a.maintenance, lock, a.cfg.Maintenance.Interval(), a.logger.Named("worker"))
}

func (a *application) close() {
	a.redis.Close()
	a.postgres.Close()
}
