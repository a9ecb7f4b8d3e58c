package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/advisor"
	httptransport "github.com/opsdesk/support-engine/internal/api/http"
	"github.com/opsdesk/support-engine/internal/api/http/handlers"
	"github.com/opsdesk/support-engine/internal/auth"
	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/forum"
	"github.com/opsdesk/support-engine/internal/notify"
	"github.com/opsdesk/support-engine/internal/observability"
	"github.com/opsdesk/support-engine/internal/persistence"
	"github.com/opsdesk/support-engine/internal/repository"
	"github.com/opsdesk/support-engine/internal/service"
	"github.com/opsdesk/support-engine/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketStore repository.TicketStore
		auditStore  repository.AuditLogStore
		inAppStore  repository.InAppNotificationStore
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketStore = repository.NewPostgresTicketStore(pool)
		auditStore = repository.NewPostgresAuditLogStore(pool)
		inAppStore = repository.NewPostgresInAppNotificationStore(pool)
	} else {
		logger.Warn("running with in-memory stores; data is not persisted")
		ticketStore = repository.NewMemoryTicketStore()
		auditStore = repository.NewMemoryAuditLogStore()
		inAppStore = repository.NewMemoryInAppNotificationStore()
	}

	var lease repository.EscalationLease
	if redis.Client != nil && redis.Ping(ctx) == nil {
		lease = repository.NewRedisLease(redis.Client, cfg.Escalation.LeaseTTL())
	} else {
		lease = repository.NewNoopLease()
	}

	metrics := observability.NewMetrics()

	dispatcher := notify.NewFanoutDispatcher(logger, metrics,
		cfg.Notify.SinkTimeout(), cfg.Notify.MaxRetries,
		notify.NewSlackSink(cfg.Notify),
		notify.NewCRMSink(cfg.Notify),
		notify.NewEmailSink(cfg.Notify),
		notify.NewInAppSink(inAppStore),
	)
	notify.DefaultRoutes(dispatcher)

	auditService := service.NewAuditService(auditStore, logger)

	engine := service.NewLifecycleEngine(service.LifecycleDependencies{
		Store:      ticketStore,
		Advisor:    advisor.NewHTTPAdvisor(cfg.Advisor),
		Forum:      forum.NewHTTPClient(cfg.Forum),
		Dispatcher: dispatcher,
		Audit:      auditService,
		Logger:     logger,
		AdvisorCfg: cfg.Advisor,
	})
	mergeService := service.NewDuplicateMergeService(ticketStore, auditService)
	gdprService := service.NewGDPRService(ticketStore, auditService, logger)
	analyticsService := service.NewAnalyticsService(ticketStore)
	exportService := service.NewExportService(ticketStore)

	scanner := service.NewEscalationScanner(ticketStore, lease, dispatcher, auditService, logger, cfg.Escalation)
	escalationWorker := worker.NewEscalationWorker(ctx, scanner, cfg.Escalation.CronSchedule, logger)
	if err := escalationWorker.Start(); err != nil {
		logger.Fatal("failed to start escalation worker", zap.Error(err))
	}
	defer escalationWorker.Stop()

	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(verifier)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(engine, mergeService),
		Export:         handlers.NewExportHandler(exportService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		GDPR:           handlers.NewGDPRHandler(gdprService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
