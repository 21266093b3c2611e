package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bridge/internal/api/http"
	"github.com/spec-kit/ticket-bridge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bridge/internal/auth"
	"github.com/spec-kit/ticket-bridge/internal/chat"
	"github.com/spec-kit/ticket-bridge/internal/config"
	"github.com/spec-kit/ticket-bridge/internal/dedup"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/httpclient"
	"github.com/spec-kit/ticket-bridge/internal/normalize"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/persistence"
	"github.com/spec-kit/ticket-bridge/internal/repository"
	"github.com/spec-kit/ticket-bridge/internal/service"
	"github.com/spec-kit/ticket-bridge/internal/ticketing"
	"github.com/spec-kit/ticket-bridge/internal/worker"
)

func main() {
	flagSet := pflag.NewFlagSet("ticket-bridge", pflag.ExitOnError)
	envFiles := flagSet.StringSlice("env-file", nil, "env file to load before reading the environment (repeatable, default ./.env)")
	checkOnly := flagSet.Bool("check-config", false, "validate configuration and exit")
	_ = flagSet.Parse(os.Args[1:])

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if *checkOnly {
		log.Println("configuration ok")
		return
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	caller := httpclient.New(httpclient.Options{
		Timeout:           cfg.Outbound.Timeout(),
		MaxRetries:        cfg.Outbound.MaxRetries,
		BaseDelay:         cfg.Outbound.RetryBaseDelay(),
		RateLimitFallback: cfg.Outbound.RateLimitFallback(),
	}, logger)

	ticketingClient := ticketing.NewClient(ticketing.Config{
		BaseURL:      cfg.Ticketing.BaseURL,
		ClientID:     cfg.Ticketing.ClientID,
		ClientSecret: cfg.Ticketing.ClientSecret,
		TokenPath:    cfg.Ticketing.TokenPath,
	}, caller, logger)
	chatClient := chat.NewClient(chat.Config{BaseURL: cfg.Chat.BaseURL, BotToken: cfg.Chat.BotToken}, caller)

	var backend dedup.Backend = dedup.NewMemoryBackend()
	if cfg.Sync.DedupBackend == "redis" {
		backend = dedup.NewRedisBackend(redis.Client, "")
	}
	window := dedup.NewWindow(backend, cfg.Sync.DedupWindow(), logger)
	logger.Info("dedup window configured",
		zap.String("backend", cfg.Sync.DedupBackend),
		zap.Duration("window", window.Window()))

	normalizer := normalize.Default()
	if cfg.Sync.AliasFile != "" {
		overrides, err := normalize.LoadAliasFile(cfg.Sync.AliasFile)
		if err != nil {
			logger.Fatal("invalid alias file", zap.String("path", cfg.Sync.AliasFile), zap.Error(err))
		}
		normalizer = normalize.New(normalize.WithOverrides(overrides))
		logger.Info("alias overrides loaded", zap.Int("fields", len(overrides)))
	}

	store := repository.NewCorrelationRepository()
	users := repository.NewUserCache(cfg.Sync.UserCacheTTL())
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(dispatcher, chatClient, metrics, logger)
	worker.StartNotificationWorker(notificationService, logger)

	if cfg.Events.AMQPURL != "" {
		exporter, err := events.NewAMQPExporter(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.App.Name, logger)
		if err != nil {
			logger.Warn("event export disabled, broker unreachable", zap.Error(err))
		} else {
			exporter.Register(dispatcher)
			defer exporter.Close() //nolint:errcheck
			logger.Info("exporting events", zap.String("exchange", cfg.Events.Exchange))
		}
	}

	resolver := service.NewStatusResolver(ticketingClient, logger)
	reconciler := service.NewReconciler(service.ReconcilerDependencies{
		Store:           store,
		Dedup:           window,
		Resolver:        resolver,
		Dispatcher:      dispatcher,
		StatusWhitelist: cfg.Sync.StatusWhitelist,
		Metrics:         metrics,
		Logger:          logger,
	})

	pool := worker.NewPool(cfg.Sync.Workers, cfg.Sync.QueueSize, logger)
	bridge := service.NewBridgeService(service.BridgeDependencies{
		Store:       store,
		Dedup:       window,
		Users:       users,
		Reconciler:  reconciler,
		Resolver:    resolver,
		Normalizer:  normalizer,
		Ticketing:   ticketingClient,
		Chat:        chatClient,
		Dispatcher:  dispatcher,
		Runner:      pool,
		BotEmail:    cfg.Chat.BotEmail,
		TrackingTTL: cfg.Sync.TrackingTTL(),
		Logger:      logger,
	})

	poller := worker.NewPoller(bridge, cfg.Sync.PollInterval(), logger)
	if cfg.Sync.PollEnabled {
		poller.Start()
	}

	webhookAuth, err := auth.NewWebhookCredentials(cfg.Webhook.Username, cfg.Webhook.Password, cfg.Auth.BcryptCost, logger)
	if err != nil {
		logger.Fatal("failed to prepare webhook credential", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, metrics),
		Webhooks:    handlers.NewWebhookHandler(bridge, logger),
		Tickets:     handlers.NewTicketsHandler(bridge),
		Initialize:  handlers.NewInitializeHandler(bridge, poller, cfg.Sync.PollEnabled, logger),
		WebhookAuth: webhookAuth,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	poller.Stop()
	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := pool.Close(drainCtx); err != nil {
		logger.Warn("worker pool did not drain", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
