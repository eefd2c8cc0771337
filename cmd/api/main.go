package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/notify-gateway/internal/config"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/handler"
	"github.com/kursadbilgin/notify-gateway/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-gateway/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-gateway/internal/infra/redis"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/queue"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"github.com/kursadbilgin/notify-gateway/internal/service"
	"github.com/kursadbilgin/notify-gateway/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("notify-gateway stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	logger.Info("provider adapters ready", zap.Any("providers", registry.Providers()))

	dispatcher, err := service.NewDispatcher(
		registry,
		provider.NewHTTPTransport(),
		service.RetryPolicy{
			MaxAttempts: cfg.DispatchMaxAttempts,
			BaseDelay:   cfg.BaseDelay(),
			MaxDelay:    cfg.MaxDelay(),
			Jitter:      cfg.Jitter(),
		},
		cfg.AttemptTimeout(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	var checks []handler.HealthCheck
	var attempts repository.AttemptRepository

	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		attempts = repository.NewGormAttemptRepo(db)
		dispatcher.SetAttemptRepository(attempts)
		checks = append(checks, handler.SQLCheck("postgres", sqlDB))
		logger.Info("delivery ledger enabled")
	}

	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		var opts []infraredis.Option
		overrides := cfg.ProviderRateLimits()
		for p, limit := range overrides {
			opts = append(opts, infraredis.WithProviderLimit(p.String(), limit))
		}

		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, opts...)
		if err != nil {
			return fmt.Errorf("rate limiter initialization failed: %w", err)
		}
		dispatcher.SetRateLimiter(limiter)
		checks = append(checks, handler.RedisCheck("redis", rdb))
		logger.Info("provider rate limiting enabled",
			zap.Int("limitPerSec", cfg.RateLimitPerSec),
			zap.Any("providerLimitsPerSec", overrides),
		)
	}

	if cfg.RabbitMQURL != "" {
		mq, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher := queue.NewRabbitMQPublisher(mq)
		defer publisher.Close()

		dispatcher.SetPublisher(publisher)
		logger.Info("delivery events enabled", zap.String("exchange", queue.EventsExchange))
	}

	app := fiber.New(fiber.Config{
		AppName:               "notify-gateway",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())
	app.Use(handler.CORS())

	handler.RegisterHealthRoutes(app, checks...)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterSendRoutes(app, dispatcher, logger); err != nil {
		return fmt.Errorf("send routes registration failed: %w", err)
	}
	if attempts != nil {
		if err := handler.RegisterAttemptRoutes(app, attempts); err != nil {
			return fmt.Errorf("attempt routes registration failed: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notify-gateway api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout()))
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout()); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("notify-gateway stopped")
	return nil
}

// buildRegistry installs an adapter per provider. A provider with missing
// credentials stays registered as unavailable and reports a config error
// per request instead of blocking startup.
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry, err := provider.NewRegistry()
	if err != nil {
		return nil, err
	}

	telegram, telegramErr := provider.NewTelegramAdapter(provider.TelegramCredentials{
		BotToken: cfg.TelegramBotToken,
		BaseURL:  cfg.TelegramAPIBaseURL,
	})
	if err := registry.Install(domain.ProviderTelegram, telegram, telegramErr); err != nil {
		return nil, err
	}

	whatsapp, whatsappErr := provider.NewWhatsAppAdapter(provider.WhatsAppCredentials{
		APIToken:      cfg.WhatsAppAPIToken,
		PhoneNumberID: cfg.WhatsAppPhoneID,
		BaseURL:       cfg.WhatsAppAPIBaseURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
	})
	if err := registry.Install(domain.ProviderWhatsApp, whatsapp, whatsappErr); err != nil {
		return nil, err
	}

	discord, discordErr := provider.NewDiscordAdapter(provider.DiscordCredentials{
		BotToken: cfg.DiscordBotToken,
		BaseURL:  cfg.DiscordAPIBaseURL,
	})
	if err := registry.Install(domain.ProviderDiscord, discord, discordErr); err != nil {
		return nil, err
	}

	return registry, nil
}
