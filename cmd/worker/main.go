package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/asthahub/storefront-backend/internal/cacheflush"
	internalmailer "github.com/asthahub/storefront-backend/internal/mailer"
	"github.com/asthahub/storefront-backend/internal/mirror"
	"github.com/asthahub/storefront-backend/internal/notifications"
	"github.com/asthahub/storefront-backend/pkg/bigquery"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/db"
	"github.com/asthahub/storefront-backend/pkg/logger"
	pkgmailer "github.com/asthahub/storefront-backend/pkg/mailer"
	"github.com/asthahub/storefront-backend/pkg/migrate"
	"github.com/asthahub/storefront-backend/pkg/outbox/idempotency"
	"github.com/asthahub/storefront-backend/pkg/outbox/registry"
	"github.com/asthahub/storefront-backend/pkg/pubsub"
	"github.com/asthahub/storefront-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "error closing bigquery client", err)
		}
	}()

	mailClient, err := pkgmailer.NewClient(ctx, cfg.Sendgrid, logg)
	requireResource(ctx, logg, "mailer", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	requireResource(ctx, logg, "event registry", err)

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		pubsubClient.NotificationSubscription(),
		manager,
		logg,
	)
	requireResource(ctx, logg, "notification consumer", err)

	emailConsumer, err := internalmailer.NewConsumer(
		mailClient,
		pubsubClient.EmailSubscription(),
		manager,
		logg,
	)
	requireResource(ctx, logg, "email consumer", err)

	cacheFlushConsumer, err := cacheflush.NewConsumer(
		redisClient,
		pubsubClient.CacheFlushSubscription(),
		manager,
		logg,
	)
	requireResource(ctx, logg, "cache flush consumer", err)

	mirrorConsumer, err := mirror.NewConsumer(bqClient, cfg.BigQuery.OrdersTable, manager, logg)
	requireResource(ctx, logg, "warehouse mirror consumer", err)

	service, err := NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		BigQuery:             bqClient,
		Registry:             eventRegistry,
		NotificationConsumer: notificationConsumer,
		EmailConsumer:        emailConsumer,
		CacheFlushConsumer:   cacheFlushConsumer,
		MirrorConsumer:       mirrorConsumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
