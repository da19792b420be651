package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/asthahub/storefront-backend/api/controllers"
	"github.com/asthahub/storefront-backend/api/middleware"
	"github.com/asthahub/storefront-backend/api/routes"
	"github.com/asthahub/storefront-backend/internal/catalog"
	"github.com/asthahub/storefront-backend/internal/checkout"
	"github.com/asthahub/storefront-backend/internal/coupon"
	"github.com/asthahub/storefront-backend/internal/failover"
	"github.com/asthahub/storefront-backend/internal/notifications"
	"github.com/asthahub/storefront-backend/internal/profile"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/counter"
	"github.com/asthahub/storefront-backend/pkg/db"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/metrics"
	"github.com/asthahub/storefront-backend/pkg/migrate"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/pubsub"
	"github.com/asthahub/storefront-backend/pkg/redis"
	"github.com/asthahub/storefront-backend/pkg/storage/gcs"
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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap object storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing object storage", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	products := catalog.NewRepository(dbClient.DB())
	coupons := coupon.NewRepository(dbClient.DB())
	profiles := profile.NewRepository(dbClient.DB())
	orders := checkout.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	failoverStore := failover.NewStore(
		gcsClient,
		failover.NewGCPPublisher(pubsubClient.OrdersPublisher()),
		cfg.GCS,
		logg,
	)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:       dbClient,
		Products: products,
		Coupons:  coupons,
		Profiles: profiles,
		Orders:   orders,
		Events:   events,
		Failover: failoverStore,
		Config:   cfg.Checkout,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	previewer := checkout.NewPreviewer(products, coupons, profiles, cfg.Checkout, logg)

	var rateCounter middleware.RateCounter = redisClient
	if cfg.FeatureFlags.UseSQLite {
		// single-process dev mode keeps the window in memory
		rateCounter = counter.NewMemory()
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
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Previewer:     previewer,
			Checkout:      checkoutService,
			Orders:        orders,
			Notifications: notificationsRepo,
			RateCounter:   rateCounter,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"gcs":      gcsClient,
				"pubsub":   pubsubClient,
			},
			Metrics: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
