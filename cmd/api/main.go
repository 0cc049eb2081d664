package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidrenteria/boltbridge-backend/api/routes"
	"github.com/davidrenteria/boltbridge-backend/internal/carts"
	checkoutsvc "github.com/davidrenteria/boltbridge-backend/internal/checkout"
	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	boltwebhook "github.com/davidrenteria/boltbridge-backend/internal/webhooks/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/metrics"
	"github.com/davidrenteria/boltbridge-backend/pkg/migrate"
	"github.com/davidrenteria/boltbridge-backend/pkg/redis"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	boltClient, err := bolt.NewClient(context.Background(), cfg.Bolt, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bolt client", err)
		os.Exit(1)
	}

	cartsRepo := carts.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentRepo := payment.NewRepository(dbClient.DB())

	paymentService, err := payment.NewService(payment.ServiceParams{
		Repo:   paymentRepo,
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		Carts:       cartsRepo,
		Orders:      ordersRepo,
		Payment:     paymentService,
		Tx:          dbClient,
		Logger:      logg,
		AutoCapture: cfg.Bolt.AutoCapture,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order materializer", err)
		os.Exit(1)
	}

	builder, err := checkoutsvc.NewSnapshotBuilder(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot builder", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Carts:        cartsRepo,
		Orders:       ordersRepo,
		Materializer: materializer,
		Builder:      builder,
		Availability: checkoutsvc.NewAvailabilityChecker(cfg.Checkout),
		Processor:    boltClient,
		Cache:        redisClient,
		JWTConfig:    cfg.JWT,
		Checkout:     cfg.Checkout,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	hookService, err := boltwebhook.NewService(boltwebhook.ServiceParams{
		Orders:       ordersRepo,
		Materializer: materializer,
		Payment:      paymentService,
		Processor:    boltClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	hookGuard, err := boltwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "bolt-hook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	hookVerifier := bolt.NewSignatureVerifier(boltClient.SigningSecret(), boltClient)
	hookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"bolt_env": boltClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			hookService,
			hookGuard,
			hookVerifier,
			hookMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
