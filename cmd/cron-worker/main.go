package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidrenteria/boltbridge-backend/internal/carts"
	"github.com/davidrenteria/boltbridge-backend/internal/cron"
	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/metrics"
	"github.com/davidrenteria/boltbridge-backend/pkg/migrate"
	"github.com/davidrenteria/boltbridge-backend/pkg/redis"
)

const lockKeyFormat = "bb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	paymentService, err := payment.NewService(payment.ServiceParams{
		Repo:   payment.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	snapshotJob, err := cron.NewSnapshotCleanupJob(cron.SnapshotCleanupJobParams{
		Logger: logg,
		Carts:  cartsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot cleanup job", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:    logg,
		Orders:    ordersRepo,
		Processor: boltClient,
		Payment:   paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconcile job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(snapshotJob, reconcileJob),
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
