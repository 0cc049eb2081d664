package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidrenteria/boltbridge-backend/api/controllers"
	webhookcontrollers "github.com/davidrenteria/boltbridge-backend/api/controllers/webhooks"
	"github.com/davidrenteria/boltbridge-backend/api/middleware"
	checkoutsvc "github.com/davidrenteria/boltbridge-backend/internal/checkout"
	boltwebhook "github.com/davidrenteria/boltbridge-backend/internal/webhooks/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/metrics"
	"github.com/davidrenteria/boltbridge-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	checkoutService *checkoutsvc.Service,
	hookService *boltwebhook.Service,
	hookGuard *boltwebhook.IdempotencyGuard,
	hookVerifier *bolt.SignatureVerifier,
	hookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/bolt", webhookcontrollers.BoltWebhook(hookService, hookVerifier, hookGuard, hookMetrics, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/token", controllers.CheckoutToken(checkoutService, logg))
		r.Post("/save", controllers.CheckoutSave(checkoutService, cfg.JWT, logg))
	})

	return r
}
