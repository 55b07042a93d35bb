package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recurware/billing-backend/api/controllers"
	"github.com/recurware/billing-backend/api/middleware"
	"github.com/recurware/billing-backend/internal/accounts"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/internal/subscriptions"
	"github.com/recurware/billing-backend/pkg/config"
	"github.com/recurware/billing-backend/pkg/db"
	"github.com/recurware/billing-backend/pkg/logger"
	pkgredis "github.com/recurware/billing-backend/pkg/redis"
)

// RouterParams groups everything the HTTP surface depends on. Nil optional
// dependencies (redis, metrics) disable their routes or middleware rather
// than failing.
type RouterParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DBPinger         db.Pinger
	RedisPinger      pkgredis.Pinger
	IdempotencyStore pkgredis.IdempotencyStore
	Accounts         accounts.Service
	Subscriptions    subscriptions.Service
	ProcessorRouter  *processors.Router
	Agreements       controllers.AgreementService
	Metrics          *prometheus.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(params.IdempotencyStore, logg))

		r.Get("/plans", controllers.PlansList(params.Accounts, logg))

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", controllers.SubscriptionList(params.Subscriptions, logg))
				r.Post("/", controllers.SubscriptionCreate(params.Subscriptions, logg))
				r.Get("/current", controllers.SubscriptionCurrent(params.Accounts, logg))
			})
			r.Get("/products", controllers.AccountProducts(params.Accounts, logg))
			r.Route("/billing-details", func(r chi.Router) {
				r.Get("/form", controllers.BillingDetailsForm(params.Accounts, params.ProcessorRouter, logg))
				r.Post("/", controllers.BillingDetailsSubmit(params.Agreements, logg))
			})
		})
	})

	return r
}
