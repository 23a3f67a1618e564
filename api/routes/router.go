package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lehaiminh/chainpos-backend/api/controllers"
	ordercontrollers "github.com/lehaiminh/chainpos-backend/api/controllers/orders"
	"github.com/lehaiminh/chainpos-backend/api/middleware"
	internalorders "github.com/lehaiminh/chainpos-backend/internal/orders"
	"github.com/lehaiminh/chainpos-backend/pkg/config"
	"github.com/lehaiminh/chainpos-backend/pkg/db"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
	"github.com/lehaiminh/chainpos-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Orders   internalorders.Service
	Registry *prometheus.Registry
}

// New assembles the chi router with middleware, API routes and operational
// endpoints.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.CORS())

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/orders", func(orders chi.Router) {
			orders.Post("/", ordercontrollers.Create(deps.Orders, deps.Logger))
			orders.Get("/", ordercontrollers.List(deps.Orders, deps.Logger))
			orders.Get("/changes", ordercontrollers.Changes(deps.Orders, deps.Logger))
			orders.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, deps.Logger))
			orders.Post("/{orderId}/confirm", ordercontrollers.Confirm(deps.Orders, deps.Logger))
			orders.Post("/{orderId}/payments", ordercontrollers.AppendPayments(deps.Orders, deps.Logger))
			orders.Patch("/{orderId}/status", ordercontrollers.ChangeStatus(deps.Orders, deps.Logger))
		})
	})

	r.Get("/healthz/live", controllers.HealthLive(deps.Config))
	r.Get("/healthz/ready", controllers.HealthReady(deps.Config, deps.Logger, readinessChecks(deps)...))

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func readinessChecks(deps Deps) []controllers.ReadinessCheck {
	checks := []controllers.ReadinessCheck{}
	if deps.DB != nil {
		checks = append(checks, controllers.ReadinessCheck{
			Name: "database",
			Ping: func(r *http.Request) error { return deps.DB.Ping(r.Context()) },
		})
	}
	if deps.Redis != nil {
		checks = append(checks, controllers.ReadinessCheck{
			Name: "redis",
			Ping: func(r *http.Request) error { return deps.Redis.Ping(r.Context()) },
		})
	}
	return checks
}
