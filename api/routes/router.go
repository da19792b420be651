package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asthahub/storefront-backend/api/controllers"
	"github.com/asthahub/storefront-backend/api/middleware"
	checkoutsvc "github.com/asthahub/storefront-backend/internal/checkout"
	"github.com/asthahub/storefront-backend/internal/notifications"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Previewer     *checkoutsvc.Previewer
	Checkout      *checkoutsvc.Service
	Orders        *checkoutsvc.Repository
	Notifications *notifications.Repository
	RateCounter   middleware.RateCounter
	Pingers       map[string]controllers.Pinger
	Metrics       prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	previewPolicy := middleware.NewRateLimitPolicy(
		"preview",
		cfg.RateLimit.PreviewWindow,
		cfg.RateLimit.PreviewIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(previewPolicy, deps.RateCounter, logg)).
			Post("/cart/calculate", controllers.CartCalculate(deps.Previewer, logg))

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}
