package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TruongSon421/storefront-checkout/api/controllers"
	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	"github.com/TruongSon421/storefront-checkout/internal/txlog"
	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// Deps carries everything the router mounts.
type Deps struct {
	Hub        *session.Hub
	Identities *identity.Store
	Carts      *gateway.CartClient
	Watches    *payment.Manager
	Journal    *txlog.Service
	RedisP     controllers.Pinger
	JournalP   controllers.Pinger
	Metrics    http.Handler
}

// NewRouter assembles the storefront HTTP surface.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Session(logg),
		middleware.Logging(logg),
	)

	cart := controllers.NewCartController(deps.Hub, deps.Identities, deps.Carts, logg)
	payments := controllers.NewPaymentController(deps.Watches, deps.Journal, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(logg, deps.RedisP, deps.JournalP))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/", cart.Get)
			r.Post("/items", cart.AddItem)
			r.Patch("/items", cart.UpdateItem)
			r.Delete("/items", cart.RemoveItem)
			r.Delete("/", cart.Clear)
			r.Post("/selection/toggle", cart.ToggleSelection)
			r.Post("/selection/all", cart.SelectAll)
			r.Delete("/selection", cart.UnselectAll)
		})

		r.Delete("/session", controllers.EndSession(deps.Hub, logg))

		r.With(middleware.Auth(cfg.JWT, logg)).Post("/cart/merge", controllers.MergeCart(deps.Hub, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Post("/checkout", controllers.SubmitCheckout(deps.Hub, deps.Watches, logg))

		r.Route("/payments", func(r chi.Router) {
			// The VNPay return leg arrives as a plain browser redirect.
			r.Get("/vnpay-return", payments.VNPayReturn)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Get("/history", payments.History)
				r.Get("/{transactionId}", payments.Status)
				r.Post("/{transactionId}/confirm", payments.Confirm)
				r.Post("/{transactionId}/cancel", payments.Cancel)
			})
		})
	})

	return r
}
