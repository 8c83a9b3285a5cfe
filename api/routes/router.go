package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmerch/checkout-backend/api/controllers"
	"github.com/campusmerch/checkout-backend/api/middleware"
	"github.com/campusmerch/checkout-backend/internal/cart"
	checkoutsvc "github.com/campusmerch/checkout-backend/internal/checkout"
	"github.com/campusmerch/checkout-backend/internal/inventory"
	"github.com/campusmerch/checkout-backend/internal/orders"
	"github.com/campusmerch/checkout-backend/pkg/config"
	"github.com/campusmerch/checkout-backend/pkg/db"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	inventoryService inventory.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// typed nil clients must not leak into the middleware interfaces
	var (
		idempotencyStore redis.IdempotencyStore
		rateLimiter      redis.RateLimiter
	)
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		rateLimiter = redisClient
		deps["redis"] = redisClient
	}

	checkoutPolicy := middleware.RateLimitPolicy{
		Name:   "checkout",
		Limit:  cfg.Checkout.RateLimit,
		Window: cfg.Checkout.RateLimitWindow,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/lines", controllers.CartAddLine(cartService, logg))
			r.Delete("/lines/{unitId}", controllers.CartRemoveLine(cartService, logg))
			r.Put("/promo", controllers.CartApplyPromo(cartService, logg))
			r.Delete("/promo", controllers.CartRemovePromo(cartService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.With(middleware.UserRateLimit(checkoutPolicy, rateLimiter, logg)).
				Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/payment", controllers.OrderSubmitPayment(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(ordersService, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Get("/orders/ref/{orderRef}", controllers.AdminOrderByRef(ordersService, logg))
			r.Post("/orders/{orderId}/payment/verify", controllers.AdminVerifyPayment(ordersService, logg))
			r.Post("/orders/{orderId}/claim", controllers.AdminMarkClaimed(ordersService, logg))
			r.Put("/orders/{orderId}/status", controllers.AdminSetOrderStatus(ordersService, logg))

			r.Get("/inventory/{unitId}", controllers.AdminInventoryGet(inventoryService, logg))
			r.Put("/inventory/{unitId}", controllers.AdminInventorySet(inventoryService, logg))
		})
	})

	return r
}
