package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pratikdungano/vastrahub-backend/api/controllers"
	ordercontrollers "github.com/pratikdungano/vastrahub-backend/api/controllers/orders"
	webhookcontrollers "github.com/pratikdungano/vastrahub-backend/api/controllers/webhooks"
	"github.com/pratikdungano/vastrahub-backend/api/middleware"
	"github.com/pratikdungano/vastrahub-backend/internal/catalog"
	checkoutsvc "github.com/pratikdungano/vastrahub-backend/internal/checkout"
	"github.com/pratikdungano/vastrahub-backend/internal/notifications"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/internal/payments"
	"github.com/pratikdungano/vastrahub-backend/internal/returns"
	"github.com/pratikdungano/vastrahub-backend/pkg/auth/session"
	"github.com/pratikdungano/vastrahub-backend/pkg/config"
	"github.com/pratikdungano/vastrahub-backend/pkg/db"
	"github.com/pratikdungano/vastrahub-backend/pkg/gateway"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager session.AccessSessionChecker,
	gatewayClient *gateway.Client,
	catalogRepo catalog.Repository,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	paymentWebhookGuard *payments.IdempotencyGuard,
	returnsService returns.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var idemStore redis.IdempotencyStore
	var redisP redis.Pinger
	if redisClient != nil {
		idemStore = redisClient
		redisP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	// Gateway callbacks authenticate with an HMAC header, not a bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentsService, gatewayClient, paymentWebhookGuard, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(catalogRepo, logg))
		r.Get("/{productId}", controllers.ProductDetail(catalogRepo, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/checkout", controllers.PlaceOrder(checkoutService, logg))
		r.Post("/payments/verify", controllers.VerifyPayment(paymentsService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Post("/{orderId}/return", controllers.RequestReturn(returnsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(ordersService, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(ordersService, logg))
				r.Post("/{orderId}/advance", controllers.AdminAdvanceOrder(ordersService, logg))
				r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(ordersService, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Get("/", controllers.AdminListReturns(returnsService, logg))
				r.Post("/{returnId}/action", controllers.AdminReturnAction(returnsService, logg))
			})
		})
	})

	return r
}
