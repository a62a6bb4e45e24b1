package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pratikdungano/vastrahub-backend/api/routes"
	"github.com/pratikdungano/vastrahub-backend/internal/catalog"
	"github.com/pratikdungano/vastrahub-backend/internal/checkout"
	"github.com/pratikdungano/vastrahub-backend/internal/notifications"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/internal/payments"
	"github.com/pratikdungano/vastrahub-backend/internal/returns"
	"github.com/pratikdungano/vastrahub-backend/pkg/auth/session"
	"github.com/pratikdungano/vastrahub-backend/pkg/config"
	"github.com/pratikdungano/vastrahub-backend/pkg/db"
	"github.com/pratikdungano/vastrahub-backend/pkg/gateway"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/migrate"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/redis"
	"github.com/joho/godotenv"
)

// webhookGuardTTL keeps gateway event IDs around long enough to absorb
// Razorpay's multi-day retry schedule.
const webhookGuardTTL = 72 * time.Hour

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	returnsRepo := returns.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkout.NewService(
		dbClient, ordersRepo, catalogRepo, nil, gatewayClient, nil, outboxSvc, cfg.Orders,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxSvc, orders.NewStockRestorer())
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		paymentsRepo, ordersRepo, dbClient, outboxSvc, nil, gatewayClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	paymentWebhookGuard, err := payments.NewIdempotencyGuard(redisClient, webhookGuardTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook guard", err)
		os.Exit(1)
	}

	returnsService, err := returns.NewService(
		returnsRepo, ordersRepo, paymentsRepo, dbClient, outboxSvc,
		orders.NewStockRestorer(), gatewayClient, cfg.Orders,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, sessionManager, gatewayClient,
			catalogRepo, checkoutService, ordersService, paymentsService,
			paymentWebhookGuard, returnsService, notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
