package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/api/routes"
	cartsvc "github.com/packrescue/packrescue-backend/internal/cart"
	packsvc "github.com/packrescue/packrescue-backend/internal/packs"
	paysvc "github.com/packrescue/packrescue-backend/internal/payments"
	"github.com/packrescue/packrescue-backend/internal/reservation"
	mpwebhook "github.com/packrescue/packrescue-backend/internal/webhooks/mercadopago"
	"github.com/packrescue/packrescue-backend/pkg/config"
	"github.com/packrescue/packrescue-backend/pkg/db"
	"github.com/packrescue/packrescue-backend/pkg/logger"
	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
	"github.com/packrescue/packrescue-backend/pkg/migrate"
	"github.com/packrescue/packrescue-backend/pkg/redis"
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

	services, err := buildServices(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, services),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (routes.Services, error) {
	gormDB := dbClient.DB()

	reservations, err := reservation.NewService(reservation.NewRepository(gormDB), dbClient, nil)
	if err != nil {
		return routes.Services{}, err
	}

	cart, err := cartsvc.NewService(cartsvc.NewRepository(gormDB), dbClient, nil)
	if err != nil {
		return routes.Services{}, err
	}

	packs, err := packsvc.NewService(packsvc.NewRepository(gormDB), nil)
	if err != nil {
		return routes.Services{}, err
	}

	prefs, err := buildPreferenceCreator(cfg, logg)
	if err != nil {
		return routes.Services{}, err
	}

	payments, err := paysvc.NewService(
		paysvc.NewRepository(gormDB),
		dbClient,
		prefs,
		reservations,
		paysvc.URLs{
			Notification: cfg.MercadoPago.NotifyURL,
			Success:      cfg.MercadoPago.SuccessURL,
			Failure:      cfg.MercadoPago.FailureURL,
		},
		nil,
	)
	if err != nil {
		return routes.Services{}, err
	}

	webhooks, err := buildWebhookService(cfg, gormDB, dbClient, reservations)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Packs:        packs,
		Reservations: reservations,
		Cart:         cart,
		Payments:     payments,
		Webhooks:     webhooks,
	}, nil
}

func buildPreferenceCreator(cfg *config.Config, logg *logger.Logger) (paysvc.PreferenceCreator, error) {
	if cfg.FeatureFlags.MockPayments && !cfg.App.IsProd() {
		logg.Warn(context.Background(), "mock payments enabled, provider calls are stubbed")
		return paysvc.NewMockPreferenceCreator(), nil
	}
	return mercadopago.NewClient(
		cfg.MercadoPago.AccessToken,
		mercadopago.WithBaseURL(cfg.MercadoPago.BaseURL),
	)
}

func buildWebhookService(cfg *config.Config, gormDB *gorm.DB, tx *db.Client, orders reservation.Service) (*mpwebhook.Service, error) {
	// Without provider credentials the webhook route stays unwired; mock
	// deployments approve payments through the manual endpoint instead.
	if cfg.MercadoPago.AccessToken == "" && cfg.FeatureFlags.MockPayments {
		return nil, nil
	}

	client, err := mercadopago.NewClient(
		cfg.MercadoPago.AccessToken,
		mercadopago.WithBaseURL(cfg.MercadoPago.BaseURL),
	)
	if err != nil {
		return nil, err
	}

	return mpwebhook.NewService(mpwebhook.ServiceParams{
		Repo:              mpwebhook.NewRepository(gormDB),
		Client:            client,
		Orders:            orders,
		TransactionRunner: tx,
		WebhookSecret:     cfg.MercadoPago.WebhookSecret,
	})
}
