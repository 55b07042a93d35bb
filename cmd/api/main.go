package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/recurware/billing-backend/api/routes"
	"github.com/recurware/billing-backend/internal/accounts"
	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/internal/products"
	"github.com/recurware/billing-backend/internal/subscriptions"
	"github.com/recurware/billing-backend/pkg/config"
	"github.com/recurware/billing-backend/pkg/db"
	"github.com/recurware/billing-backend/pkg/instance"
	"github.com/recurware/billing-backend/pkg/logger"
	"github.com/recurware/billing-backend/pkg/metrics"
	"github.com/recurware/billing-backend/pkg/migrate"
	"github.com/recurware/billing-backend/pkg/redis"
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

	promRegistry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(promRegistry)

	cat, err := catalog.Load(products.DefaultRegistry(), cfg.Catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to load product catalog", err)
		os.Exit(1)
	}
	catalogStore := catalog.NewStore(cat)

	agreements := processors.NewAgreementRepository(dbClient.DB())
	registry := processors.NewRegistry()
	registry.Register(processors.SimpleName, func() (processors.Processor, error) {
		return processors.NewSimpleProcessor(agreements)
	})
	registry.Alias(processors.DefaultName, cfg.Processors.Default)

	strategies, err := processors.StrategiesFromConfig(cfg.Processors.Routers)
	if err != nil {
		logg.Error(context.Background(), "invalid processor routing config", err)
		os.Exit(1)
	}
	procRouter, err := processors.NewRouter(registry, strategies...)
	if err != nil {
		logg.Error(context.Background(), "failed to build processor router", err)
		os.Exit(1)
	}
	responder, err := processors.NewRouterResponder(procRouter, logg, billingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build approval responder", err)
		os.Exit(1)
	}

	typeRepo := catalog.NewTypeRepository(dbClient.DB())
	reconciler := catalog.NewReconciler(typeRepo, logg, billingMetrics)
	if _, err := reconciler.Reconcile(context.Background(), cat, catalog.ReconcileOptions{}); err != nil {
		logg.Error(context.Background(), "catalog reconciliation failed", err)
		os.Exit(1)
	}

	subsRepo := subscriptions.NewRepository(dbClient.DB())
	subsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subsRepo,
		TypeRepo:          typeRepo,
		Catalog:           catalogStore,
		Responder:         responder,
		TransactionRunner: dbClient,
		ApprovalTimeout:   cfg.Billing.ApprovalTimeout,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	activeStatuses, err := cfg.Billing.ActiveStatusSet()
	if err != nil {
		logg.Error(context.Background(), "invalid active statuses", err)
		os.Exit(1)
	}
	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:           accounts.NewRepository(dbClient.DB()),
		SubsRepo:       subsRepo,
		Subscriptions:  subsService,
		TypeRepo:       typeRepo,
		Catalog:        catalogStore,
		ActiveStatuses: activeStatuses,
		DefaultProduct: cfg.Billing.DefaultProduct,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			RedisPinger:      redisClient,
			IdempotencyStore: redisClient,
			Accounts:         accountsService,
			Subscriptions:    subsService,
			ProcessorRouter:  procRouter,
			Agreements:       agreements,
			Metrics:          promRegistry,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
