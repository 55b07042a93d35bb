// billingctl is the operator command surface: list plans, subscribe a user to
// a product, and reconcile the product_types table against the loaded catalog.
//
//	billingctl                                    list plans
//	billingctl -user <id|username> -product <p>   subscribe a user
//	billingctl -reconcile [-confirm]              reconcile product types
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/recurware/billing-backend/internal/accounts"
	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/internal/products"
	"github.com/recurware/billing-backend/internal/subscriptions"
	"github.com/recurware/billing-backend/pkg/config"
	"github.com/recurware/billing-backend/pkg/db"
	"github.com/recurware/billing-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "billingctl"})

	_ = godotenv.Load()

	userRef := flag.String("user", "", "user id or username to subscribe")
	product := flag.String("product", "", "product name to subscribe the user to")
	reconcile := flag.Bool("reconcile", false, "reconcile product types against the catalog")
	confirm := flag.Bool("confirm", false, "allow the reconciler to delete stale product types")
	flag.Parse()

	cfg, err := config.Load()
	fail(ctx, logg, "load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "billingctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	cat, err := catalog.Load(products.DefaultRegistry(), cfg.Catalog)
	fail(ctx, logg, "load product catalog", err)

	switch {
	case *reconcile:
		dbClient := mustDB(ctx, logg, cfg)
		defer dbClient.Close()
		runReconcile(ctx, logg, dbClient, cat, *confirm)

	case *userRef != "" || *product != "":
		if *userRef == "" || *product == "" {
			fmt.Fprintln(os.Stderr, "both -user and -product are required to subscribe")
			os.Exit(2)
		}
		dbClient := mustDB(ctx, logg, cfg)
		defer dbClient.Close()
		runSubscribe(ctx, logg, cfg, dbClient, cat, *userRef, *product)

	default:
		listPlans(cat)
	}
}

func listPlans(cat *catalog.Catalog) {
	for _, p := range cat.List(true) {
		marker := " "
		if p.Hidden {
			marker = "*"
		}
		payment := "no payment details"
		if p.RequiresPaymentDetails {
			payment = "payment details required"
		}
		fmt.Printf("%s %-20s %10s  %s\n", marker, p.Name, p.BasePrice.StringFixed(2), payment)
	}
	fmt.Println("\n* hidden plan")
}

func runReconcile(ctx context.Context, logg *logger.Logger, dbClient *db.Client, cat *catalog.Catalog, confirm bool) {
	reconciler := catalog.NewReconciler(catalog.NewTypeRepository(dbClient.DB()), logg, nil)
	report, err := reconciler.Reconcile(ctx, cat, catalog.ReconcileOptions{ConfirmDelete: confirm})
	fail(ctx, logg, "reconcile product types", err)

	fmt.Println("created:", orNone(report.Created))
	fmt.Println("deleted:", orNone(report.Deleted))
	fmt.Println("stale:  ", orNone(report.Stale))
	if len(report.Stale) > 0 && !confirm {
		fmt.Println("stale product types retained; re-run with -confirm to delete")
	}
}

func runSubscribe(ctx context.Context, logg *logger.Logger, cfg *config.Config, dbClient *db.Client, cat *catalog.Catalog, userRef, product string) {
	catalogStore := catalog.NewStore(cat)
	typeRepo := catalog.NewTypeRepository(dbClient.DB())

	registry := processors.NewRegistry()
	registry.Register(processors.SimpleName, func() (processors.Processor, error) {
		return processors.NewSimpleProcessor(processors.NewAgreementRepository(dbClient.DB()))
	})
	registry.Alias(processors.DefaultName, cfg.Processors.Default)
	strategies, err := processors.StrategiesFromConfig(cfg.Processors.Routers)
	fail(ctx, logg, "parse processor routing config", err)
	procRouter, err := processors.NewRouter(registry, strategies...)
	fail(ctx, logg, "build processor router", err)
	responder, err := processors.NewRouterResponder(procRouter, logg, nil)
	fail(ctx, logg, "build approval responder", err)

	subsRepo := subscriptions.NewRepository(dbClient.DB())
	subsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subsRepo,
		TypeRepo:          typeRepo,
		Catalog:           catalogStore,
		Responder:         responder,
		TransactionRunner: dbClient,
		ApprovalTimeout:   cfg.Billing.ApprovalTimeout,
		Logger:            logg,
	})
	fail(ctx, logg, "create subscriptions service", err)

	activeStatuses, err := cfg.Billing.ActiveStatusSet()
	fail(ctx, logg, "parse active statuses", err)

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
	fail(ctx, logg, "create accounts service", err)

	result, err := accountsService.SubscribeUserToProduct(ctx, userRef, product)
	fail(ctx, logg, "subscribe user", err)

	status := "unknown"
	if result.Status != nil {
		status = strings.ToLower(string(result.Status.Status))
	}
	fmt.Printf("subscription %s: %s -> %s (%s)\n",
		result.Subscription.ID, userRef, product, status)
}

func mustDB(ctx context.Context, logg *logger.Logger, cfg *config.Config) *db.Client {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	fail(ctx, logg, "bootstrap database", err)
	return dbClient
}

func orNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func fail(ctx context.Context, logg *logger.Logger, action string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "billingctl: failed to "+action, err)
	os.Exit(1)
}
