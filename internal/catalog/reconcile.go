package catalog

import (
	"context"
	"fmt"

	"github.com/recurware/billing-backend/pkg/db/models"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
	"github.com/recurware/billing-backend/pkg/metrics"
)

// ReconcileOptions controls what the reconciler may do with stale types.
type ReconcileOptions struct {
	// ConfirmDelete permits removal of stale product types. Without it
	// (the non-interactive default) stale types are reported and retained.
	// Deleting a product type cascades into subscription history, so the
	// reconciler additionally refuses to delete any type that still has
	// subscriptions even when deletion is confirmed.
	ConfirmDelete bool
}

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	Created []string
	Stale   []string
	Deleted []string
}

// Reconciler keeps the product_types table in step with the loaded catalog.
type Reconciler struct {
	repo    TypeRepository
	logg    *logger.Logger
	metrics *metrics.BillingMetrics
}

func NewReconciler(repo TypeRepository, logg *logger.Logger, m *metrics.BillingMetrics) *Reconciler {
	return &Reconciler{repo: repo, logg: logg, metrics: m}
}

// Reconcile creates a product type row for every catalog product missing one
// and reports rows with no matching catalog product as stale.
func (r *Reconciler) Reconcile(ctx context.Context, cat *Catalog, opts ReconcileOptions) (*ReconcileReport, error) {
	if cat == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}

	existing, err := r.repo.ListTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product types")
	}

	byName := make(map[string]models.ProductType, len(existing))
	for _, productType := range existing {
		byName[productType.Name] = productType
	}

	report := &ReconcileReport{}

	for _, product := range cat.List(true) {
		if _, ok := byName[product.Name]; ok {
			delete(byName, product.Name)
			continue
		}
		productType := &models.ProductType{Name: product.Name}
		if err := r.repo.CreateType(ctx, productType); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product type")
		}
		report.Created = append(report.Created, product.Name)
		if r.logg != nil {
			r.logg.Info(r.logg.WithProduct(ctx, product.Name), "product type added")
		}
	}

	// Whatever is left in byName has no catalog counterpart.
	for _, productType := range existing {
		stale, ok := byName[productType.Name]
		if !ok {
			continue
		}
		if !opts.ConfirmDelete {
			report.Stale = append(report.Stale, stale.Name)
			continue
		}
		count, err := r.repo.CountSubscriptionsForType(ctx, stale.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count subscriptions for type")
		}
		if count > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvariant,
				fmt.Sprintf("product type %s still has %d subscriptions; refusing to delete", stale.Name, count))
		}
		if err := r.repo.DeleteType(ctx, stale.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product type")
		}
		report.Deleted = append(report.Deleted, stale.Name)
		if r.logg != nil {
			r.logg.Info(r.logg.WithProduct(ctx, stale.Name), "stale product type deleted")
		}
	}

	r.metrics.SetStaleProductTypes(len(report.Stale))

	if len(report.Stale) > 0 && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "stale_types", report.Stale), "stale product types remain")
	}

	return report, nil
}
