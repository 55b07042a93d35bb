package processors

import (
	"context"
	"time"

	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
	"github.com/recurware/billing-backend/pkg/metrics"
)

// Decision is the outcome of an approval consultation. Status is always a
// terminal approval status.
type Decision struct {
	Status enums.ApprovalStatus
	Note   string
}

// ApprovalResponder produces the single authoritative approval decision for
// a new subscription. Exactly one responder is wired per process; the
// lifecycle consumes exactly one decision per subscription and never
// aggregates multiple responders.
type ApprovalResponder interface {
	Decide(ctx context.Context, route Route) (Decision, error)
}

// RouterResponder decides approval by routing to a payment processor: a
// product that requires payment details is approved only when the routed
// processor vouches for the account's billing details.
type RouterResponder struct {
	router  *Router
	logg    *logger.Logger
	metrics *metrics.BillingMetrics
}

func NewRouterResponder(router *Router, logg *logger.Logger, m *metrics.BillingMetrics) (*RouterResponder, error) {
	if router == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "processor router is required")
	}
	return &RouterResponder{router: router, logg: logg, metrics: m}, nil
}

func (r *RouterResponder) Decide(ctx context.Context, route Route) (Decision, error) {
	if !route.Product.RequiresPaymentDetails {
		return Decision{Status: enums.ApprovalStatusApproved}, nil
	}

	processor, err := r.router.Resolve(ctx, route)
	if err != nil {
		return Decision{}, err
	}

	started := time.Now()
	valid, err := processor.HasValidBillingDetails(ctx, route.AccountID)
	r.metrics.ObserveDecisionLatency(processor.Name(), time.Since(started))
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeProcessorUnavailable, err,
			"processor "+processor.Name()+" billing details check")
	}

	if r.logg != nil {
		r.logg.Debug(r.logg.WithProcessor(ctx, processor.Name()), "approval decision computed")
	}
	if !valid {
		return Decision{
			Status: enums.ApprovalStatusDeclined,
			Note:   "billing details missing or invalid",
		}, nil
	}
	return Decision{Status: enums.ApprovalStatusApproved}, nil
}
