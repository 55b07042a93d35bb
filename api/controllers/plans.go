package controllers

import (
	"context"
	"net/http"

	"github.com/recurware/billing-backend/api/responses"
	"github.com/recurware/billing-backend/api/validators"
	"github.com/recurware/billing-backend/internal/accounts"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
)

// PlanService describes the plan listing methods used by the HTTP controllers.
type PlanService interface {
	ListAvailablePlans(ctx context.Context) []accounts.PlanInfo
}

type planResponse struct {
	Name                   string `json:"name"`
	BasePrice              string `json:"base_price"`
	RequiresPaymentDetails bool   `json:"requires_payment_details"`
	Hidden                 bool   `json:"hidden"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

// PlansList returns the catalog in catalog order. Hidden plans are excluded
// unless include_hidden is set.
func PlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		includeHidden, err := validators.ParseQueryBool(r, "include_hidden", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plans := make([]planResponse, 0)
		for _, plan := range svc.ListAvailablePlans(ctx) {
			if plan.Hidden && !includeHidden {
				continue
			}
			plans = append(plans, planResponse{
				Name:                   plan.Name,
				BasePrice:              plan.BasePrice.String(),
				RequiresPaymentDetails: plan.RequiresPaymentDetails,
				Hidden:                 plan.Hidden,
			})
		}
		responses.WriteSuccess(w, planListResponse{Plans: plans})
	}
}
