package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/recurware/billing-backend/api/responses"
	"github.com/recurware/billing-backend/api/validators"
	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
)

// AccountViewService describes the account view methods used by the HTTP
// controllers.
type AccountViewService interface {
	VisibleProducts(ctx context.Context, accountID uuid.UUID) ([]catalog.Product, error)
	CurrentProduct(ctx context.Context, accountID uuid.UUID) (*catalog.Product, error)
}

type productResponse struct {
	Name                   string `json:"name"`
	BasePrice              string `json:"base_price"`
	RequiresPaymentDetails bool   `json:"requires_payment_details"`
}

// AccountProducts lists the products visible to the account, in catalog
// order. Hidden products the account has subscribed to stay visible.
func AccountProducts(svc AccountViewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		accountID, err := validators.UUIDParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		visible, err := svc.VisibleProducts(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items := make([]productResponse, 0, len(visible))
		for _, product := range visible {
			items = append(items, productResponse{
				Name:                   product.Name,
				BasePrice:              product.BasePrice.String(),
				RequiresPaymentDetails: product.RequiresPaymentDetails,
			})
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

// BillingDetailsForm returns the form descriptor of the processor that would
// handle the account's product. The product defaults to the account's
// current product and can be overridden with ?product=.
func BillingDetailsForm(svc AccountViewService, router *processors.Router, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || router == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing details service unavailable"))
			return
		}

		accountID, err := validators.UUIDParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		route := processors.Route{AccountID: accountID}
		if name := r.URL.Query().Get("product"); name != "" {
			route.Product = catalog.Product{Name: name, RequiresPaymentDetails: true}
		} else {
			product, err := svc.CurrentProduct(ctx, accountID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			route.Product = *product
		}

		processor, err := router.Resolve(ctx, route)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		form, err := processor.BillingDetailsForm(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

// AgreementService records promise-to-pay acknowledgements for the bundled
// simple processor.
type AgreementService interface {
	RecordAgreement(ctx context.Context, accountID uuid.UUID, hasAgreedToPay bool) error
}

type billingDetailsRequest struct {
	HasAgreedToPay *bool `json:"has_agreed_to_pay" validate:"required"`
}

// BillingDetailsSubmit stores the account's billing details for the simple
// processor.
func BillingDetailsSubmit(svc AgreementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing details service unavailable"))
			return
		}

		accountID, err := validators.UUIDParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body billingDetailsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.RecordAgreement(ctx, accountID, *body.HasAgreedToPay); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record billing agreement"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]bool{"has_agreed_to_pay": *body.HasAgreedToPay})
	}
}
