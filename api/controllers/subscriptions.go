package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/recurware/billing-backend/api/responses"
	"github.com/recurware/billing-backend/api/validators"
	subscriptionsvc "github.com/recurware/billing-backend/internal/subscriptions"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
	"github.com/recurware/billing-backend/pkg/pagination"
)

// SubscriptionService describes the lifecycle methods used by the HTTP
// controllers.
type SubscriptionService interface {
	Subscribe(ctx context.Context, accountID uuid.UUID, productName string) (*subscriptionsvc.Result, error)
	List(ctx context.Context, query subscriptionsvc.ListSubscriptionsQuery) ([]subscriptionsvc.Result, *pagination.Cursor, error)
}

// CurrentSubscriptionService resolves the account's active subscription.
type CurrentSubscriptionService interface {
	CurrentSubscription(ctx context.Context, accountID uuid.UUID) (*subscriptionsvc.Result, error)
}

type subscribeRequest struct {
	Product string `json:"product" validate:"required"`
}

type subscriptionResponse struct {
	ID        string `json:"id"`
	Product   string `json:"product"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

func subscriptionToResponse(result *subscriptionsvc.Result) subscriptionResponse {
	resp := subscriptionResponse{
		ID:        result.Subscription.ID.String(),
		Status:    result.Status.Status.String(),
		Note:      result.Status.Note,
		CreatedAt: result.Subscription.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if result.Subscription.ProductType != nil {
		resp.Product = result.Subscription.ProductType.Name
	}
	return resp
}

// SubscriptionCreate subscribes the account to a product and returns the
// terminal approval outcome.
func SubscriptionCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		accountID, err := validators.UUIDParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body subscribeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Subscribe(ctx, accountID, body.Product)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, subscriptionToResponse(result))
	}
}

// SubscriptionCurrent returns the account's current subscription, or 404
// when no subscription has a current status in the active set.
func SubscriptionCurrent(svc CurrentSubscriptionService, logg *logger.Logger) http.HandlerFunc {
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

		current, err := svc.CurrentSubscription(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if current == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "account has no current subscription"))
			return
		}
		responses.WriteSuccess(w, subscriptionToResponse(current))
	}
}

// SubscriptionList returns the account's subscriptions, newest first, with
// each row's current status.
func SubscriptionList(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		accountID, err := validators.UUIDParam(r, "accountID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		cursor, err := validators.ParseQueryCursor(r, "cursor")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		results, next, err := svc.List(ctx, subscriptionsvc.ListSubscriptionsQuery{
			AccountID: accountID,
			Limit:     limit,
			Cursor:    cursor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]subscriptionResponse, 0, len(results))
		for i := range results {
			items = append(items, subscriptionToResponse(&results[i]))
		}
		nextCursor := ""
		if next != nil {
			nextCursor = pagination.EncodeCursor(*next)
		}
		responses.WritePaged(w, items, nextCursor)
	}
}
