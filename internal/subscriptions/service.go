package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/pkg/db/models"
	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
	"github.com/recurware/billing-backend/pkg/metrics"
	"github.com/recurware/billing-backend/pkg/pagination"
)

const manualReviewNote = "approval decision unavailable; queued for manual review"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the subscription lifecycle.
type Service interface {
	Subscribe(ctx context.Context, accountID uuid.UUID, productName string) (*Result, error)
	Get(ctx context.Context, subscriptionID uuid.UUID) (*Result, error)
	History(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionApprovalStatus, error)
	List(ctx context.Context, query ListSubscriptionsQuery) ([]Result, *pagination.Cursor, error)
}

// Result pairs a subscription with its current approval event.
type Result struct {
	Subscription *models.Subscription
	Status       *models.SubscriptionApprovalStatus
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	TypeRepo          catalog.TypeRepository
	Catalog           *catalog.Store
	Responder         processors.ApprovalResponder
	TransactionRunner txRunner
	ApprovalTimeout   time.Duration
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
}

type service struct {
	repo      Repository
	typeRepo  catalog.TypeRepository
	catalog   *catalog.Store
	responder processors.ApprovalResponder
	txRunner  txRunner
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.BillingMetrics
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription repo required")
	}
	if params.TypeRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "product type repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "catalog store required")
	}
	if params.Responder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "approval responder required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "transaction runner required")
	}
	if params.ApprovalTimeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "approval timeout must be positive")
	}
	return &service{
		repo:      params.Repo,
		typeRepo:  params.TypeRepo,
		catalog:   params.Catalog,
		responder: params.Responder,
		txRunner:  params.TransactionRunner,
		timeout:   params.ApprovalTimeout,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Subscribe creates a subscription to the named product and drives it to a
// terminal approval status. The subscription and its initial pending event
// commit together; the approval decision runs after the commit under a
// bounded timeout, and an unavailable decision escalates to declined with a
// manual-review note rather than leaving the subscription pending.
// Subscribing again to the same product always creates a new subscription.
func (s *service) Subscribe(ctx context.Context, accountID uuid.UUID, productName string) (*Result, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	product, err := s.catalog.Current().Get(productName)
	if err != nil {
		return nil, err
	}

	productType, err := s.lookupProductType(ctx, product.Name)
	if err != nil {
		return nil, err
	}

	subscription := &models.Subscription{
		ID:            uuid.New(),
		AccountID:     accountID,
		ProductTypeID: productType.ID,
	}
	pending := &models.SubscriptionApprovalStatus{
		SubscriptionID: subscription.ID,
		Status:         enums.ApprovalStatusPending,
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateSubscription(ctx, subscription); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		if err := repo.AppendStatus(ctx, pending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append pending event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	subscription.ProductType = productType
	s.metrics.IncSubscriptionCreated(product.Name)

	decision := s.decide(ctx, processors.Route{AccountID: accountID, Product: product})

	terminal := &models.SubscriptionApprovalStatus{
		SubscriptionID: subscription.ID,
		Status:         decision.Status,
		Note:           decision.Note,
	}
	if err := s.repo.AppendStatus(ctx, terminal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append terminal event")
	}
	s.metrics.IncDecision(decision.Status.String())

	if s.logg != nil {
		lctx := s.logg.WithSubscriptionID(ctx, subscription.ID.String())
		lctx = s.logg.WithProduct(lctx, product.Name)
		s.logg.Info(s.logg.WithField(lctx, "status", decision.Status.String()), "subscription decided")
	}

	return &Result{Subscription: subscription, Status: terminal}, nil
}

// decide consults the responder under the configured timeout. Any failure,
// timeout included, maps to a declined decision flagged for manual review:
// a subscription must never be left waiting on an unavailable processor.
func (s *service) decide(ctx context.Context, route processors.Route) processors.Decision {
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		decision processors.Decision
		err      error
	}
	results := make(chan outcome, 1)
	go func() {
		decision, err := s.responder.Decide(dctx, route)
		results <- outcome{decision: decision, err: err}
	}()

	var err error
	select {
	case result := <-results:
		if result.err == nil {
			return result.decision
		}
		err = result.err
	case <-dctx.Done():
		err = pkgerrors.Wrap(pkgerrors.CodeProcessorUnavailable, dctx.Err(), "approval decision timed out")
	}

	if s.logg != nil {
		s.logg.Error(s.logg.WithAccountID(ctx, route.AccountID.String()), "approval decision failed", err)
	}
	return processors.Decision{
		Status: enums.ApprovalStatusDeclined,
		Note:   manualReviewNote,
	}
}

// lookupProductType resolves the persisted row for a catalog product. Rows
// are created by reconciliation only, never here: a cataloged product with no
// row means reconciliation has not run against this catalog yet.
func (s *service) lookupProductType(ctx context.Context, name string) (*models.ProductType, error) {
	productType, err := s.typeRepo.FindTypeByName(ctx, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product type")
	}
	if productType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant,
			"product "+name+" has no product type row; reconcile the catalog")
	}
	return productType, nil
}

func (s *service) Get(ctx context.Context, subscriptionID uuid.UUID) (*Result, error) {
	subscription, err := s.repo.FindSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	status, err := s.currentStatus(ctx, subscription.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Subscription: subscription, Status: status}, nil
}

func (s *service) History(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionApprovalStatus, error) {
	events, err := s.repo.ListStatuses(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approval events")
	}
	if len(events) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return events, nil
}

func (s *service) List(ctx context.Context, query ListSubscriptionsQuery) ([]Result, *pagination.Cursor, error) {
	subs, next, err := s.repo.ListByAccount(ctx, query)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}

	results := make([]Result, 0, len(subs))
	for i := range subs {
		status, err := s.currentStatus(ctx, subs[i].ID)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, Result{Subscription: &subs[i], Status: status})
	}
	return results, next, nil
}

func (s *service) currentStatus(ctx context.Context, subscriptionID uuid.UUID) (*models.SubscriptionApprovalStatus, error) {
	status, err := s.repo.CurrentStatus(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current status")
	}
	if status == nil {
		// Every subscription is written with at least one event.
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "subscription has no approval history")
	}
	return status, nil
}
