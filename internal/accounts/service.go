package accounts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/subscriptions"
	"github.com/recurware/billing-backend/pkg/db"
	"github.com/recurware/billing-backend/pkg/db/models"
	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/logger"
)

// Service is the account-facing billing view plus the admin surface.
type Service interface {
	EnsureAccount(ctx context.Context, ownerUserID uuid.UUID) (*models.Account, error)
	CurrentSubscription(ctx context.Context, accountID uuid.UUID) (*subscriptions.Result, error)
	CurrentProduct(ctx context.Context, accountID uuid.UUID) (*catalog.Product, error)
	VisibleProducts(ctx context.Context, accountID uuid.UUID) ([]catalog.Product, error)
	ListAvailablePlans(ctx context.Context) []PlanInfo
	SubscribeUserToProduct(ctx context.Context, userRef, productName string) (*subscriptions.Result, error)
}

// PlanInfo is the admin listing row for one catalog product.
type PlanInfo struct {
	Name                   string
	BasePrice              decimal.Decimal
	RequiresPaymentDetails bool
	Hidden                 bool
}

// ServiceParams groups dependencies for the account service.
type ServiceParams struct {
	Repo           Repository
	SubsRepo       subscriptions.Repository
	Subscriptions  subscriptions.Service
	TypeRepo       catalog.TypeRepository
	Catalog        *catalog.Store
	ActiveStatuses []enums.ApprovalStatus
	DefaultProduct string
	Logger         *logger.Logger
}

type service struct {
	repo           Repository
	subsRepo       subscriptions.Repository
	subscriptions  subscriptions.Service
	typeRepo       catalog.TypeRepository
	catalog        *catalog.Store
	activeStatuses []enums.ApprovalStatus
	defaultProduct string
	logg           *logger.Logger
}

// NewService builds an account service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "account repo required")
	}
	if params.SubsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription repo required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription service required")
	}
	if params.TypeRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "product type repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "catalog store required")
	}
	if len(params.ActiveStatuses) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "active status set required")
	}
	return &service{
		repo:           params.Repo,
		subsRepo:       params.SubsRepo,
		subscriptions:  params.Subscriptions,
		typeRepo:       params.TypeRepo,
		catalog:        params.Catalog,
		activeStatuses: params.ActiveStatuses,
		defaultProduct: params.DefaultProduct,
		logg:           params.Logger,
	}, nil
}

// EnsureAccount returns the owner's billing account, creating it on first
// use. Accounts are 1:1 with users.
func (s *service) EnsureAccount(ctx context.Context, ownerUserID uuid.UUID) (*models.Account, error) {
	if ownerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id is required")
	}
	account, err := s.repo.FindAccountByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account")
	}
	if account != nil {
		return account, nil
	}

	account = &models.Account{ID: uuid.New(), OwnerUserID: ownerUserID}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			// Lost a create race: the account exists now.
			existing, findErr := s.repo.FindAccountByOwner(ctx, ownerUserID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return account, nil
}

// CurrentSubscription returns the most recently created subscription whose
// current status is in the active set, or nil when the account has none.
func (s *service) CurrentSubscription(ctx context.Context, accountID uuid.UUID) (*subscriptions.Result, error) {
	subs, err := s.subsRepo.FilterByCurrentStatuses(ctx, accountID, s.activeStatuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "filter subscriptions")
	}
	if len(subs) == 0 {
		return nil, nil
	}
	current := subs[0]
	status, err := s.subsRepo.CurrentStatus(ctx, current.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current status")
	}
	if status == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "subscription has no approval history")
	}
	return &subscriptions.Result{Subscription: &current, Status: status}, nil
}

// CurrentProduct returns the product of the current subscription, falling
// back to the configured default product when the account has none.
func (s *service) CurrentProduct(ctx context.Context, accountID uuid.UUID) (*catalog.Product, error) {
	current, err := s.CurrentSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cat := s.catalog.Current()
	if current == nil {
		if s.defaultProduct == "" {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account has no current product")
		}
		product, err := cat.Get(s.defaultProduct)
		if err != nil {
			return nil, err
		}
		return &product, nil
	}

	if current.Subscription.ProductType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "subscription has no product type")
	}
	product, err := cat.Get(current.Subscription.ProductType.Name)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// VisibleProducts returns, in catalog order, every non-hidden product plus
// any hidden product the account has ever subscribed to. Visibility never
// shrinks: a past subscription keeps its product visible.
func (s *service) VisibleProducts(ctx context.Context, accountID uuid.UUID) ([]catalog.Product, error) {
	subscribed, err := s.subscribedNames(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var visible []catalog.Product
	for _, product := range s.catalog.Current().List(true) {
		if product.Hidden && !subscribed[product.Name] {
			continue
		}
		visible = append(visible, product)
	}
	return visible, nil
}

func (s *service) subscribedNames(ctx context.Context, accountID uuid.UUID) (map[string]bool, error) {
	ids, err := s.subsRepo.ListSubscribedTypeIDs(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscribed types")
	}
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	byID := make(map[int64]bool, len(ids))
	for _, id := range ids {
		byID[id] = true
	}

	types, err := s.typeRepo.ListTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product types")
	}
	names := make(map[string]bool, len(ids))
	for _, productType := range types {
		if byID[productType.ID] {
			names[productType.Name] = true
		}
	}
	return names, nil
}

// ListAvailablePlans returns every catalog product, hidden included, for the
// admin surface.
func (s *service) ListAvailablePlans(_ context.Context) []PlanInfo {
	products := s.catalog.Current().List(true)
	plans := make([]PlanInfo, 0, len(products))
	for _, product := range products {
		plans = append(plans, PlanInfo{
			Name:                   product.Name,
			BasePrice:              product.BasePrice,
			RequiresPaymentDetails: product.RequiresPaymentDetails,
			Hidden:                 product.Hidden,
		})
	}
	return plans
}

// SubscribeUserToProduct resolves a user by id or username, ensures their
// account, and subscribes it to the named product. A reference that matches
// one user by id and a different user by username is rejected as ambiguous
// rather than silently picking one.
func (s *service) SubscribeUserToProduct(ctx context.Context, userRef, productName string) (*subscriptions.Result, error) {
	if userRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user reference is required")
	}
	if productName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}

	user, err := s.resolveUser(ctx, userRef)
	if err != nil {
		return nil, err
	}
	account, err := s.EnsureAccount(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.subscriptions.Subscribe(ctx, account.ID, productName)
}

func (s *service) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	var byID *models.User
	if id, err := uuid.Parse(ref); err == nil {
		user, err := s.repo.FindUserByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by id")
		}
		byID = user
	}

	byUsername, err := s.repo.FindUserByUsername(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by username")
	}

	switch {
	case byID != nil && byUsername != nil && byID.ID != byUsername.ID:
		return nil, pkgerrors.New(pkgerrors.CodeAmbiguous,
			"user reference "+ref+" matches different users by id and username")
	case byID != nil:
		return byID, nil
	case byUsername != nil:
		return byUsername, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user "+ref+" not found")
	}
}
