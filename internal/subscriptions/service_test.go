package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/pkg/config"
	"github.com/recurware/billing-backend/pkg/db/models"
	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

type stubResponder struct {
	decision processors.Decision
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubResponder) Decide(ctx context.Context, _ processors.Route) (processors.Decision, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return processors.Decision{}, ctx.Err()
		}
	}
	return s.decision, s.err
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func testCatalogStore(t *testing.T) *catalog.Store {
	t.Helper()
	reg := catalog.NewRegistry()
	reg.Register("saas",
		catalog.Product{Name: "FreePlan", BasePrice: decimal.Zero},
		catalog.Product{Name: "BronzePlan", BasePrice: decimal.NewFromInt(25), RequiresPaymentDetails: true},
	)
	cat, err := catalog.Load(reg, config.CatalogConfig{Group: "saas"})
	require.NoError(t, err)
	return catalog.NewStore(cat)
}

func newTestService(t *testing.T, gdb *gorm.DB, responder processors.ApprovalResponder, timeout time.Duration) Service {
	t.Helper()
	store := testCatalogStore(t)
	typeRepo := catalog.NewTypeRepository(gdb)
	// Product type rows come from reconciliation, the same as at boot.
	_, err := catalog.NewReconciler(typeRepo, nil, nil).
		Reconcile(context.Background(), store.Current(), catalog.ReconcileOptions{})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(gdb),
		TypeRepo:          typeRepo,
		Catalog:           store,
		Responder:         responder,
		TransactionRunner: &gormTxRunner{db: gdb},
		ApprovalTimeout:   timeout,
	})
	require.NoError(t, err)
	return svc
}

func seedAccount(t *testing.T, gdb *gorm.DB) uuid.UUID {
	t.Helper()
	user := models.User{ID: uuid.New(), Username: "alice"}
	require.NoError(t, gdb.Create(&user).Error)
	account := models.Account{ID: uuid.New(), OwnerUserID: user.ID}
	require.NoError(t, gdb.Create(&account).Error)
	return account.ID
}

func TestSubscribeApproved(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{decision: processors.Decision{Status: enums.ApprovalStatusApproved}}
	svc := newTestService(t, gdb, responder, time.Second)

	result, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusApproved, result.Status.Status)
	require.Equal(t, 1, responder.calls)

	// History reads pending then approved: the pending event is never skipped.
	events, err := svc.History(context.Background(), result.Subscription.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, enums.ApprovalStatusPending, events[0].Status)
	require.Equal(t, enums.ApprovalStatusApproved, events[1].Status)
}

func TestSubscribeDeclined(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{decision: processors.Decision{
		Status: enums.ApprovalStatusDeclined,
		Note:   "billing details missing or invalid",
	}}
	svc := newTestService(t, gdb, responder, time.Second)

	result, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusDeclined, result.Status.Status)
	require.NotEmpty(t, result.Status.Note)
}

func TestSubscribeUnknownProduct(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	svc := newTestService(t, gdb, &stubResponder{}, time.Second)

	_, err := svc.Subscribe(context.Background(), accountID, "NoSuchPlan")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	// No orphan rows when product resolution fails.
	var count int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubscribeUnreconciledProductTypeFails(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	// No reconciliation: the catalog knows BronzePlan but product_types is empty.
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(gdb),
		TypeRepo:          catalog.NewTypeRepository(gdb),
		Catalog:           testCatalogStore(t),
		Responder:         &stubResponder{decision: processors.Decision{Status: enums.ApprovalStatusApproved}},
		TransactionRunner: &gormTxRunner{db: gdb},
		ApprovalTimeout:   time.Second,
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvariant))

	// Subscribe must never create product type rows itself.
	var types int64
	require.NoError(t, gdb.Model(&models.ProductType{}).Count(&types).Error)
	require.Zero(t, types)
	var subs int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&subs).Error)
	require.Zero(t, subs)
}

func TestSubscribeResponderErrorDeclinesForManualReview(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{err: errors.New("processor offline")}
	svc := newTestService(t, gdb, responder, time.Second)

	result, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusDeclined, result.Status.Status)
	require.Equal(t, manualReviewNote, result.Status.Note)
}

func TestSubscribeResponderTimeoutDeclinesForManualReview(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{
		decision: processors.Decision{Status: enums.ApprovalStatusApproved},
		delay:    time.Second,
	}
	svc := newTestService(t, gdb, responder, 20*time.Millisecond)

	result, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusDeclined, result.Status.Status)
	require.Equal(t, manualReviewNote, result.Status.Note)

	// Timeout still ends in a terminal event, never a stuck pending.
	status, err := NewRepository(gdb).CurrentStatus(context.Background(), result.Subscription.ID)
	require.NoError(t, err)
	require.True(t, status.Status.IsTerminal())
}

func TestSubscribeTwiceCreatesNewSubscription(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{decision: processors.Decision{Status: enums.ApprovalStatusApproved}}
	svc := newTestService(t, gdb, responder, time.Second)

	first, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)
	second, err := svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)

	require.NotEqual(t, first.Subscription.ID, second.Subscription.ID)
	require.Equal(t, first.Subscription.ProductTypeID, second.Subscription.ProductTypeID)

	var count int64
	require.NoError(t, gdb.Model(&models.ProductType{}).Where("name = ?", "BronzePlan").Count(&count).Error)
	require.Equal(t, int64(1), count, "re-subscribing must reuse the product type row")
}

func TestSubscribeRequiresAccountID(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestService(t, gdb, &stubResponder{}, time.Second)

	_, err := svc.Subscribe(context.Background(), uuid.Nil, "FreePlan")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestGetNotFound(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestService(t, gdb, &stubResponder{}, time.Second)

	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListReturnsCurrentStatuses(t *testing.T) {
	gdb := newTestDB(t)
	accountID := seedAccount(t, gdb)
	responder := &stubResponder{decision: processors.Decision{Status: enums.ApprovalStatusApproved}}
	svc := newTestService(t, gdb, responder, time.Second)

	_, err := svc.Subscribe(context.Background(), accountID, "FreePlan")
	require.NoError(t, err)
	_, err = svc.Subscribe(context.Background(), accountID, "BronzePlan")
	require.NoError(t, err)

	results, cursor, err := svc.List(context.Background(), ListSubscriptionsQuery{AccountID: accountID})
	require.NoError(t, err)
	require.Nil(t, cursor)
	require.Len(t, results, 2)
	for _, result := range results {
		require.Equal(t, enums.ApprovalStatusApproved, result.Status.Status)
		require.NotNil(t, result.Subscription.ProductType)
	}
}
