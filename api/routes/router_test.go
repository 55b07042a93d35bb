package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/recurware/billing-backend/internal/accounts"
	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	"github.com/recurware/billing-backend/internal/products"
	"github.com/recurware/billing-backend/internal/subscriptions"
	"github.com/recurware/billing-backend/pkg/config"
	"github.com/recurware/billing-backend/pkg/db/models"
	"github.com/recurware/billing-backend/pkg/enums"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type agreementRecorder struct {
	repo processors.AgreementRepository
}

func (a *agreementRecorder) RecordAgreement(ctx context.Context, accountID uuid.UUID, agreed bool) error {
	return a.repo.RecordAgreement(ctx, accountID, agreed)
}

type memoryIdemStore struct {
	values map[string]string
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{values: map[string]string{}}
}

func (s *memoryIdemStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *memoryIdemStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryIdemStore) IdempotencyKey(scope, id string) string {
	return "billing:idempotency:" + scope + ":" + id
}

func (s *memoryIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

// newTestRouter wires the full billing surface over an in-memory database,
// the way cmd/api does in production.
func newTestRouter(t *testing.T) (http.Handler, uuid.UUID) {
	t.Helper()
	return newTestRouterWithStore(t, nil)
}

func newTestRouterWithStore(t *testing.T, idemStore *memoryIdemStore) (http.Handler, uuid.UUID) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.ProductType{},
		&models.Subscription{},
		&models.SubscriptionApprovalStatus{},
		&models.BillingAgreement{},
	))

	cat, err := catalog.Load(products.DefaultRegistry(), config.CatalogConfig{Group: products.Group})
	require.NoError(t, err)
	store := catalog.NewStore(cat)

	agreements := processors.NewAgreementRepository(gdb)
	registry := processors.NewRegistry()
	registry.Register(processors.SimpleName, func() (processors.Processor, error) {
		return processors.NewSimpleProcessor(agreements)
	})
	registry.Alias(processors.DefaultName, processors.SimpleName)
	procRouter, err := processors.NewRouter(registry)
	require.NoError(t, err)
	responder, err := processors.NewRouterResponder(procRouter, nil, nil)
	require.NoError(t, err)

	subsRepo := subscriptions.NewRepository(gdb)
	typeRepo := catalog.NewTypeRepository(gdb)
	_, err = catalog.NewReconciler(typeRepo, nil, nil).
		Reconcile(context.Background(), cat, catalog.ReconcileOptions{})
	require.NoError(t, err)
	subsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subsRepo,
		TypeRepo:          typeRepo,
		Catalog:           store,
		Responder:         responder,
		TransactionRunner: &gormTxRunner{db: gdb},
		ApprovalTimeout:   time.Second,
	})
	require.NoError(t, err)

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:           accounts.NewRepository(gdb),
		SubsRepo:       subsRepo,
		Subscriptions:  subsService,
		TypeRepo:       typeRepo,
		Catalog:        store,
		ActiveStatuses: []enums.ApprovalStatus{enums.ApprovalStatusPending, enums.ApprovalStatusApproved},
		DefaultProduct: "FreePlan",
	})
	require.NoError(t, err)

	user := models.User{ID: uuid.New(), Username: "alice"}
	require.NoError(t, gdb.Create(&user).Error)
	account, err := accountsService.EnsureAccount(context.Background(), user.ID)
	require.NoError(t, err)

	params := RouterParams{
		Config:          &config.Config{App: config.AppConfig{Env: config.AppEnvDev}},
		Accounts:        accountsService,
		Subscriptions:   subsService,
		ProcessorRouter: procRouter,
		Agreements:      &agreementRecorder{repo: agreements},
	}
	if idemStore != nil {
		params.IdempotencyStore = idemStore
	}
	return NewRouter(params), account.ID
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get("X-Billing-Env"))
}

func TestPlansEndpointHidesSecretPlans(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "SecretPlan")
	require.Contains(t, rec.Body.String(), "FreePlan")
}

func TestSubscribeFlowThroughRouter(t *testing.T) {
	router, accountID := newTestRouter(t)
	base := "/api/v1/accounts/" + accountID.String()

	// Paid plan with no billing details on file: declined.
	rec := doJSON(t, router, http.MethodPost, base+"/subscriptions", `{"product":"BronzePlan"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"declined"`)

	// Record the IOU agreement and retry: approved.
	rec = doJSON(t, router, http.MethodPost, base+"/billing-details", `{"has_agreed_to_pay":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, base+"/subscriptions", `{"product":"BronzePlan"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"approved"`)

	// The approved subscription is now current.
	rec = doJSON(t, router, http.MethodGet, base+"/subscriptions/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "BronzePlan")

	// Both attempts appear in the listing.
	rec = doJSON(t, router, http.MethodGet, base+"/subscriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Data, 2)
}

func TestSubscribeIdempotencyThroughRouter(t *testing.T) {
	router, accountID := newTestRouterWithStore(t, newMemoryIdemStore())
	path := "/api/v1/accounts/" + accountID.String() + "/subscriptions"

	// The mounted middleware must guard the subscribe route: no key, no create.
	rec := doJSON(t, router, http.MethodPost, path, `{"product":"FreePlan"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Idempotency-Key")

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"product":"FreePlan"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "sub-key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())

	// The replay was served from the store, not by subscribing again.
	listRec := doJSON(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, listRec.Code)
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&payload))
	require.Len(t, payload.Data, 1)
}

func TestBillingDetailsFormEndpoint(t *testing.T) {
	router, accountID := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/accounts/"+accountID.String()+"/billing-details/form?product=BronzePlan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "has_agreed_to_pay")
}

func TestVisibleProductsEndpoint(t *testing.T) {
	router, accountID := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts/"+accountID.String()+"/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "GoldPlan")
	require.NotContains(t, rec.Body.String(), "SecretPlan")
}

func TestUnknownProductThroughRouter(t *testing.T) {
	router, accountID := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost,
		"/api/v1/accounts/"+accountID.String()+"/subscriptions", `{"product":"NoSuchPlan"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
