package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/recurware/billing-backend/internal/catalog"
	"github.com/recurware/billing-backend/internal/processors"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

type stubAccountView struct {
	visible []catalog.Product
	current *catalog.Product
	err     error
}

func (s *stubAccountView) VisibleProducts(context.Context, uuid.UUID) ([]catalog.Product, error) {
	return s.visible, s.err
}

func (s *stubAccountView) CurrentProduct(context.Context, uuid.UUID) (*catalog.Product, error) {
	return s.current, s.err
}

type stubAgreements struct {
	recorded map[uuid.UUID]bool
}

func (s *stubAgreements) RecordAgreement(_ context.Context, accountID uuid.UUID, agreed bool) error {
	if s.recorded == nil {
		s.recorded = map[uuid.UUID]bool{}
	}
	s.recorded[accountID] = agreed
	return nil
}

type fixedProcessor struct{}

func (fixedProcessor) Name() string { return "simple" }

func (fixedProcessor) HasValidBillingDetails(context.Context, uuid.UUID) (bool, error) {
	return true, nil
}

func (fixedProcessor) BillingDetailsForm(context.Context, uuid.UUID) (*processors.Form, error) {
	return &processors.Form{
		Processor: "simple",
		Fields:    []processors.FormField{{Name: "has_agreed_to_pay", Kind: "checkbox", Required: true}},
	}, nil
}

func testProcessorRouter(t *testing.T) *processors.Router {
	t.Helper()
	reg := processors.NewRegistry()
	reg.Register("simple", func() (processors.Processor, error) { return fixedProcessor{}, nil })
	reg.Alias(processors.DefaultName, "simple")
	router, err := processors.NewRouter(reg)
	require.NoError(t, err)
	return router
}

func TestAccountProducts(t *testing.T) {
	view := &stubAccountView{visible: []catalog.Product{
		{Name: "FreePlan", BasePrice: decimal.Zero},
		{Name: "BronzePlan", BasePrice: decimal.NewFromInt(25), RequiresPaymentDetails: true},
	}}
	rec := httptest.NewRecorder()
	AccountProducts(view, nil)(rec, requestWithAccount(http.MethodGet, "/", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data struct {
			Products []productResponse `json:"products"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Data.Products, 2)
	require.Equal(t, "FreePlan", payload.Data.Products[0].Name)
}

func TestBillingDetailsFormUsesCurrentProduct(t *testing.T) {
	view := &stubAccountView{current: &catalog.Product{Name: "BronzePlan", RequiresPaymentDetails: true}}
	rec := httptest.NewRecorder()
	BillingDetailsForm(view, testProcessorRouter(t), nil)(rec, requestWithAccount(http.MethodGet, "/", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data processors.Form `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Equal(t, "simple", payload.Data.Processor)
	require.Len(t, payload.Data.Fields, 1)
}

func TestBillingDetailsFormNoCurrentProduct(t *testing.T) {
	view := &stubAccountView{err: pkgerrors.New(pkgerrors.CodeNotFound, "account has no current product")}
	rec := httptest.NewRecorder()
	BillingDetailsForm(view, testProcessorRouter(t), nil)(rec, requestWithAccount(http.MethodGet, "/", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillingDetailsSubmit(t *testing.T) {
	agreements := &stubAgreements{}
	rec := httptest.NewRecorder()
	BillingDetailsSubmit(agreements, nil)(rec, requestWithAccount(http.MethodPost, "/", `{"has_agreed_to_pay":true}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, agreements.recorded, 1)
}

func TestBillingDetailsSubmitMissingField(t *testing.T) {
	rec := httptest.NewRecorder()
	BillingDetailsSubmit(&stubAgreements{}, nil)(rec, requestWithAccount(http.MethodPost, "/", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
