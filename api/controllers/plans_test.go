package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/recurware/billing-backend/internal/accounts"
)

type stubPlanService struct {
	plans []accounts.PlanInfo
}

func (s *stubPlanService) ListAvailablePlans(context.Context) []accounts.PlanInfo {
	return s.plans
}

func testPlans() []accounts.PlanInfo {
	return []accounts.PlanInfo{
		{Name: "FreePlan", BasePrice: decimal.Zero},
		{Name: "SecretPlan", BasePrice: decimal.NewFromInt(100), Hidden: true, RequiresPaymentDetails: true},
		{Name: "GoldPlan", BasePrice: decimal.NewFromInt(250), RequiresPaymentDetails: true},
	}
}

func TestPlansListHidesHiddenByDefault(t *testing.T) {
	handler := PlansList(&stubPlanService{plans: testPlans()}, nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data planListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Data.Plans, 2)
	require.Equal(t, "FreePlan", payload.Data.Plans[0].Name)
	require.Equal(t, "GoldPlan", payload.Data.Plans[1].Name)
	require.Equal(t, "250", payload.Data.Plans[1].BasePrice)
}

func TestPlansListIncludeHidden(t *testing.T) {
	handler := PlansList(&stubPlanService{plans: testPlans()}, nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans?include_hidden=true", nil))

	var payload struct {
		Data planListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Data.Plans, 3)
	require.True(t, payload.Data.Plans[1].Hidden)
}

func TestPlansListInvalidFlag(t *testing.T) {
	handler := PlansList(&stubPlanService{plans: testPlans()}, nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans?include_hidden=banana", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlansListNilService(t *testing.T) {
	handler := PlansList(nil, nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
