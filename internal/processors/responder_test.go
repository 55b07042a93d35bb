package processors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

func newResponder(t *testing.T, processor Processor) *RouterResponder {
	t.Helper()
	reg := NewRegistry()
	reg.Register("simple", stubFactory(processor))
	reg.Alias(DefaultName, "simple")
	router, err := NewRouter(reg)
	require.NoError(t, err)
	responder, err := NewRouterResponder(router, nil, nil)
	require.NoError(t, err)
	return responder
}

func TestDecideApprovesFreeProductWithoutProcessor(t *testing.T) {
	// No processor registered at all: free products never consult one.
	router, err := NewRouter(NewRegistry())
	require.NoError(t, err)
	responder, err := NewRouterResponder(router, nil, nil)
	require.NoError(t, err)

	decision, err := responder.Decide(context.Background(), testRoute(false))
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusApproved, decision.Status)
}

func TestDecideApprovesWithValidBillingDetails(t *testing.T) {
	responder := newResponder(t, &stubProcessor{name: "simple", valid: true})

	decision, err := responder.Decide(context.Background(), testRoute(true))
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusApproved, decision.Status)
	require.Empty(t, decision.Note)
}

func TestDecideDeclinesWithoutBillingDetails(t *testing.T) {
	responder := newResponder(t, &stubProcessor{name: "simple", valid: false})

	decision, err := responder.Decide(context.Background(), testRoute(true))
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusDeclined, decision.Status)
	require.NotEmpty(t, decision.Note)
}

func TestDecideProcessorErrorMapsToUnavailable(t *testing.T) {
	responder := newResponder(t, &stubProcessor{name: "simple", err: errors.New("backend down")})

	_, err := responder.Decide(context.Background(), testRoute(true))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeProcessorUnavailable))
}
