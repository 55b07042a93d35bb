package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())
}

func TestWritePagedIncludesCursor(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePaged(rec, []string{"a"}, "abc123")

	require.JSONEq(t, `{"data":["a"],"next_cursor":"abc123"}`, rec.Body.String())
}

func TestWritePagedOmitsEmptyCursor(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePaged(rec, []string{"a"}, "")

	require.JSONEq(t, `{"data":["a"]}`, rec.Body.String())
}

func TestWriteErrorUsesCodeMetadata(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeError(t, rec)
	require.Equal(t, "NOT_FOUND", envelope.Error.Code)
	require.Equal(t, "subscription not found", envelope.Error.Message)
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInvariant, "subscription has no approval history"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	require.NotContains(t, envelope.Error.Message, "approval history")
}

func TestWriteErrorWrapsPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	require.Equal(t, string(pkgerrors.CodeInternal), envelope.Error.Code)
	require.NotContains(t, envelope.Error.Message, "boom")
}

func TestWriteErrorProcessorUnavailableIsBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec,
		pkgerrors.New(pkgerrors.CodeProcessorUnavailable, "processor offline"))

	require.Equal(t, http.StatusBadGateway, rec.Code)
}
