package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitTwo(t *testing.T) {
	t.Parallel()

	symbol, orderID, ok := splitTwo("/api/orders/BTC-USD/abc123", "/api/orders/")
	require.True(t, ok)
	require.Equal(t, "BTC-USD", symbol)
	require.Equal(t, "abc123", orderID)

	_, _, ok = splitTwo("/api/orders/BTC-USD", "/api/orders/")
	require.False(t, ok, "missing order id segment should fail")

	_, _, ok = splitTwo("/api/orders/BTC-USD/", "/api/orders/")
	require.False(t, ok, "trailing slash with empty segment should fail")
}

func TestRouteSingleParamExtractsLastSegment(t *testing.T) {
	t.Parallel()

	var got string
	handler := routeSingleParam(func(w http.ResponseWriter, r *http.Request, symbol string) {
		got = symbol
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/depth/BTC-USD", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "BTC-USD", got)
}

func TestRouteSingleParamRejectsTrailingSlash(t *testing.T) {
	t.Parallel()

	handler := routeSingleParam(func(w http.ResponseWriter, r *http.Request, symbol string) {
		t.Fatal("handler should not be called for a missing segment")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/depth/", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteTwoParamExtractsLastTwoSegments(t *testing.T) {
	t.Parallel()

	var gotSymbol, gotPrincipal string
	handler := routeTwoParam(func(w http.ResponseWriter, r *http.Request, symbol, principal string) {
		gotSymbol = symbol
		gotPrincipal = principal
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/risk/BTC-USD/alice", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "BTC-USD", gotSymbol)
	require.Equal(t, "alice", gotPrincipal)
}
