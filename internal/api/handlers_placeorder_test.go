package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"spotmatch/internal/config"
	"spotmatch/internal/ratelimit"
)

func newTestHandlers(limiter *ratelimit.PerPrincipal) *Handlers {
	return NewHandlers(nil, nil, nil, nil, limiter, config.APIConfig{}, config.AnalyticsConfig{}, slog.Default())
}

func TestHandlePlaceOrderRejectsMissingPrincipal(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(ratelimit.NewPerPrincipal(10, 10))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.HandlePlaceOrder(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlePlaceOrderRejectsWrongMethod(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(ratelimit.NewPerPrincipal(10, 10))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	h.HandlePlaceOrder(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlePlaceOrderEnforcesRateLimit(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(ratelimit.NewPerPrincipal(0, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{}`))
	req.Header.Set(principalHeader, "alice")
	rec := httptest.NewRecorder()
	h.HandlePlaceOrder(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandlePlaceOrderRejectsInvalidBody(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(ratelimit.NewPerPrincipal(10, 10))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`not json`))
	req.Header.Set(principalHeader, "alice")
	rec := httptest.NewRecorder()
	h.HandlePlaceOrder(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePlaceOrderRejectsInvalidOrderFields(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(ratelimit.NewPerPrincipal(10, 10))

	// An empty body leaves quantity unset, so placeOrderRequest.toOrder fails
	// to parse it before the engine is touched.
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{}`))
	req.Header.Set(principalHeader, "alice")
	rec := httptest.NewRecorder()
	h.HandlePlaceOrder(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
