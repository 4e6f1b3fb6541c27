package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"spotmatch/internal/analytics"
	"spotmatch/internal/config"
	"spotmatch/internal/matching"
	"spotmatch/internal/ratelimit"
	"spotmatch/internal/session"
	"spotmatch/internal/tradelog"
	"spotmatch/internal/types"
	"spotmatch/internal/wallet"
)

// Handlers holds all HTTP/WebSocket handler dependencies.
type Handlers struct {
	engine    *matching.Engine
	trades    *tradelog.Log
	ledger    *wallet.Ledger
	hub       *session.Hub
	limiter   *ratelimit.PerPrincipal
	cfg       config.APIConfig
	analytics config.AnalyticsConfig
	logger    *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(engine *matching.Engine, trades *tradelog.Log, ledger *wallet.Ledger, hub *session.Hub, limiter *ratelimit.PerPrincipal, cfg config.APIConfig, analyticsCfg config.AnalyticsConfig, logger *slog.Logger) *Handlers {
	return &Handlers{
		engine:    engine,
		trades:    trades,
		ledger:    ledger,
		hub:       hub,
		limiter:   limiter,
		cfg:       cfg,
		analytics: analyticsCfg,
		logger:    logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePlaceOrder handles POST /api/orders.
func (h *Handlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	principalID := principalFromRequest(r)
	if principalID == "" {
		writeError(w, http.StatusUnauthorized, "missing principal identity")
		return
	}
	if !h.limiter.Allow(principalID) {
		writeError(w, http.StatusTooManyRequests, "order rate limit exceeded")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := req.toOrder(principalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.PlaceOrder(r.Context(), order, time.Now())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, placeOrderResponse{
		Order:  newOrderResponse(result.Order),
		Trades: newTradeResponses(result.Trades),
	})
}

// HandleCancelOrder handles DELETE /api/orders/{symbol}/{id}.
func (h *Handlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request, symbol, orderID string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.engine.Cancel(r.Context(), symbol, orderID, time.Now()); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// HandleGetOrder handles GET /api/orders/{symbol}/{id}.
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request, symbol, orderID string) {
	o, ok, err := h.engine.Order(symbol, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// HandleDepth handles GET /api/depth/{symbol}?levels=N.
func (h *Handlers) HandleDepth(w http.ResponseWriter, r *http.Request, symbol string) {
	levels := 20
	if v := r.URL.Query().Get("levels"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			levels = parsed
		}
	}
	depth, err := h.engine.Depth(symbol, levels)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, depth)
}

// HandleTrades handles GET /api/trades/{symbol}?limit=N.
func (h *Handlers) HandleTrades(w http.ResponseWriter, r *http.Request, symbol string) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, newTradeResponses(h.trades.Recent(symbol, limit)))
}

// HandleMarketSnapshot handles GET /api/markets/{symbol}.
func (h *Handlers) HandleMarketSnapshot(w http.ResponseWriter, r *http.Request, symbol string) {
	snap, err := buildMarketSnapshot(h.engine, h.trades, symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleWalletBalance handles GET /api/wallets/{principal}/{asset}.
func (h *Handlers) HandleWalletBalance(w http.ResponseWriter, r *http.Request, principalID, asset string) {
	bal := h.ledger.Snapshot(principalID, asset)
	writeJSON(w, http.StatusOK, balanceResponse{
		PrincipalID: principalID,
		Asset:       asset,
		Total:       bal.Total.String(),
		Locked:      bal.Locked.String(),
		Available:   bal.Available().String(),
	})
}

// windowTrades returns symbol's trade history clipped to the configured
// analytics evaluation window, or the full history when no window is set.
func (h *Handlers) windowTrades(symbol string) []types.Trade {
	all := h.trades.All(symbol)
	if h.analytics.EvalWindow <= 0 {
		return all
	}
	cutoff := time.Now().Add(-h.analytics.EvalWindow)
	for i, t := range all {
		if !t.ExecutedAt.Before(cutoff) {
			return all[i:]
		}
	}
	return nil
}

func (h *Handlers) thresholds() analytics.Thresholds {
	th := analytics.DefaultThresholds()
	if h.analytics.VolumeSpikeStdDevK > 0 {
		th.VolumeSpikeMultiplier = h.analytics.VolumeSpikeStdDevK
	}
	if h.analytics.LargeTradePercentile > 0 {
		th.LargeTradePercentile = h.analytics.LargeTradePercentile
	}
	if h.analytics.RapidTradeThreshold > 0 {
		th.RapidTradeThreshold = h.analytics.RapidTradeThreshold
	}
	if h.analytics.WashTradeRatio > 0 {
		th.WashTradeRatio = h.analytics.WashTradeRatio
	}
	if h.analytics.WashTradeMinCount > 0 {
		th.WashTradeMinVolume = float64(h.analytics.WashTradeMinCount)
	}
	return th
}

// HandleAnomalies handles GET /api/analytics/anomalies/{symbol}.
func (h *Handlers) HandleAnomalies(w http.ResponseWriter, r *http.Request, symbol string) {
	writeJSON(w, http.StatusOK, analytics.DetectAnomalies(symbol, h.windowTrades(symbol), h.thresholds()))
}

// HandleRiskScore handles GET /api/analytics/risk/{symbol}/{principal}.
func (h *Handlers) HandleRiskScore(w http.ResponseWriter, r *http.Request, symbol, principalID string) {
	const windowDays = 30
	cutoff := time.Now().AddDate(0, 0, -windowDays)
	var trades []types.Trade
	for _, t := range h.trades.All(symbol) {
		if t.ExecutedAt.Before(cutoff) {
			continue
		}
		if t.TakerPrincipal == principalID || t.MakerPrincipal == principalID {
			trades = append(trades, t)
		}
	}
	writeJSON(w, http.StatusOK, analytics.CalculateUserRiskScore(principalID, trades, windowDays))
}

// HandlePricePrediction handles GET /api/analytics/prediction/{symbol}.
func (h *Handlers) HandlePricePrediction(w http.ResponseWriter, r *http.Request, symbol string) {
	writeJSON(w, http.StatusOK, analytics.PredictPrice(symbol, h.windowTrades(symbol), 60))
}

// HandleSentiment handles GET /api/analytics/sentiment/{symbol}.
func (h *Handlers) HandleSentiment(w http.ResponseWriter, r *http.Request, symbol string) {
	writeJSON(w, http.StatusOK, analytics.AnalyzeMarketSentiment(symbol, h.windowTrades(symbol)))
}

// HandlePortfolio handles GET /api/analytics/portfolio/{symbol}/{principal}.
func (h *Handlers) HandlePortfolio(w http.ResponseWriter, r *http.Request, symbol, principalID string) {
	writeJSON(w, http.StatusOK, analytics.AnalyzePortfolio(principalID, h.windowTrades(symbol)))
}

// HandleWebSocket upgrades the connection and registers it with the session
// hub, which then routes channel subscriptions onto the pub/sub bus.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg.AllowedOrigins, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	principalID := principalFromRequest(r)
	h.hub.Register(conn, principalID)
}

func isOriginAllowed(origin string, allowedOrigins []string, reqHost string) bool {
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(allowedOrigins) > 0 {
		for _, allowed := range allowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
