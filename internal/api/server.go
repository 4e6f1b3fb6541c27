package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spotmatch/internal/config"
	"spotmatch/internal/matching"
	"spotmatch/internal/pubsub"
	"spotmatch/internal/ratelimit"
	"spotmatch/internal/session"
	"spotmatch/internal/tradelog"
	"spotmatch/internal/wallet"
)

// Server runs the REST/WebSocket API for the matching core.
type Server struct {
	cfg             config.APIConfig
	hub             *session.Hub
	handlers        *Handlers
	server          *http.Server
	broadcaster     *analyticsBroadcaster
	broadcastCancel context.CancelFunc
	logger          *slog.Logger
}

// NewServer wires routes, a per-principal order rate limiter, the session
// hub, and the analytics broadcaster into one http.Server, following the
// teacher's mux-plus-timeouts construction.
func NewServer(engine *matching.Engine, trades *tradelog.Log, ledger *wallet.Ledger, bus pubsub.Bus, symbols []string, hub *session.Hub, cfg config.APIConfig, analyticsCfg config.AnalyticsConfig, logger *slog.Logger) *Server {
	limiter := ratelimit.NewPerPrincipal(cfg.OrdersPerSecond, cfg.OrdersPerSecond)
	handlers := NewHandlers(engine, trades, ledger, hub, limiter, cfg, analyticsCfg, logger)
	broadcaster := newAnalyticsBroadcaster(bus, trades, symbols, analyticsCfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.HandleFunc("/api/orders", handlers.HandlePlaceOrder)
	mux.HandleFunc("/api/orders/", routeOrderByID(handlers))
	mux.HandleFunc("/api/depth/", routeSingleParam(handlers.HandleDepth))
	mux.HandleFunc("/api/trades/", routeSingleParam(handlers.HandleTrades))
	mux.HandleFunc("/api/markets/", routeSingleParam(handlers.HandleMarketSnapshot))
	mux.HandleFunc("/api/wallets/", routeTwoParam(handlers.HandleWalletBalance))
	mux.HandleFunc("/api/analytics/anomalies/", routeSingleParam(handlers.HandleAnomalies))
	mux.HandleFunc("/api/analytics/prediction/", routeSingleParam(handlers.HandlePricePrediction))
	mux.HandleFunc("/api/analytics/sentiment/", routeSingleParam(handlers.HandleSentiment))
	mux.HandleFunc("/api/analytics/risk/", routeTwoParam(handlers.HandleRiskScore))
	mux.HandleFunc("/api/analytics/portfolio/", routeTwoParam(handlers.HandlePortfolio))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		handlers:    handlers,
		server:      server,
		broadcaster: broadcaster,
		logger:      logger.With("component", "api-server"),
	}
}

// Start runs the analytics broadcaster and the HTTP server; blocks until
// Stop triggers a clean shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.broadcastCancel = cancel
	go s.broadcaster.run(ctx, 30*time.Second)

	s.logger.Info("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and the analytics broadcaster.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")
	if s.broadcastCancel != nil {
		s.broadcastCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// routeOrderByID dispatches /api/orders/{symbol}/{id} to GET/DELETE handlers.
func routeOrderByID(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol, orderID, ok := splitTwo(r.URL.Path, "/api/orders/")
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		switch r.Method {
		case http.MethodDelete:
			h.HandleCancelOrder(w, r, symbol, orderID)
		case http.MethodGet:
			h.HandleGetOrder(w, r, symbol, orderID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func routeSingleParam(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx := strings.LastIndex(r.URL.Path, "/")
		if idx < 0 || idx == len(r.URL.Path)-1 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fn(w, r, r.URL.Path[idx+1:])
	}
}

func routeTwoParam(fn func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fn(w, r, parts[len(parts)-2], parts[len(parts)-1])
	}
}

func splitTwo(path, prefix string) (string, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
