// spotmatch is a cryptocurrency spot-trading backend: a price-time priority
// matching engine with per-symbol order books, a pub/sub fan-out bus, and
// trade-stream analytics.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires collaborators, waits for SIGINT/SIGTERM
//	internal/matching        — admission validation, the match loop, time in force, self-match avoidance
//	internal/book            — per-symbol red-black tree price ladder with FIFO price-time priority
//	internal/wallet          — balance gate: reserve/settle/release semantics over principal/asset balances
//	internal/tradelog        — append-only trade log, committed atomically with order status updates
//	internal/store           — transactional row store backing the trade log and order state
//	internal/pubsub          — fan-out bus (in-memory or Redis) the engine publishes trades/orders onto
//	internal/session         — WebSocket hub routing channel subscriptions onto the pub/sub bus
//	internal/analytics       — anomaly detection, risk scoring, price prediction, sentiment, portfolios
//	internal/api             — REST + WebSocket surface and the periodic analytics broadcaster
//	internal/ratelimit       — per-principal order admission rate limiting
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"spotmatch/internal/api"
	"spotmatch/internal/config"
	"spotmatch/internal/matching"
	"spotmatch/internal/pubsub"
	"spotmatch/internal/session"
	"spotmatch/internal/store"
	"spotmatch/internal/tradelog"
	"spotmatch/internal/wallet"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SPOTMATCH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ledger := wallet.NewLedger()
	tradeLog := tradelog.New()

	var bus pubsub.Bus
	if cfg.PubSub.Backend == "redis" {
		redisBus, err := pubsub.NewRedis(cfg.PubSub.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		bus = redisBus
	} else {
		bus = pubsub.NewLocal(256)
	}
	defer bus.Close()

	matchingCfg := matching.Config{
		MaxSlippagePct:  cfg.Matching.MaxSlippagePct,
		SelfMatchPolicy: cfg.Matching.SelfMatchPolicy,
		CommissionRate:  cfg.Matching.CommissionRate,
		QuoteScale:      cfg.Wallet.QuoteScale,
		BaseScale:       cfg.Wallet.BaseScale,
		MinOrderSize:    decimal.NewFromFloat(cfg.Matching.MinOrderSize),
		MaxOrderSize:    decimal.NewFromFloat(cfg.Matching.MaxOrderSize),
	}
	engine := matching.New(matchingCfg, cfg.Symbols, ledger, tradeLog, st, bus, logger)

	hub := session.NewHub(bus, api.HeaderAuthResolver{}, logger)
	apiServer := api.NewServer(engine, tradeLog, ledger, bus, cfg.Symbols, hub, cfg.API, cfg.Analytics, logger)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server failed", "error", err)
		}
	}()
	logger.Info("spotmatch api started", "url", fmt.Sprintf("http://localhost:%d", cfg.API.Port))

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go runExpirySweep(sweepCtx, engine, cfg.Matching.GTDSweepInterval, logger)

	logger.Info("spotmatch started", "symbols", cfg.Symbols, "pubsub_backend", cfg.PubSub.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancelSweep()
	if err := apiServer.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
}

// runExpirySweep periodically cancels GTD orders whose expiry has passed,
// following the teacher's cheap-polling risk-monitor idiom.
func runExpirySweep(ctx context.Context, engine *matching.Engine, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := engine.SweepExpired(ctx, time.Now()); n > 0 {
				logger.Info("swept expired GTD orders", "count", n)
			}
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
