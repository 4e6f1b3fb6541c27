package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"spotmatch/internal/analytics"
	"spotmatch/internal/config"
	"spotmatch/internal/pubsub"
	"spotmatch/internal/tradelog"
)

// analyticsBroadcaster periodically re-runs anomaly detection and sentiment
// analysis per symbol and republishes the results onto the bus, so
// WebSocket sessions subscribed to alerts:<symbol>/sentiment:<symbol> see
// them without polling the REST analytics endpoints.
type analyticsBroadcaster struct {
	bus     pubsub.Bus
	trades  *tradelog.Log
	symbols []string
	cfg     config.AnalyticsConfig
	logger  *slog.Logger
}

func newAnalyticsBroadcaster(bus pubsub.Bus, trades *tradelog.Log, symbols []string, cfg config.AnalyticsConfig, logger *slog.Logger) *analyticsBroadcaster {
	return &analyticsBroadcaster{bus: bus, trades: trades, symbols: symbols, cfg: cfg, logger: logger.With("component", "analytics-broadcaster")}
}

// run ticks every interval (falling back to one minute when unset) until
// ctx is cancelled.
func (b *analyticsBroadcaster) run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *analyticsBroadcaster) tick(ctx context.Context) {
	th := analytics.DefaultThresholds()
	if b.cfg.VolumeSpikeStdDevK > 0 {
		th.VolumeSpikeMultiplier = b.cfg.VolumeSpikeStdDevK
	}
	if b.cfg.LargeTradePercentile > 0 {
		th.LargeTradePercentile = b.cfg.LargeTradePercentile
	}
	if b.cfg.RapidTradeThreshold > 0 {
		th.RapidTradeThreshold = b.cfg.RapidTradeThreshold
	}
	if b.cfg.WashTradeRatio > 0 {
		th.WashTradeRatio = b.cfg.WashTradeRatio
	}
	if b.cfg.WashTradeMinCount > 0 {
		th.WashTradeMinVolume = float64(b.cfg.WashTradeMinCount)
	}

	for _, symbol := range b.symbols {
		trades := b.trades.All(symbol)
		if alerts := analytics.DetectAnomalies(symbol, trades, th); len(alerts) > 0 {
			b.publish(ctx, "alerts:"+symbol, newAlertEvent(symbol, alerts))
		}
		sentiment := analytics.AnalyzeMarketSentiment(symbol, trades)
		b.publish(ctx, "sentiment:"+symbol, newSentimentEvent(symbol, sentiment))
	}
}

func (b *analyticsBroadcaster) publish(ctx context.Context, channel string, evt wsEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("failed to marshal analytics event", "error", err)
		return
	}
	if err := b.bus.Publish(ctx, channel, payload); err != nil {
		b.logger.Error("failed to publish analytics event", "channel", channel, "error", err)
	}
}
