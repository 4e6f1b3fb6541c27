package api

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"spotmatch/internal/config"
	"spotmatch/internal/pubsub"
	"spotmatch/internal/tradelog"
	"spotmatch/internal/types"
)

func TestAnalyticsBroadcasterPublishesSentimentEveryTick(t *testing.T) {
	t.Parallel()

	bus := pubsub.NewLocal(8)
	defer bus.Close()

	trades := tradelog.New()
	trades.Commit(types.Trade{
		Symbol:        "BTC-USD",
		Price:         decimal.NewFromInt(100),
		Quantity:      decimal.NewFromInt(1),
		AggressorSide: types.Buy,
		ExecutedAt:    time.Now(),
	})

	sentimentCh, unsubscribe, err := bus.Subscribe(context.Background(), "sentiment:BTC-USD")
	require.NoError(t, err)
	defer unsubscribe()

	b := newAnalyticsBroadcaster(bus, trades, []string{"BTC-USD"}, config.AnalyticsConfig{}, slog.Default())
	b.tick(context.Background())

	select {
	case msg := <-sentimentCh:
		require.Equal(t, "sentiment:BTC-USD", msg.Channel)
	case <-time.After(time.Second):
		t.Fatal("expected a sentiment event to be published")
	}
}

func TestAnalyticsBroadcasterSkipsAlertsWhenNoAnomalies(t *testing.T) {
	t.Parallel()

	bus := pubsub.NewLocal(8)
	defer bus.Close()

	trades := tradelog.New()
	alertsCh, unsubscribe, err := bus.Subscribe(context.Background(), "alerts:BTC-USD")
	require.NoError(t, err)
	defer unsubscribe()

	b := newAnalyticsBroadcaster(bus, trades, []string{"BTC-USD"}, config.AnalyticsConfig{}, slog.Default())
	b.tick(context.Background())

	select {
	case <-alertsCh:
		t.Fatal("no alert should be published when there is no trade history")
	case <-time.After(100 * time.Millisecond):
	}
}
