package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"spotmatch/internal/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func trade(id uint64, price, qty string, aggressor types.Side, taker, maker string, at time.Time) types.Trade {
	return types.Trade{
		TradeID:        id,
		Symbol:         "BTC-USD",
		Price:          dec(price),
		Quantity:       dec(qty),
		AggressorSide:  aggressor,
		TakerPrincipal: taker,
		MakerPrincipal: maker,
		ExecutedAt:     at,
	}
}

func TestDetectLargeTradesFlagsOutliers(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var trades []types.Trade
	for i := 0; i < 20; i++ {
		trades = append(trades, trade(uint64(i), "100", "1", types.Buy, "taker", "maker", now.Add(time.Duration(i)*time.Minute)))
	}
	trades = append(trades, trade(97, "100", "500", types.Buy, "midwhale", "maker", now))
	trades = append(trades, trade(98, "100", "1000", types.Buy, "whale", "maker", now))

	alerts := DetectAnomalies("BTC-USD", trades, DefaultThresholds())
	var sawWhale bool
	for _, a := range alerts {
		if a.Type == AnomalyLargeTrade && a.PrincipalID == "whale" {
			sawWhale = true
		}
	}
	require.True(t, sawWhale, "the largest outlier trade must be flagged above the 95th-percentile threshold")
}

func TestDetectWashTradingRequiresBalancedVolumeAboveFloor(t *testing.T) {
	t.Parallel()
	now := time.Now()
	trades := []types.Trade{
		trade(1, "100", "200", types.Buy, "washer", "counterparty", now),
		trade(2, "100", "195", types.Sell, "washer", "counterparty2", now),
	}
	alerts := DetectAnomalies("BTC-USD", trades, DefaultThresholds())
	var sawWash bool
	for _, a := range alerts {
		if a.Type == AnomalyWashTrading && a.PrincipalID == "washer" {
			sawWash = true
		}
	}
	require.True(t, sawWash)
}

func TestCalculateUserRiskScoreWeightsFactors(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var trades []types.Trade
	for i := 0; i < 20; i++ {
		trades = append(trades, trade(uint64(i), "100", "1000", types.Buy, "whale", "maker", now.Add(time.Duration(i)*time.Hour)))
	}
	score := CalculateUserRiskScore("whale", trades, 30)
	require.Greater(t, score.OverallScore, 0.0)
	require.Contains(t, []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}, score.Level)
}

func TestPredictPriceNeutralWithInsufficientHistory(t *testing.T) {
	t.Parallel()
	trades := []types.Trade{trade(1, "100", "1", types.Buy, "a", "b", time.Now())}
	pred := PredictPrice("BTC-USD", trades, 60)
	require.Equal(t, DirectionNeutral, pred.Direction)
	require.Equal(t, 0.0, pred.Confidence)
}

func TestAnalyzeMarketSentimentBuyHeavyIsBullish(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var trades []types.Trade
	for i := 0; i < 10; i++ {
		trades = append(trades, trade(uint64(i), "100", "10", types.Buy, "t", "m", now.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 2; i++ {
		trades = append(trades, trade(uint64(100+i), "100", "10", types.Sell, "t", "m", now))
	}
	s := AnalyzeMarketSentiment("BTC-USD", trades)
	require.Equal(t, SentimentBullish, s.Sentiment)
}

func TestAnalyzePortfolioComputesPositionFromLegs(t *testing.T) {
	t.Parallel()
	now := time.Now()
	trades := []types.Trade{
		trade(1, "100", "2", types.Buy, "alice", "bob", now),
		trade(2, "110", "1", types.Sell, "alice", "bob", now.Add(time.Minute)),
	}
	// alice: taker buy 2 @100 then taker sell 1 @110 -> net long 1 BTC, cost basis 200-110=90
	report := AnalyzePortfolio("alice", trades)
	require.Len(t, report.Positions, 1)
	require.True(t, report.Positions[0].Quantity.Equal(dec("1")))
}
