package analytics

import (
	"time"

	"spotmatch/internal/types"
)

// Sentiment is the market mood label derived from buy/sell pressure.
type Sentiment string

const (
	SentimentBullish         Sentiment = "bullish"
	SentimentSlightlyBullish Sentiment = "slightly_bullish"
	SentimentNeutral         Sentiment = "neutral"
	SentimentSlightlyBearish Sentiment = "slightly_bearish"
	SentimentBearish         Sentiment = "bearish"
)

// MarketSentiment is a point-in-time read of buy/sell pressure and trend for
// a symbol, computed from the trailing trade window.
type MarketSentiment struct {
	Symbol      string
	Sentiment   Sentiment
	Score       int // 0-100, 50 is neutral
	BuyPressure float64
	SellPressure float64
	VolumeTrend string // "increasing", "decreasing", "stable"
	PriceTrend  string // "uptrend", "downtrend", "sideways"
	AnalyzedAt  time.Time
}

// AnalyzeMarketSentiment reproduces the original buy/sell-pressure and
// early/late-window trend comparison.
func AnalyzeMarketSentiment(symbol string, trades []types.Trade) MarketSentiment {
	if len(trades) == 0 {
		return MarketSentiment{
			Symbol:       symbol,
			Sentiment:    SentimentNeutral,
			Score:        50,
			BuyPressure:  50,
			SellPressure: 50,
			VolumeTrend:  "stable",
			PriceTrend:   "sideways",
			AnalyzedAt:   time.Now(),
		}
	}

	var buyVolume, sellVolume float64
	for _, t := range trades {
		q, _ := t.Quantity.Float64()
		if t.AggressorSide == types.Buy {
			buyVolume += q
		} else {
			sellVolume += q
		}
	}
	total := buyVolume + sellVolume
	buyPressure, sellPressure := 50.0, 50.0
	if total > 0 {
		buyPressure = buyVolume / total * 100
		sellPressure = sellVolume / total * 100
	}

	score := int(buyPressure)
	sentiment := SentimentNeutral
	switch {
	case score > 65:
		sentiment = SentimentBullish
	case score > 55:
		sentiment = SentimentSlightlyBullish
	case score < 35:
		sentiment = SentimentBearish
	case score < 45:
		sentiment = SentimentSlightlyBearish
	}

	priceTrend := "sideways"
	if len(trades) >= 10 {
		prices := make([]float64, len(trades))
		for i, t := range trades {
			prices[i], _ = t.Price.Float64()
		}
		mid := len(prices) / 2
		early := mean(prices[:mid])
		late := mean(prices[mid:])
		if early != 0 {
			change := (late - early) / early * 100
			switch {
			case change > 2:
				priceTrend = "uptrend"
			case change < -2:
				priceTrend = "downtrend"
			}
		}
	}

	volumeTrend := "stable"
	if len(trades) >= 20 {
		first, last := trades[0].ExecutedAt, trades[len(trades)-1].ExecutedAt
		midTime := first.Add(last.Sub(first) / 2)
		var earlyCount, lateCount float64
		for _, t := range trades {
			if t.ExecutedAt.Before(midTime) {
				earlyCount++
			} else {
				lateCount++
			}
		}
		switch {
		case lateCount > earlyCount*1.5:
			volumeTrend = "increasing"
		case lateCount < earlyCount*0.6:
			volumeTrend = "decreasing"
		}
	}

	return MarketSentiment{
		Symbol:       symbol,
		Sentiment:    sentiment,
		Score:        score,
		BuyPressure:  round1(buyPressure),
		SellPressure: round1(sellPressure),
		VolumeTrend:  volumeTrend,
		PriceTrend:   priceTrend,
		AnalyzedAt:   time.Now(),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
