package analytics

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// Direction is the predicted price movement bucket.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// PricePrediction is the technical-analysis forecast for one symbol.
type PricePrediction struct {
	Symbol          string
	CurrentPrice    decimal.Decimal
	PredictedPrice  decimal.Decimal
	Confidence      float64
	Direction       Direction
	HorizonMinutes  int
	Factors         map[string]float64
	GeneratedAt     time.Time
}

// PredictPrice reproduces the original SMA/RSI/momentum/volume/Bollinger
// ensemble. trades must be ordered oldest first; fewer than 50 trades yields
// a zero-confidence neutral prediction, matching the original's floor.
func PredictPrice(symbol string, trades []types.Trade, horizonMinutes int) PricePrediction {
	if len(trades) < 50 {
		return PricePrediction{
			Symbol:         symbol,
			Direction:      DirectionNeutral,
			HorizonMinutes: horizonMinutes,
			Factors:        map[string]float64{},
			GeneratedAt:    time.Now(),
		}
	}

	prices := make([]float64, len(trades))
	volumes := make([]float64, len(trades))
	for i, t := range trades {
		prices[i], _ = t.Price.Float64()
		volumes[i], _ = t.Quantity.Float64()
	}
	currentPrice := prices[len(prices)-1]

	sma20 := meanTail(prices, 20, currentPrice)
	sma50 := meanTail(prices, 50, currentPrice)
	factors := map[string]float64{
		"sma_20": sma20,
		"sma_50": sma50,
	}

	rsi := calculateRSI(prices, 14)
	factors["rsi"] = rsi

	momentum := 0.0
	if len(prices) >= 10 {
		prev := prices[len(prices)-10]
		if prev != 0 {
			momentum = (currentPrice - prev) / prev * 100
		}
	}
	factors["momentum"] = momentum

	recentVol := meanTail(volumes, 10, 0)
	olderVol := recentVol
	if len(volumes) >= 50 {
		olderVol = mean(volumes[len(volumes)-50 : len(volumes)-10])
	}
	volumeTrend := 1.0
	if olderVol > 0 {
		volumeTrend = recentVol / olderVol
	}
	factors["volume_trend"] = volumeTrend

	bbWidth := 5.0
	if len(prices) >= 20 {
		tail := prices[len(prices)-20:]
		std, _ := stats.StandardDeviationSample(stats.Float64Data(tail))
		if sma20 != 0 {
			bbWidth = (std * 2) / sma20 * 100
		}
	}
	factors["bollinger_width"] = bbWidth

	var signals []float64
	if sma20 > sma50 {
		signals = append(signals, 0.2)
	} else {
		signals = append(signals, -0.2)
	}
	switch {
	case rsi < 30:
		signals = append(signals, 0.3)
	case rsi > 70:
		signals = append(signals, -0.3)
	default:
		signals = append(signals, 0)
	}
	signals = append(signals, clamp(momentum/10, -0.3, 0.3))
	if volumeTrend > 1.5 {
		if momentum > 0 {
			signals = append(signals, 0.1)
		} else {
			signals = append(signals, -0.1)
		}
	}

	combined := sum(signals)
	predictedChangePct := combined * (float64(horizonMinutes) / 60) * 0.5
	predictedPrice := currentPrice * (1 + predictedChangePct/100)

	direction := DirectionNeutral
	confidence := 0.5
	switch {
	case combined > 0.2:
		direction = DirectionBullish
		confidence = clampMax(0.5+absf(combined), 0.85)
	case combined < -0.2:
		direction = DirectionBearish
		confidence = clampMax(0.5+absf(combined), 0.85)
	}

	return PricePrediction{
		Symbol:         symbol,
		CurrentPrice:   decimal.NewFromFloat(currentPrice),
		PredictedPrice: decimal.NewFromFloat(predictedPrice),
		Confidence:     round2(confidence),
		Direction:      direction,
		HorizonMinutes: horizonMinutes,
		Factors:        factors,
		GeneratedAt:    time.Now(),
	}
}

// calculateRSI is the classic Wilder relative strength index over the last
// `period` price deltas: average gain and average loss are the sums of the
// gains and of the losses in that window, each divided by period. Returns 50
// (neutral) if there isn't enough history or the prices did not move.
func calculateRSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}
	deltas := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		deltas[i-1] = prices[i] - prices[i-1]
	}
	recent := deltas[len(deltas)-period:]

	var gainSum, lossSum float64
	for _, d := range recent {
		switch {
		case d > 0:
			gainSum += d
		case d < 0:
			lossSum -= d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return round2(100 - (100 / (1 + rs)))
}

func meanTail(xs []float64, n int, fallback float64) float64 {
	if len(xs) == 0 {
		return fallback
	}
	if len(xs) < n {
		return mean(xs)
	}
	return mean(xs[len(xs)-n:])
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m, _ := stats.Mean(stats.Float64Data(xs))
	return m
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
