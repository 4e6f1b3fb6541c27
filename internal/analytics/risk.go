package analytics

import (
	"time"

	"github.com/montanaflynn/stats"

	"spotmatch/internal/types"
)

// RiskLevel is the qualitative bucket a risk score falls into.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskScore is a principal's computed risk assessment.
type RiskScore struct {
	PrincipalID     string
	OverallScore    float64
	Level           RiskLevel
	Factors         map[string]float64
	Recommendations []string
	CalculatedAt    time.Time
	Metrics         map[string]float64
}

var riskWeights = map[string]float64{
	"trading_volume":    0.25,
	"trading_frequency": 0.20,
	"concentration":     0.30,
	"volatility":        0.25,
}

// CalculateUserRiskScore reproduces the original weighted risk model over a
// principal's trades in the scoring window (nominally the trailing 30 days;
// callers filter trades to that window before calling).
func CalculateUserRiskScore(principalID string, trades []types.Trade, windowDays int) RiskScore {
	factors := map[string]float64{}

	quoteValue := func(t types.Trade) float64 {
		v, _ := t.Price.Mul(t.Quantity).Float64()
		return v
	}

	totalVolume := 0.0
	for _, t := range trades {
		totalVolume += quoteValue(t)
	}
	factors["trading_volume"] = clampMax(totalVolume/100000, 10)

	tradeCount := len(trades)
	frequencyRisk := 0.0
	if tradeCount > 0 && windowDays > 0 {
		avgPerDay := float64(tradeCount) / float64(windowDays)
		frequencyRisk = clampMax(avgPerDay/10, 10)
	}
	factors["trading_frequency"] = frequencyRisk

	symbolVolumes := map[string]float64{}
	for _, t := range trades {
		symbolVolumes[t.Symbol] += quoteValue(t)
	}
	concentrationRisk := 0.0
	if len(symbolVolumes) > 0 && totalVolume > 0 {
		max := 0.0
		for _, v := range symbolVolumes {
			if v > max {
				max = v
			}
		}
		concentrationRisk = (max / totalVolume) * 10
	}
	factors["concentration"] = concentrationRisk

	volatilityRisk := 5.0
	if len(trades) >= 10 {
		values := make(stats.Float64Data, len(trades))
		for i, t := range trades {
			values[i] = quoteValue(t)
		}
		mean, _ := stats.Mean(values)
		std, _ := stats.StandardDeviationSample(values)
		if mean > 0 {
			volatilityRisk = clampMax((std/mean)*10, 10)
		}
	}
	factors["volatility"] = volatilityRisk

	overall := 0.0
	for k, w := range riskWeights {
		overall += factors[k] * w
	}

	level := RiskLow
	switch {
	case overall >= 7:
		level = RiskCritical
	case overall >= 5:
		level = RiskHigh
	case overall >= 3:
		level = RiskMedium
	}

	var recs []string
	if factors["concentration"] > 6 {
		recs = append(recs, "diversify holdings to reduce concentration risk")
	}
	if factors["trading_frequency"] > 7 {
		recs = append(recs, "consider reducing trading frequency to manage risk")
	}
	if factors["volatility"] > 7 {
		recs = append(recs, "use stop-loss orders to manage volatility exposure")
	}

	return RiskScore{
		PrincipalID:     principalID,
		OverallScore:    round2(overall),
		Level:           level,
		Factors:         factors,
		Recommendations: recs,
		CalculatedAt:    time.Now(),
		Metrics: map[string]float64{
			"total_trades":    float64(tradeCount),
			"total_volume":    totalVolume,
			"unique_symbols":  float64(len(symbolVolumes)),
		},
	}
}

func clampMax(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
