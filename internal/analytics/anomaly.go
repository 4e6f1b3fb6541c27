// Package analytics implements the trade-stream analytics surface:
// statistical anomaly detection, risk scoring, portfolio analysis, price
// prediction, and market sentiment. Every formula here is grounded on the
// original AI analytics service and reimplemented against the decimal trade
// log instead of an ORM query, using montanaflynn/stats for the descriptive
// statistics the original leaned on Python's statistics module for.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// Thresholds mirrors the original service's RISK_THRESHOLDS table.
type Thresholds struct {
	VolumeSpikeMultiplier  float64
	LargeTradePercentile   float64
	RapidTradeThreshold    int
	ConcentrationThreshold float64
	WashTradeRatio         float64
	WashTradeMinVolume     float64
}

// DefaultThresholds matches the original hardcoded constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VolumeSpikeMultiplier:  3.0,
		LargeTradePercentile:   95,
		RapidTradeThreshold:    10,
		ConcentrationThreshold: 0.7,
		WashTradeRatio:         0.9,
		WashTradeMinVolume:     100,
	}
}

// AnomalyType enumerates the detector that raised an alert.
type AnomalyType string

const (
	AnomalyVolumeSpike  AnomalyType = "VOLUME_SPIKE"
	AnomalyLargeTrade   AnomalyType = "LARGE_TRADE"
	AnomalyRapidTrading AnomalyType = "RAPID_TRADING"
	AnomalyWashTrading  AnomalyType = "WASH_TRADING"
)

// Alert is a single detected anomaly.
type Alert struct {
	ID             string
	Type           AnomalyType
	Symbol         string
	PrincipalID    string
	Severity       int // 0-10
	Description    string
	DetectedAt     time.Time
	Metrics        map[string]float64
	Recommendation string
}

// DetectAnomalies runs every detector over trades for one symbol and
// returns alerts sorted by severity, most severe first.
func DetectAnomalies(symbol string, trades []types.Trade, th Thresholds) []Alert {
	var alerts []Alert
	alerts = append(alerts, detectVolumeSpikes(symbol, trades, th)...)
	alerts = append(alerts, detectLargeTrades(symbol, trades, th)...)
	alerts = append(alerts, detectRapidTrading(symbol, trades, th)...)
	alerts = append(alerts, detectWashTrading(symbol, trades, th)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})
	return alerts
}

func detectVolumeSpikes(symbol string, trades []types.Trade, th Thresholds) []Alert {
	if len(trades) < 10 {
		return nil
	}

	hourly := map[int64]decimal.Decimal{}
	for _, t := range trades {
		hourKey := t.ExecutedAt.Unix() / 3600
		hourly[hourKey] = hourly[hourKey].Add(t.Quantity)
	}
	if len(hourly) < 3 {
		return nil
	}

	volumes := make(stats.Float64Data, 0, len(hourly))
	for _, v := range hourly {
		f, _ := v.Float64()
		volumes = append(volumes, f)
	}
	mean, _ := stats.Mean(volumes)
	std, _ := stats.StandardDeviationSample(volumes)
	threshold := mean + th.VolumeSpikeMultiplier*std

	var alerts []Alert
	for hourKey, vol := range hourly {
		f, _ := vol.Float64()
		if f <= threshold {
			continue
		}
		spikeRatio := 0.0
		if mean > 0 {
			spikeRatio = f / mean
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("vol_%s_%d", symbol, hourKey),
			Type:        AnomalyVolumeSpike,
			Symbol:      symbol,
			Severity:    capSeverity(int(spikeRatio * 2)),
			Description: fmt.Sprintf("volume spike detected: %.1fx average volume", spikeRatio),
			DetectedAt:  time.Unix(hourKey*3600, 0).UTC(),
			Metrics: map[string]float64{
				"volume":         f,
				"average_volume": mean,
				"spike_ratio":    spikeRatio,
			},
			Recommendation: "monitor for potential market manipulation or a significant news event",
		})
	}
	return alerts
}

func detectLargeTrades(symbol string, trades []types.Trade, th Thresholds) []Alert {
	if len(trades) < 10 {
		return nil
	}

	qtys := make(stats.Float64Data, len(trades))
	for i, t := range trades {
		qtys[i], _ = t.Quantity.Float64()
	}
	threshold, err := stats.Percentile(qtys, th.LargeTradePercentile)
	if err != nil {
		return nil
	}
	mean, _ := stats.Mean(qtys)

	var alerts []Alert
	for _, t := range trades {
		q, _ := t.Quantity.Float64()
		if q <= threshold {
			continue
		}
		sizeRatio := 0.0
		if mean > 0 {
			sizeRatio = q / mean
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("whale_%d", t.TradeID),
			Type:        AnomalyLargeTrade,
			Symbol:      symbol,
			PrincipalID: t.TakerPrincipal,
			Severity:    capSeverity(int(sizeRatio)),
			Description: fmt.Sprintf("large trade detected: %.1fx average size", sizeRatio),
			DetectedAt:  t.ExecutedAt,
			Metrics: map[string]float64{
				"trade_size":   q,
				"average_size": mean,
			},
			Recommendation: "review for market impact and potential whale activity",
		})
	}
	return alerts
}

func detectRapidTrading(symbol string, trades []types.Trade, th Thresholds) []Alert {
	type key struct {
		principal string
		minute    int64
	}
	counts := map[key]int{}
	for _, t := range trades {
		minuteKey := t.ExecutedAt.Unix() / 60
		counts[key{t.TakerPrincipal, minuteKey}]++
		counts[key{t.MakerPrincipal, minuteKey}]++
	}

	var alerts []Alert
	for k, count := range counts {
		if count <= th.RapidTradeThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("rapid_%s_%d", k.principal, k.minute),
			Type:        AnomalyRapidTrading,
			Symbol:      symbol,
			PrincipalID: k.principal,
			Severity:    capSeverity(count / th.RapidTradeThreshold),
			Description: fmt.Sprintf("rapid trading: %d trades in one minute", count),
			DetectedAt:  time.Unix(k.minute*60, 0).UTC(),
			Metrics: map[string]float64{
				"trades_per_minute": float64(count),
				"threshold":         float64(th.RapidTradeThreshold),
			},
			Recommendation: "review for automated trading or potential market manipulation",
		})
	}
	return alerts
}

// detectWashTrading flags a principal whose buy and sell volume within the
// window are suspiciously close, mirroring the original's 90% match ratio
// and minimum-volume floor.
func detectWashTrading(symbol string, trades []types.Trade, th Thresholds) []Alert {
	type sides struct{ buy, sell decimal.Decimal }
	volumes := map[string]*sides{}
	touch := func(principal string, side types.Side, qty decimal.Decimal) {
		s, ok := volumes[principal]
		if !ok {
			s = &sides{}
			volumes[principal] = s
		}
		if side == types.Buy {
			s.buy = s.buy.Add(qty)
		} else {
			s.sell = s.sell.Add(qty)
		}
	}
	for _, t := range trades {
		takerSide := t.AggressorSide
		touch(t.TakerPrincipal, takerSide, t.Quantity)
		touch(t.MakerPrincipal, takerSide.Opposite(), t.Quantity)
	}

	var alerts []Alert
	for principal, s := range volumes {
		buy, _ := s.buy.Float64()
		sell, _ := s.sell.Float64()
		if buy <= 0 || sell <= 0 {
			continue
		}
		minVol, maxVol := math.Min(buy, sell), math.Max(buy, sell)
		ratio := 0.0
		if maxVol > 0 {
			ratio = minVol / maxVol
		}
		if ratio > th.WashTradeRatio && minVol > th.WashTradeMinVolume {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("wash_%s_%s", principal, symbol),
				Type:        AnomalyWashTrading,
				Symbol:      symbol,
				PrincipalID: principal,
				Severity:    8,
				Description: fmt.Sprintf("potential wash trading: buy/sell ratio %.2f%%", ratio*100),
				DetectedAt:  time.Now(),
				Metrics: map[string]float64{
					"buy_volume":  buy,
					"sell_volume": sell,
					"match_ratio": ratio,
				},
				Recommendation: "investigate for potential wash trading or self-dealing",
			})
		}
	}
	return alerts
}

func capSeverity(v int) int {
	if v > 10 {
		return 10
	}
	if v < 0 {
		return 0
	}
	return v
}
