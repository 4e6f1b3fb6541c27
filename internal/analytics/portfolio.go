package analytics

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// Position is one symbol's net holding derived from a principal's trade
// history, valued at the latest observed trade price.
type Position struct {
	Symbol               string
	Quantity             decimal.Decimal
	AvgPrice             decimal.Decimal
	CurrentPrice         decimal.Decimal
	ValueUSD             decimal.Decimal
	UnrealizedPnL        decimal.Decimal
	UnrealizedPnLPercent decimal.Decimal
}

// TradingMetrics is the win-rate/drawdown/Sharpe summary over a principal's
// trade history.
type TradingMetrics struct {
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfit        float64
	AvgLoss          float64
	ProfitFactor     float64
	SharpeRatio      float64
	MaxDrawdownPct   float64
}

// Insight is a single generated recommendation or warning.
type Insight struct {
	Type        string // "performance", "risk", "opportunity"
	Title       string
	Description string
	Importance  string // "low", "medium", "high", "critical"
	Action      string
}

// PortfolioAnalysis is the full report produced by AnalyzePortfolio.
type PortfolioAnalysis struct {
	PrincipalID     string
	TotalValue      decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	Positions       []Position
	Metrics         TradingMetrics
	Insights        []Insight
	AnalyzedAt      time.Time
}

// perspective is a trade viewed from one principal's side, used to fold
// maker and taker legs into one uniform ledger-perspective trade list.
type perspective struct {
	symbol string
	side   types.Side
	qty    decimal.Decimal
	quote  decimal.Decimal
	price  decimal.Decimal
	at     time.Time
}

func legsFor(principalID string, trades []types.Trade) []perspective {
	var out []perspective
	for _, t := range trades {
		quote := t.Price.Mul(t.Quantity)
		if t.TakerPrincipal == principalID {
			out = append(out, perspective{t.Symbol, t.AggressorSide, t.Quantity, quote, t.Price, t.ExecutedAt})
		}
		if t.MakerPrincipal == principalID {
			out = append(out, perspective{t.Symbol, t.AggressorSide.Opposite(), t.Quantity, quote, t.Price, t.ExecutedAt})
		}
	}
	return out
}

// AnalyzePortfolio folds a principal's trades into positions, trading
// metrics, and AI-style insights, following the original fold-then-score
// pipeline.
func AnalyzePortfolio(principalID string, trades []types.Trade) PortfolioAnalysis {
	legs := legsFor(principalID, trades)
	if len(legs) == 0 {
		return PortfolioAnalysis{
			PrincipalID: principalID,
			TotalValue:  decimal.Zero,
			TotalPnL:    decimal.Zero,
			AnalyzedAt:  time.Now(),
		}
	}

	type accum struct {
		quantity  decimal.Decimal
		costBasis decimal.Decimal
		lastPrice decimal.Decimal
	}
	bySymbol := map[string]*accum{}
	for _, leg := range legs {
		a, ok := bySymbol[leg.symbol]
		if !ok {
			a = &accum{}
			bySymbol[leg.symbol] = a
		}
		if leg.side == types.Buy {
			a.quantity = a.quantity.Add(leg.qty)
			a.costBasis = a.costBasis.Add(leg.quote)
		} else {
			a.quantity = a.quantity.Sub(leg.qty)
			a.costBasis = a.costBasis.Sub(leg.quote)
		}
		a.lastPrice = leg.price
	}

	var positions []Position
	totalValue := decimal.Zero
	totalCost := decimal.Zero
	for symbol, a := range bySymbol {
		if a.quantity.Sign() <= 0 {
			continue
		}
		value := a.quantity.Mul(a.lastPrice)
		pnl := value.Sub(a.costBasis)
		pnlPct := decimal.Zero
		if a.costBasis.Sign() > 0 {
			pnlPct = pnl.Div(a.costBasis).Mul(decimal.NewFromInt(100))
		}
		avgPrice := decimal.Zero
		if a.quantity.Sign() > 0 {
			avgPrice = a.costBasis.Div(a.quantity)
		}
		positions = append(positions, Position{
			Symbol:               symbol,
			Quantity:             a.quantity,
			AvgPrice:             avgPrice,
			CurrentPrice:         a.lastPrice,
			ValueUSD:             value,
			UnrealizedPnL:        pnl,
			UnrealizedPnLPercent: pnlPct,
		})
		totalValue = totalValue.Add(value)
		totalCost = totalCost.Add(a.costBasis)
	}

	metrics := calculateTradingMetrics(legs)
	insights := generateInsights(positions, metrics)

	totalPnL := totalValue.Sub(totalCost)
	totalPnLPct := decimal.Zero
	if totalCost.Sign() > 0 {
		totalPnLPct = totalPnL.Div(totalCost).Mul(decimal.NewFromInt(100))
	}

	return PortfolioAnalysis{
		PrincipalID:     principalID,
		TotalValue:      totalValue,
		TotalPnL:        totalPnL,
		TotalPnLPercent: totalPnLPct,
		Positions:       positions,
		Metrics:         metrics,
		Insights:        insights,
		AnalyzedAt:      time.Now(),
	}
}

// calculateTradingMetrics reproduces the original's simplified
// consecutive-pair P&L walk: a profit or loss is recognized whenever two
// adjacent legs on the same symbol form a buy-then-sell or sell-then-buy
// pair.
func calculateTradingMetrics(legs []perspective) TradingMetrics {
	if len(legs) == 0 {
		return TradingMetrics{}
	}

	var profits, losses []float64
	for i := 1; i < len(legs); i++ {
		prev, curr := legs[i-1], legs[i]
		if prev.symbol != curr.symbol {
			continue
		}
		var pnl float64
		switch {
		case prev.side == types.Buy && curr.side == types.Sell:
			pnl = diffFloat(curr.price, prev.price) * minFloat(prev.qty, curr.qty)
		case prev.side == types.Sell && curr.side == types.Buy:
			pnl = diffFloat(prev.price, curr.price) * minFloat(prev.qty, curr.qty)
		default:
			continue
		}
		if pnl > 0 {
			profits = append(profits, pnl)
		} else {
			losses = append(losses, -pnl)
		}
	}

	winning, losing := len(profits), len(losses)
	winRate := 0.0
	if winning+losing > 0 {
		winRate = float64(winning) / float64(winning+losing) * 100
	}

	avgProfit, avgLoss := mean(profits), mean(losses)
	totalLoss := sum(losses)
	profitFactor := 0.0
	if totalLoss > 0 {
		profitFactor = sum(profits) / totalLoss
	}

	allReturns := append(append([]float64{}, profits...), negateAll(losses)...)
	sharpe := 0.0
	if len(allReturns) > 1 {
		avgReturn, _ := stats.Mean(stats.Float64Data(allReturns))
		stdReturn, _ := stats.StandardDeviationSample(stats.Float64Data(allReturns))
		if stdReturn > 0 {
			sharpe = avgReturn / stdReturn
		}
	}

	equity := []float64{0}
	for _, r := range allReturns {
		equity = append(equity, equity[len(equity)-1]+r)
	}
	peak, maxDD := equity[0], 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
	}

	return TradingMetrics{
		TotalTrades:    len(legs),
		WinningTrades:  winning,
		LosingTrades:   losing,
		WinRate:        round2(winRate),
		AvgProfit:      round2(avgProfit),
		AvgLoss:        round2(avgLoss),
		ProfitFactor:   round2(profitFactor),
		SharpeRatio:    round2(sharpe),
		MaxDrawdownPct: round2(maxDD * 100),
	}
}

func generateInsights(positions []Position, metrics TradingMetrics) []Insight {
	var insights []Insight

	switch {
	case metrics.WinRate < 40 && metrics.TotalTrades > 0:
		insights = append(insights, Insight{
			Type:        "performance",
			Title:       "low win rate detected",
			Description: fmt.Sprintf("win rate of %.1f%% is below optimal", metrics.WinRate),
			Importance:  "high",
			Action:      "review losing trades to identify patterns and improve entry timing",
		})
	case metrics.WinRate > 60:
		insights = append(insights, Insight{
			Type:        "performance",
			Title:       "strong win rate",
			Description: fmt.Sprintf("win rate of %.1f%% indicates good trade selection", metrics.WinRate),
			Importance:  "low",
			Action:      "maintain current strategy while monitoring for market changes",
		})
	}

	if metrics.ProfitFactor > 0 && metrics.ProfitFactor < 1 {
		insights = append(insights, Insight{
			Type:        "risk",
			Title:       "negative expectancy",
			Description: "profit factor is below 1, losses outweigh gains on average",
			Importance:  "critical",
			Action:      "review position sizing and stop-loss placement immediately",
		})
	}

	if len(positions) > 0 {
		totalValue := decimal.Zero
		var largest Position
		for _, p := range positions {
			totalValue = totalValue.Add(p.ValueUSD)
			if p.ValueUSD.GreaterThan(largest.ValueUSD) {
				largest = p
			}
		}
		if totalValue.Sign() > 0 {
			concentration, _ := largest.ValueUSD.Div(totalValue).Float64()
			if concentration > 0.5 {
				insights = append(insights, Insight{
					Type:        "risk",
					Title:       "high concentration risk",
					Description: fmt.Sprintf("%s represents %.0f%% of the portfolio", largest.Symbol, concentration*100),
					Importance:  "high",
					Action:      fmt.Sprintf("consider reducing the %s position to improve diversification", largest.Symbol),
				})
			}
		}
	}

	for _, p := range positions {
		pct, _ := p.UnrealizedPnLPercent.Float64()
		switch {
		case pct > 50:
			insights = append(insights, Insight{
				Type:        "opportunity",
				Title:       "large unrealized gain",
				Description: fmt.Sprintf("%s has %.1f%% unrealized gain", p.Symbol, pct),
				Importance:  "medium",
				Action:      "consider taking partial profits to lock in gains",
			})
		case pct < -30:
			insights = append(insights, Insight{
				Type:        "risk",
				Title:       "large unrealized loss",
				Description: fmt.Sprintf("%s has %.1f%% unrealized loss", p.Symbol, pct),
				Importance:  "high",
				Action:      "review position thesis and consider stop-loss placement",
			})
		}
	}

	if metrics.MaxDrawdownPct > 20 {
		insights = append(insights, Insight{
			Type:        "risk",
			Title:       "high maximum drawdown",
			Description: fmt.Sprintf("maximum drawdown of %.1f%% indicates significant risk exposure", metrics.MaxDrawdownPct),
			Importance:  "high",
			Action:      "implement stricter risk management rules to limit drawdowns",
		})
	}

	return insights
}

func diffFloat(a, b decimal.Decimal) float64 {
	f, _ := a.Sub(b).Float64()
	return f
}

func minFloat(a, b decimal.Decimal) float64 {
	if a.LessThan(b) {
		f, _ := a.Float64()
		return f
	}
	f, _ := b.Float64()
	return f
}

func negateAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = -x
	}
	return out
}
