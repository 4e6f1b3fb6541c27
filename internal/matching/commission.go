package matching

import (
	"strings"

	"github.com/shopspring/decimal"
)

// baseAsset returns the base asset of a "BASE-QUOTE" symbol, e.g. "BTC" for
// "BTC-USD". Mirrors the original trading engine's order.symbol.split("-")[0].
func baseAsset(symbol string) string {
	parts := strings.SplitN(symbol, "-", 2)
	return parts[0]
}

// commission computes the trade commission, charged in the base asset on
// every trade regardless of side. See DESIGN.md, Open Question (b): this
// mirrors the original source's fixed 0.1% of traded quantity.
func commission(symbol string, qty decimal.Decimal, rate float64) (amount decimal.Decimal, asset string) {
	return qty.Mul(decimal.NewFromFloat(rate)), baseAsset(symbol)
}
