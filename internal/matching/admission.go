package matching

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// validate runs the admission checks spec.md §4.B requires before an order
// ever touches a book: known symbol, positive quantity within the
// configured size bounds, a price for order types that need one, a coherent
// time-in-force/type combination, and the principal's daily trade cap.
// Reject is terminal; nothing here mutates a book.
func (e *Engine) validate(o *types.Order, now time.Time) error {
	if _, err := e.symbolFor(o.Symbol); err != nil {
		return err
	}
	if o.Quantity.Sign() <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	if o.Quantity.LessThan(e.cfg.MinOrderSize) {
		return fmt.Errorf("quantity %s below minimum %s: %w", o.Quantity, e.cfg.MinOrderSize, ErrValidation)
	}
	if o.Quantity.GreaterThan(e.cfg.MaxOrderSize) {
		return fmt.Errorf("quantity %s exceeds maximum %s: %w", o.Quantity, e.cfg.MaxOrderSize, ErrValidation)
	}
	switch o.Type {
	case types.OrderTypeLimit, types.OrderTypeStopLimit:
		if o.Price.Sign() <= 0 {
			return fmt.Errorf("%s order requires a positive price: %w", o.Type, ErrValidation)
		}
	case types.OrderTypeMarket:
		if o.TimeInForce == types.TIFGTC || o.TimeInForce == types.TIFGTD {
			return fmt.Errorf("market orders cannot use %s: %w", o.TimeInForce, ErrValidation)
		}
	case types.OrderTypeStopMarket:
	default:
		return fmt.Errorf("unknown order type %q: %w", o.Type, ErrValidation)
	}
	if o.Type == types.OrderTypeStopLimit || o.Type == types.OrderTypeStopMarket {
		if o.StopPrice.Sign() <= 0 {
			return fmt.Errorf("%s order requires a positive stop price: %w", o.Type, ErrValidation)
		}
	}
	if o.TimeInForce == types.TIFGTD && !o.ExpiresAt.After(now) {
		return fmt.Errorf("gtd order requires expires_at in the future: %w", ErrValidation)
	}
	return e.checkDailyTradeCap(o.PrincipalID)
}

// checkDailyTradeCap rejects admission if the principal has a registered
// cap and has already reached it, and otherwise records this order against
// today's count. Principals with no registered record are uncapped.
func (e *Engine) checkDailyTradeCap(principalID string) error {
	e.principalsMu.Lock()
	defer e.principalsMu.Unlock()

	p, ok := e.principals[principalID]
	if !ok || p.DailyTradeCap <= 0 {
		return nil
	}
	if p.TradesToday >= p.DailyTradeCap {
		return fmt.Errorf("principal %s exceeds daily trade cap of %d: %w", principalID, p.DailyTradeCap, ErrValidation)
	}
	p.TradesToday++
	return nil
}

// reservationFor computes the asset, amount, and reference price to lock
// against the principal's balance before admitting the order. Buys reserve
// quote asset at the limit price (or, for market buys, the book's best ask
// walked out to the slippage bound); sells reserve base asset quantity
// directly. refPrice is the per-unit price the reservation was sized at; it
// is used later both to release price-improvement on each fill and to
// release the untouched remainder once the order stops resting.
func (e *Engine) reservationFor(se *symbolEngine, o *types.Order) (asset string, amount, refPrice decimal.Decimal, err error) {
	base, quote := splitSymbol(o.Symbol)

	if o.Side == types.Sell {
		return base, o.Quantity, decimal.Zero, nil
	}

	if o.Type == types.OrderTypeLimit || o.Type == types.OrderTypeStopLimit {
		return quote, o.Quantity.Mul(o.Price), o.Price, nil
	}

	// Market buy: reserve using the worst price we're willing to walk to.
	bestAsk, ok := se.book.BestPrice(types.Sell)
	if !ok {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("no liquidity to price market buy: %w", ErrValidation)
	}
	bound := slippageLimit(types.Buy, bestAsk, e.cfg.MaxSlippagePct)
	return quote, o.Quantity.Mul(bound), bound, nil
}

// releaseUnusedReservation releases the portion of a buy's quote reservation
// (or a sell's base reservation) that is no longer backing a live order,
// because the order is terminal or, being IOC/FOK, never rests. Per-fill
// price improvement is released separately inside commitTrade.
func (e *Engine) releaseUnusedReservation(o *types.Order, refPrice decimal.Decimal) {
	if o.RemainingQty.Sign() <= 0 {
		return
	}
	resting := !o.IsTerminal() && o.TimeInForce != types.TIFIOC && o.TimeInForce != types.TIFFOK
	if resting {
		return
	}
	base, quote := splitSymbol(o.Symbol)
	if o.Side == types.Sell {
		_ = e.balances.Release(o.PrincipalID, base, o.RemainingQty)
		return
	}
	_ = e.balances.Release(o.PrincipalID, quote, o.RemainingQty.Mul(refPrice))
}

func slippageLimit(side types.Side, refPrice decimal.Decimal, pct float64) decimal.Decimal {
	factor := decimal.NewFromFloat(pct)
	if side == types.Buy {
		return refPrice.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return refPrice.Mul(decimal.NewFromInt(1).Sub(factor))
}

func slippageExceeded(side types.Side, price, bound decimal.Decimal) bool {
	if side == types.Buy {
		return price.GreaterThan(bound)
	}
	return price.LessThan(bound)
}

func crosses(o *types.Order, oppositePrice decimal.Decimal) bool {
	if o.Type == types.OrderTypeMarket {
		return true
	}
	if o.Side == types.Buy {
		return o.Price.GreaterThanOrEqual(oppositePrice)
	}
	return o.Price.LessThanOrEqual(oppositePrice)
}
