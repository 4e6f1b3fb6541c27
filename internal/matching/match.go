package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// match runs the price-time priority matching loop for a newly admitted
// order against se's book, and recursively drains any stop orders the
// resulting trades trigger. refPrice is the per-unit price the caller
// reserved balance against (limit price, or the slippage bound for market
// orders); it is used to release price improvement on every fill.
func (e *Engine) match(ctx context.Context, se *symbolEngine, o *types.Order, refPrice decimal.Decimal, now time.Time) ([]types.Trade, error) {
	if o.TimeInForce == types.TIFFOK && !e.canFullyFill(se, o) {
		o.Status = types.StatusRejected
		o.RejectReason = "fok_unfilled"
		return nil, nil
	}

	var trades []types.Trade
	var slippageBound decimal.Decimal
	marketOrder := o.Type == types.OrderTypeMarket || o.Type == types.OrderTypeStopMarket
	if marketOrder {
		slippageBound = refPrice
	}

	for o.RemainingQty.Sign() > 0 {
		top, ok := se.book.Top(o.Side.Opposite())
		if !ok {
			break
		}
		if !crosses(o, top.Price) {
			break
		}
		if marketOrder && slippageExceeded(o.Side, top.Price, slippageBound) {
			break
		}

		if top.PrincipalID == o.PrincipalID {
			if e.cfg.SelfMatchPolicy == "reject" {
				return trades, fmt.Errorf("order %s would self-match: %w", o.ID, ErrValidation)
			}
			e.decrementTakeMaker(se, top, now)
			e.publishBook(ctx, se)
			continue
		}

		qty := decimal.Min(o.RemainingQty, top.RemainingQty)
		price := top.Price

		maker := se.orders[top.OrderID]
		trade, err := e.commitTrade(se, o, maker, top.OrderID, top.PrincipalID, price, qty, refPrice, now)
		if err != nil {
			return trades, err
		}
		trades = append(trades, trade)

		se.book.DecrementTop(o.Side.Opposite(), qty)
		applyFill(o, price, qty, now)
		if maker != nil {
			applyFill(maker, price, qty, now)
		}

		e.publishTrade(ctx, trade)
		e.publishBook(ctx, se)
		e.publishPrice(ctx, se, price, now)

		for _, stopOrder := range se.stops.triggered(price) {
			stopOrder.Type = convertStopType(stopOrder.Type)
			stopOrder.Status = types.StatusOpen
			stopRef := stopOrder.Price
			if stopOrder.Type == types.OrderTypeMarket {
				if best, ok := se.book.BestPrice(stopOrder.Side.Opposite()); ok {
					stopRef = slippageLimit(stopOrder.Side, best, e.cfg.MaxSlippagePct)
				}
			}
			more, err := e.match(ctx, se, stopOrder, stopRef, now)
			if err != nil {
				e.logger.Warn("triggered stop order failed to match", "order", stopOrder.ID, "error", err)
				continue
			}
			trades = append(trades, more...)
			if !stopOrder.IsTerminal() && stopOrder.RemainingQty.Sign() > 0 {
				se.book.Insert(&types.BookEntry{
					OrderID:      stopOrder.ID,
					PrincipalID:  stopOrder.PrincipalID,
					Side:         stopOrder.Side,
					Price:        stopOrder.Price,
					RemainingQty: stopOrder.RemainingQty,
					Sequence:     se.book.NextSequence(),
				})
			}
		}
	}

	finalizeStatus(o)
	return trades, nil
}

// canFullyFill reports whether the book currently has enough crossing
// liquidity to fill o entirely, without mutating the book. Used for the
// FOK pre-flight check.
func (e *Engine) canFullyFill(se *symbolEngine, o *types.Order) bool {
	remaining := o.RemainingQty
	if remaining.IsZero() {
		remaining = o.Quantity
	}
	levels := se.book.Depth(o.Side.Opposite(), 1<<20)
	for _, lv := range levels {
		if !crosses(o, lv.Price) {
			break
		}
		remaining = remaining.Sub(lv.Quantity)
		if remaining.Sign() <= 0 {
			return true
		}
	}
	return false
}

// decrementTakeMaker implements the decrement_take self-match policy: the
// resting maker order is pulled from the book without a trade, and its
// reservation released, so the taker can continue matching deeper levels.
func (e *Engine) decrementTakeMaker(se *symbolEngine, entry *types.BookEntry, now time.Time) {
	se.book.Cancel(entry.OrderID)
	maker, ok := se.orders[entry.OrderID]
	if !ok {
		return
	}
	qty := maker.RemainingQty
	maker.RemainingQty = decimal.Zero
	maker.Status = types.StatusCanceled
	maker.UpdatedAt = now

	base, quote := splitSymbol(maker.Symbol)
	if maker.Side == types.Sell {
		_ = e.balances.Release(maker.PrincipalID, base, qty)
	} else {
		_ = e.balances.Release(maker.PrincipalID, quote, qty.Mul(maker.Price))
	}
}

// commitTrade persists a trade and its order-status side effects in one
// store transaction (spec.md §4.C), then applies balance settlement.
func (e *Engine) commitTrade(se *symbolEngine, taker, maker *types.Order, makerOrderID, makerPrincipal string, price, qty, takerRefPrice decimal.Decimal, now time.Time) (types.Trade, error) {
	comm, commAsset := commission(se.symbol, qty, e.cfg.CommissionRate)

	trade := types.Trade{
		Symbol:          se.symbol,
		Price:           price,
		Quantity:        qty,
		MakerOrderID:    makerOrderID,
		TakerOrderID:    taker.ID,
		MakerPrincipal:  makerPrincipal,
		TakerPrincipal:  taker.PrincipalID,
		AggressorSide:   taker.Side,
		Commission:      comm,
		CommissionAsset: commAsset,
		ExecutedAt:      now,
	}

	tx := e.store.Begin()
	staged, err := e.log.Stage(tx, trade)
	if err != nil {
		return types.Trade{}, fmt.Errorf("commit trade: %w", err)
	}
	takerRow := *taker
	applyFill(&takerRow, price, qty, now)
	if err := tx.Put("orders", taker.ID, &takerRow); err != nil {
		return types.Trade{}, fmt.Errorf("commit trade: %w", err)
	}
	if maker != nil {
		makerRow := *maker
		applyFill(&makerRow, price, qty, now)
		if err := tx.Put("orders", makerOrderID, &makerRow); err != nil {
			return types.Trade{}, fmt.Errorf("commit trade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Trade{}, fmt.Errorf("commit trade: %w", err)
	}
	e.log.Commit(staged)

	e.settleFill(se.symbol, taker, takerRefPrice, price, qty, comm, commAsset)
	if maker != nil {
		e.settleFill(se.symbol, maker, maker.Price, price, qty, comm, commAsset)
	}

	return staged, nil
}

// settleFill applies one side's balance movement for a single fill: release
// any price improvement between the order's reserved reference price and
// the actual trade price, debit the asset given up, credit the asset
// received, and debit the base-asset commission.
func (e *Engine) settleFill(symbol string, o *types.Order, refPrice, tradePrice, qty, comm decimal.Decimal, commAsset string) {
	if o == nil {
		return
	}
	base, quote := splitSymbol(symbol)

	if o.Side == types.Buy {
		if refPrice.GreaterThan(tradePrice) {
			improvement := qty.Mul(refPrice.Sub(tradePrice))
			_ = e.balances.Release(o.PrincipalID, quote, improvement)
		}
		_ = e.balances.Settle(o.PrincipalID, quote, qty.Mul(tradePrice), true)
		_ = e.balances.Settle(o.PrincipalID, base, qty, false)
	} else {
		_ = e.balances.Settle(o.PrincipalID, base, qty, true)
		_ = e.balances.Settle(o.PrincipalID, quote, qty.Mul(tradePrice), false)
	}
	_ = e.balances.Settle(o.PrincipalID, commAsset, comm, true)
}

func applyFill(o *types.Order, price, qty decimal.Decimal, now time.Time) {
	priorNotional := o.AvgFillPrice.Mul(o.FilledQty)
	o.FilledQty = o.FilledQty.Add(qty)
	o.AvgFillPrice = priorNotional.Add(price.Mul(qty)).Div(o.FilledQty)
	o.RemainingQty = o.RemainingQty.Sub(qty)
	o.UpdatedAt = now
	if o.RemainingQty.Sign() <= 0 {
		o.Status = types.StatusFilled
	} else {
		o.Status = types.StatusPartial
	}
}

// finalizeStatus resolves the terminal status for non-resting TIFs once the
// match loop has exhausted crossing liquidity.
func finalizeStatus(o *types.Order) {
	if o.Status == types.StatusFilled || o.IsTerminal() {
		return
	}
	if o.RemainingQty.Sign() <= 0 {
		o.Status = types.StatusFilled
		return
	}
	switch o.TimeInForce {
	case types.TIFIOC, types.TIFFOK:
		o.Status = types.StatusCanceled
		if o.FilledQty.Sign() > 0 {
			o.RejectReason = "ioc_partial_remainder_cancelled"
		}
	default:
		if o.FilledQty.Sign() > 0 {
			o.Status = types.StatusPartial
		} else {
			o.Status = types.StatusOpen
		}
	}
}

func convertStopType(t types.OrderType) types.OrderType {
	switch t {
	case types.OrderTypeStopLimit:
		return types.OrderTypeLimit
	case types.OrderTypeStopMarket:
		return types.OrderTypeMarket
	default:
		return t
	}
}
