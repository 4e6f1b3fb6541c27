package matching

import (
	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// stopTable is the secondary trigger table keyed by (symbol, stop_price,
// direction), implemented as a scanned slice per side. At demo scale this
// is cheap; a second red-black tree keyed by stop price is the natural
// upgrade if stop-order volume grows enough to matter.
type stopTable struct {
	buys  []*types.Order // triggers when last trade price >= StopPrice
	sells []*types.Order // triggers when last trade price <= StopPrice
}

func newStopTable() *stopTable {
	return &stopTable{}
}

func (t *stopTable) add(o *types.Order) {
	if o.Side == types.Buy {
		t.buys = append(t.buys, o)
	} else {
		t.sells = append(t.sells, o)
	}
}

func (t *stopTable) remove(orderID string) bool {
	for i, o := range t.buys {
		if o.ID == orderID {
			t.buys = append(t.buys[:i], t.buys[i+1:]...)
			return true
		}
	}
	for i, o := range t.sells {
		if o.ID == orderID {
			t.sells = append(t.sells[:i], t.sells[i+1:]...)
			return true
		}
	}
	return false
}

// triggered returns stop orders whose condition is met by the latest trade
// price and removes them from the table. Buy stops trigger on price rising
// through StopPrice; sell stops trigger on price falling through it.
func (t *stopTable) triggered(lastPrice decimal.Decimal) []*types.Order {
	var out []*types.Order

	remainingBuys := t.buys[:0]
	for _, o := range t.buys {
		if lastPrice.GreaterThanOrEqual(o.StopPrice) {
			out = append(out, o)
		} else {
			remainingBuys = append(remainingBuys, o)
		}
	}
	t.buys = remainingBuys

	remainingSells := t.sells[:0]
	for _, o := range t.sells {
		if lastPrice.LessThanOrEqual(o.StopPrice) {
			out = append(out, o)
		} else {
			remainingSells = append(remainingSells, o)
		}
	}
	t.sells = remainingSells

	return out
}
