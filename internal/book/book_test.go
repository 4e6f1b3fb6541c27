package book

import (
	"testing"

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

func entry(id string, side types.Side, price, qty string, seq uint64) *types.BookEntry {
	return &types.BookEntry{
		OrderID:      id,
		Side:         side,
		Price:        dec(price),
		RemainingQty: dec(qty),
		Sequence:     seq,
	}
}

func TestBestPriceBidsDescendingAsksAscending(t *testing.T) {
	t.Parallel()
	b := New("BTC-USD", 8)

	b.Insert(entry("b1", types.Buy, "100.00", "1", b.NextSequence()))
	b.Insert(entry("b2", types.Buy, "101.00", "1", b.NextSequence()))
	b.Insert(entry("a1", types.Sell, "105.00", "1", b.NextSequence()))
	b.Insert(entry("a2", types.Sell, "104.00", "1", b.NextSequence()))

	bid, ok := b.BestPrice(types.Buy)
	require.True(t, ok)
	require.True(t, bid.Equal(dec("101.00")))

	ask, ok := b.BestPrice(types.Sell)
	require.True(t, ok)
	require.True(t, ask.Equal(dec("104.00")))
}

func TestTimePriorityWithinPriceLevel(t *testing.T) {
	t.Parallel()
	b := New("BTC-USD", 8)

	b.Insert(entry("first", types.Buy, "100.00", "1", b.NextSequence()))
	b.Insert(entry("second", types.Buy, "100.00", "1", b.NextSequence()))

	top, ok := b.Top(types.Buy)
	require.True(t, ok)
	require.Equal(t, "first", top.OrderID)
}

func TestCancelRemovesEmptyLevel(t *testing.T) {
	t.Parallel()
	b := New("BTC-USD", 8)

	b.Insert(entry("only", types.Buy, "100.00", "1", b.NextSequence()))
	require.True(t, b.Cancel("only"))

	_, ok := b.BestPrice(types.Buy)
	require.False(t, ok)

	require.False(t, b.Cancel("only"), "cancelling twice must be idempotent-false")
}

func TestDecrementTopPartialThenFull(t *testing.T) {
	t.Parallel()
	b := New("BTC-USD", 8)

	b.Insert(entry("maker", types.Sell, "100.00", "10", b.NextSequence()))

	b.DecrementTop(types.Sell, dec("4"))
	top, ok := b.Top(types.Sell)
	require.True(t, ok)
	require.True(t, top.RemainingQty.Equal(dec("6")))

	b.DecrementTop(types.Sell, dec("6"))
	_, ok = b.Top(types.Sell)
	require.False(t, ok)
}

func TestDepthAggregatesOrdersAtSamePrice(t *testing.T) {
	t.Parallel()
	b := New("BTC-USD", 8)

	b.Insert(entry("a", types.Buy, "100.00", "1", b.NextSequence()))
	b.Insert(entry("b", types.Buy, "100.00", "2", b.NextSequence()))
	b.Insert(entry("c", types.Buy, "99.00", "5", b.NextSequence()))

	depth := b.Depth(types.Buy, 10)
	require.Len(t, depth, 2)
	require.True(t, depth[0].Price.Equal(dec("100.00")))
	require.True(t, depth[0].Quantity.Equal(dec("3")))
	require.Equal(t, 2, depth[0].Orders)
	require.True(t, depth[1].Price.Equal(dec("99.00")))
}
