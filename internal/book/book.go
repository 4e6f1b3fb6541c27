// Package book implements the per-symbol price-time priority order book.
//
// Each side of the book is a red-black tree keyed by price (best price at
// the tree's leftmost node under that side's ordering), with a FIFO list of resting
// entries at each price level for time priority. This generalizes the
// HashMap+doubly-linked-list price ladder pattern into a real ordered map
// so new price levels are O(log P) instead of O(P), while keeping O(1)
// cancel via a stored list element per order.
package book

import (
	"container/list"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// priceKey is a fixed-point integer representation of price, scaled so the
// red-black tree comparator is cheap plain-integer comparison instead of
// repeated decimal.Cmp calls on tree rebalancing. Scale is set by the book
// at construction (quote-asset scale).
type priceKey int64

type level struct {
	price   decimal.Decimal
	orders  *list.List // of *types.BookEntry
	totalQty decimal.Decimal
}

// Book is a single symbol's order book.
type Book struct {
	Symbol string
	scale  int32

	bids *rbt.Tree[priceKey, *level] // descending: best bid = highest price
	asks *rbt.Tree[priceKey, *level] // ascending: best ask = lowest price

	// index allows O(1) lookup + removal of a resting order by id.
	index map[string]*list.Element
	elemLevel map[*list.Element]*level

	seq uint64 // monotonic mutation sequence: advanced on insert stamping, removal and decrement
}

// New creates an empty book for symbol, scaling prices to `scale` decimal
// places for the tree comparator.
func New(symbol string, scale int32) *Book {
	ascending := func(a, b priceKey) int {
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	}
	descending := func(a, b priceKey) int {
		return ascending(b, a)
	}
	return &Book{
		Symbol:    symbol,
		scale:     scale,
		bids:      rbt.NewWith[priceKey, *level](descending),
		asks:      rbt.NewWith[priceKey, *level](ascending),
		index:     make(map[string]*list.Element),
		elemLevel: make(map[*list.Element]*level),
	}
}

func (b *Book) toKey(p decimal.Decimal) priceKey {
	return priceKey(p.Shift(b.scale).IntPart())
}

func (b *Book) treeFor(side types.Side) *rbt.Tree[priceKey, *level] {
	if side == types.Buy {
		return b.bids
	}
	return b.asks
}

// NextSequence returns the next insertion sequence number, used by the
// matching engine to stamp BookEntry.Sequence before calling Insert.
func (b *Book) NextSequence() uint64 {
	b.seq++
	return b.seq
}

// Sequence returns the book's current mutation sequence number, without
// advancing it. Depth snapshots are tagged with this value so subscribers
// can detect gaps (spec.md §4.A).
func (b *Book) Sequence() uint64 {
	return b.seq
}

// Insert adds a resting entry to the book.
func (b *Book) Insert(entry *types.BookEntry) {
	tree := b.treeFor(entry.Side)
	key := b.toKey(entry.Price)

	lv, ok := tree.Get(key)
	if !ok {
		lv = &level{price: entry.Price, orders: list.New(), totalQty: decimal.Zero}
		tree.Put(key, lv)
	}
	elem := lv.orders.PushBack(entry)
	lv.totalQty = lv.totalQty.Add(entry.RemainingQty)

	b.index[entry.OrderID] = elem
	b.elemLevel[elem] = lv
}

// Cancel removes a resting order by id. Returns false if the order is not
// resting on this book (already filled, already cancelled, or unknown).
func (b *Book) Cancel(orderID string) bool {
	elem, ok := b.index[orderID]
	if !ok {
		return false
	}
	b.removeElement(elem)
	return true
}

func (b *Book) removeElement(elem *list.Element) {
	lv := b.elemLevel[elem]
	entry := elem.Value.(*types.BookEntry)
	lv.totalQty = lv.totalQty.Sub(entry.RemainingQty)
	lv.orders.Remove(elem)
	delete(b.index, entry.OrderID)
	delete(b.elemLevel, elem)
	b.seq++

	if lv.orders.Len() == 0 {
		tree := b.treeFor(entry.Side)
		tree.Remove(b.toKey(lv.price))
	}
}

// BestPrice returns the best resting price for side, and whether one exists.
func (b *Book) BestPrice(side types.Side) (decimal.Decimal, bool) {
	tree := b.treeFor(side)
	node := tree.Left()
	if node == nil {
		return decimal.Zero, false
	}
	return node.Value.price, true
}

// Top returns the oldest resting entry at the best price level for side,
// without removing it.
func (b *Book) Top(side types.Side) (*types.BookEntry, bool) {
	tree := b.treeFor(side)
	node := tree.Left()
	if node == nil {
		return nil, false
	}
	front := node.Value.orders.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*types.BookEntry), true
}

// DecrementTop reduces the remaining quantity of the top resting entry at
// side's best price by qty. If the entry is fully consumed it is removed
// from the book.
func (b *Book) DecrementTop(side types.Side, qty decimal.Decimal) {
	tree := b.treeFor(side)
	node := tree.Left()
	if node == nil {
		return
	}
	front := node.Value.orders.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*types.BookEntry)
	entry.RemainingQty = entry.RemainingQty.Sub(qty)
	node.Value.totalQty = node.Value.totalQty.Sub(qty)

	if entry.RemainingQty.Sign() <= 0 {
		b.removeElement(front)
	} else {
		b.seq++
	}
}

// RemoveTop removes (without decrementing) the top resting entry for side
// and returns it.
func (b *Book) RemoveTop(side types.Side) (*types.BookEntry, bool) {
	entry, ok := b.Top(side)
	if !ok {
		return nil, false
	}
	b.Cancel(entry.OrderID)
	return entry, true
}

// Depth returns up to `levels` aggregated price levels for side, best first.
func (b *Book) Depth(side types.Side, levels int) []types.DepthLevel {
	tree := b.treeFor(side)
	out := make([]types.DepthLevel, 0, levels)
	it := tree.Iterator()
	for it.Next() && len(out) < levels {
		lv := it.Value()
		out = append(out, types.DepthLevel{
			Price:    lv.price,
			Quantity: lv.totalQty,
			Orders:   lv.orders.Len(),
		})
	}
	return out
}

// Get returns the resting entry for orderID, if any.
func (b *Book) Get(orderID string) (*types.BookEntry, bool) {
	elem, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	return elem.Value.(*types.BookEntry), true
}
