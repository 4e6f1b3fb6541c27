// Package matching implements the price-time priority matching engine:
// admission validation, the match loop for market/limit/stop orders, time
// in force semantics, self-match avoidance, cancellation, and the GTD
// expiry sweep. One mutex per symbol fences that symbol's book, trade
// sequence, and stop table, following the teacher's per-market slot
// pattern generalized from a quoting bot's market map to a matching core's
// symbol map.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spotmatch/internal/book"
	"spotmatch/internal/pubsub"
	"spotmatch/internal/store"
	"spotmatch/internal/tradelog"
	"spotmatch/internal/types"
)

// BalanceGate is the balance reservation capability the engine depends on.
// Implemented by wallet.Ledger; defined here so matching does not import
// wallet, keeping the dependency direction consumer-owned.
type BalanceGate interface {
	Reserve(principalID, asset string, amount decimal.Decimal) error
	Release(principalID, asset string, amount decimal.Decimal) error
	Settle(principalID, asset string, amount decimal.Decimal, debit bool) error
}

// Config controls admission and matching behavior.
type Config struct {
	MaxSlippagePct  float64 // market-order walk bound, see DESIGN.md Open Question (c)
	SelfMatchPolicy string  // "decrement_take" or "reject"
	CommissionRate  float64
	QuoteScale      int32
	BaseScale       int32
	MinOrderSize    decimal.Decimal // admission floor on qty, spec.md §4.B step 1
	MaxOrderSize    decimal.Decimal // admission ceiling on qty, spec.md §4.B step 1
}

type symbolEngine struct {
	symbol string
	mu     sync.Mutex
	book   *book.Book
	stops  *stopTable

	orders           map[string]*types.Order // all tracked orders by id, including terminal (bounded by caller's retention policy)
	clientOrderIndex map[string]string        // principalID+"|"+clientOrderID -> orderID
}

// Engine is the top-level matching core: one symbolEngine per tradeable
// symbol, plus the shared collaborators every symbol's match loop uses.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	balances BalanceGate
	log      *tradelog.Log
	store    *store.Store
	bus      pubsub.Bus

	mu      sync.RWMutex
	symbols map[string]*symbolEngine

	principalsMu sync.Mutex
	principals   map[string]*types.Principal // registered caps; unregistered principals are uncapped
}

// New creates a matching engine for the given symbols.
func New(cfg Config, symbols []string, balances BalanceGate, log *tradelog.Log, st *store.Store, bus pubsub.Bus, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "matching"),
		balances:   balances,
		log:        log,
		store:      st,
		bus:        bus,
		symbols:    make(map[string]*symbolEngine),
		principals: make(map[string]*types.Principal),
	}
	for _, sym := range symbols {
		e.symbols[sym] = &symbolEngine{
			symbol:           sym,
			book:             book.New(sym, cfg.QuoteScale),
			stops:            newStopTable(),
			orders:           make(map[string]*types.Order),
			clientOrderIndex: make(map[string]string),
		}
	}
	return e
}

// RegisterPrincipal upserts a principal's trading caps. Principals with no
// registered record are treated as uncapped by admission.
func (e *Engine) RegisterPrincipal(p types.Principal) {
	e.principalsMu.Lock()
	defer e.principalsMu.Unlock()
	cp := p
	e.principals[p.ID] = &cp
}

func (e *Engine) symbolFor(symbol string) (*symbolEngine, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	se, ok := e.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return se, nil
}

// Result is returned by PlaceOrder: the admitted (and possibly partially or
// fully filled) order plus any trades it produced.
type Result struct {
	Order  types.Order
	Trades []types.Trade
}

// PlaceOrder admits and matches a new order. now is injected so tests can
// control GTD expiry and timestamps deterministically.
func (e *Engine) PlaceOrder(ctx context.Context, o *types.Order, now time.Time) (Result, error) {
	if err := e.validate(o, now); err != nil {
		return Result{}, err
	}

	se, err := e.symbolFor(o.Symbol)
	if err != nil {
		return Result{}, err
	}

	se.mu.Lock()
	defer se.mu.Unlock()

	if key := clientOrderKey(o.PrincipalID, o.ClientOrderID); o.ClientOrderID != "" {
		if _, exists := se.clientOrderIndex[key]; exists {
			return Result{}, fmt.Errorf("%s: %w", o.ClientOrderID, ErrConflictingClientOrder)
		}
	}

	reserveAsset, reserveAmount, refPrice, err := e.reservationFor(se, o)
	if err != nil {
		return Result{}, err
	}
	if err := e.balances.Reserve(o.PrincipalID, reserveAsset, reserveAmount); err != nil {
		return Result{}, fmt.Errorf("place order: %w", err)
	}

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	o.RemainingQty = o.Quantity
	o.Status = StatusPending(o)

	se.orders[o.ID] = o
	if o.ClientOrderID != "" {
		se.clientOrderIndex[clientOrderKey(o.PrincipalID, o.ClientOrderID)] = o.ID
	}

	// stop orders never touch the match loop until their trigger condition
	// fires; they sit in the stop table, untouched by the book or by match.
	if o.Type == types.OrderTypeStopLimit || o.Type == types.OrderTypeStopMarket {
		se.stops.add(o)
		e.publishOrder(ctx, o)
		return Result{Order: *o}, nil
	}

	trades, err := e.match(ctx, se, o, refPrice, now)
	if err != nil {
		// admission succeeded but matching failed fatally: release the
		// reservation and surface the error.
		e.balances.Release(o.PrincipalID, reserveAsset, reserveAmount)
		delete(se.orders, o.ID)
		if o.ClientOrderID != "" {
			delete(se.clientOrderIndex, clientOrderKey(o.PrincipalID, o.ClientOrderID))
		}
		return Result{}, err
	}

	e.releaseUnusedReservation(o, refPrice)

	if !o.IsTerminal() && o.TimeInForce != types.TIFIOC && o.TimeInForce != types.TIFFOK {
		se.book.Insert(&types.BookEntry{
			OrderID:      o.ID,
			PrincipalID:  o.PrincipalID,
			Side:         o.Side,
			Price:        o.Price,
			RemainingQty: o.RemainingQty,
			Sequence:     se.book.NextSequence(),
		})
	}

	// trade and book events already fired per fill inside match (see
	// publishTrade/publishBook/publishPrice in match.go); only the taker's
	// final order state is published here.
	e.publishOrder(ctx, o)

	return Result{Order: *o, Trades: trades}, nil
}

// StatusPending returns the initial status an admitted order should carry
// before matching runs. Stop orders start PENDING (not yet live); all
// others start OPEN and the match loop updates status from there.
func StatusPending(o *types.Order) types.OrderStatus {
	if o.Type == types.OrderTypeStopLimit || o.Type == types.OrderTypeStopMarket {
		return types.StatusPending
	}
	return types.StatusOpen
}

func clientOrderKey(principalID, clientOrderID string) string {
	return principalID + "|" + clientOrderID
}

// Cancel cancels a resting order. Returns ErrNotCancellable if the order is
// already terminal or unknown.
func (e *Engine) Cancel(ctx context.Context, symbol, orderID string, now time.Time) error {
	se, err := e.symbolFor(symbol)
	if err != nil {
		return err
	}

	se.mu.Lock()
	defer se.mu.Unlock()

	o, ok := se.orders[orderID]
	if !ok || o.IsTerminal() {
		return fmt.Errorf("%s: %w", orderID, ErrNotCancellable)
	}

	removedFromBook := se.book.Cancel(orderID)
	removedFromStops := se.stops.remove(orderID)
	if !removedFromBook && !removedFromStops {
		return fmt.Errorf("%s: %w", orderID, ErrNotCancellable)
	}

	o.Status = types.StatusCanceled
	o.UpdatedAt = now

	base, quote := splitSymbol(symbol)
	asset := quote
	amount := o.RemainingQty.Mul(o.Price)
	if o.Side == types.Sell {
		asset = base
		amount = o.RemainingQty
	}
	_ = e.balances.Release(o.PrincipalID, asset, amount)

	e.publishOrder(ctx, o)
	return nil
}

// SweepExpired cancels every resting GTD order whose ExpiresAt has passed.
// Intended to run on a periodic ticker, following the same cheap polling
// idiom as the retrieved risk monitor's kill-switch cooldown sweep.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) int {
	e.mu.RLock()
	symbols := make([]*symbolEngine, 0, len(e.symbols))
	for _, se := range e.symbols {
		symbols = append(symbols, se)
	}
	e.mu.RUnlock()

	count := 0
	for _, se := range symbols {
		se.mu.Lock()
		var expired []*types.Order
		for _, o := range se.orders {
			if o.TimeInForce == types.TIFGTD && !o.IsTerminal() && !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt) {
				expired = append(expired, o)
			}
		}
		for _, o := range expired {
			se.book.Cancel(o.ID)
			se.stops.remove(o.ID)
			o.Status = types.StatusExpired
			o.UpdatedAt = now

			base, quote := splitSymbol(o.Symbol)
			asset := quote
			amount := o.RemainingQty.Mul(o.Price)
			if o.Side == types.Sell {
				asset = base
				amount = o.RemainingQty
			}
			_ = e.balances.Release(o.PrincipalID, asset, amount)
			e.publishOrder(ctx, o)
			count++
		}
		se.mu.Unlock()
	}
	return count
}

// Depth returns a depth snapshot for symbol.
func (e *Engine) Depth(symbol string, levels int) (types.DepthSnapshot, error) {
	se, err := e.symbolFor(symbol)
	if err != nil {
		return types.DepthSnapshot{}, err
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	return types.DepthSnapshot{
		Symbol: symbol,
		Bids:   se.book.Depth(types.Buy, levels),
		Asks:   se.book.Depth(types.Sell, levels),
	}, nil
}

// Order returns the current state of a tracked order.
func (e *Engine) Order(symbol, orderID string) (types.Order, bool, error) {
	se, err := e.symbolFor(symbol)
	if err != nil {
		return types.Order{}, false, err
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	o, ok := se.orders[orderID]
	if !ok {
		return types.Order{}, false, nil
	}
	return *o, true, nil
}

func (e *Engine) publishTrade(ctx context.Context, tr types.Trade) {
	if e.bus == nil {
		return
	}
	payload := encodeTrade(tr)
	_ = e.bus.Publish(ctx, "trades:"+tr.Symbol, payload)
}

func (e *Engine) publishOrder(ctx context.Context, o *types.Order) {
	if e.bus == nil {
		return
	}
	payload := encodeOrder(o)
	_ = e.bus.Publish(ctx, "orders:"+o.PrincipalID, payload)
}

// publishBook emits a depth snapshot tagged with the book's mutation
// sequence, so subscribers can detect gaps (spec.md §4.A/§5). Called from
// the match loop, under se.mu, after each fill and each decrement-take
// self-match removal, so the snapshot it captures is consistent. Resting a
// new order, a cancel and a GTD expiry do not publish a book frame.
func (e *Engine) publishBook(ctx context.Context, se *symbolEngine) {
	if e.bus == nil {
		return
	}
	const levels = 20
	payload := encodeBook(se.book.Sequence(), se.book.Depth(types.Buy, levels), se.book.Depth(types.Sell, levels))
	_ = e.bus.Publish(ctx, "book:"+se.symbol, payload)
}

// publishPrice emits the last/bid/ask price frame for a symbol following a
// trade at tradePrice.
func (e *Engine) publishPrice(ctx context.Context, se *symbolEngine, tradePrice decimal.Decimal, now time.Time) {
	if e.bus == nil {
		return
	}
	bid, _ := se.book.BestPrice(types.Buy)
	ask, _ := se.book.BestPrice(types.Sell)
	payload := encodePrice(tradePrice, bid, ask, now)
	_ = e.bus.Publish(ctx, "prices:"+se.symbol, payload)
}

// encodeTrade produces the pipe-delimited wire format the original trading
// engine publishes: trade_id|price|quantity|side.
func encodeTrade(t types.Trade) []byte {
	return []byte(fmt.Sprintf("%d|%s|%s|%s", t.TradeID, t.Price.String(), t.Quantity.String(), t.AggressorSide))
}

// encodeOrder produces the orders:<principal> wire format:
// order_id|status|filled_qty|avg_fill_price.
func encodeOrder(o *types.Order) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s", o.ID, o.Status, o.FilledQty.String(), o.AvgFillPrice.String()))
}

// encodeBook produces the book:<symbol> wire format: a sequence-tagged depth
// snapshot, pipe-delimited like the other channels. Each side is a
// comma-separated list of price:qty:order_count levels, best first.
func encodeBook(sequence uint64, bids, asks []types.DepthLevel) []byte {
	return []byte(fmt.Sprintf("%d|%s|%s", sequence, encodeLevels(bids), encodeLevels(asks)))
}

func encodeLevels(levels []types.DepthLevel) string {
	parts := make([]string, len(levels))
	for i, lv := range levels {
		parts[i] = fmt.Sprintf("%s:%s:%d", lv.Price.String(), lv.Quantity.String(), lv.Orders)
	}
	return strings.Join(parts, ",")
}

// encodePrice produces the prices:<symbol> wire format:
// last|bid|ask|iso_ts.
func encodePrice(last, bid, ask decimal.Decimal, now time.Time) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s", last.String(), bid.String(), ask.String(), now.UTC().Format(time.RFC3339Nano)))
}

func splitSymbol(symbol string) (base, quote string) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '-' {
			return symbol[:i], symbol[i+1:]
		}
	}
	return symbol, ""
}
