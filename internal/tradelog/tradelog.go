// Package tradelog implements the append-only trade log (spec.md §4.C): a
// monotonically increasing trade_id, fenced by the same mutex as the owning
// symbol engine, with each trade committed in the same store.Tx as the
// order status updates it caused.
package tradelog

import (
	"fmt"
	"sync"

	"spotmatch/internal/store"
	"spotmatch/internal/types"
)

// Log is the trade log's read-side index plus the write-side staging API.
type Log struct {
	mu       sync.RWMutex
	bySymbol map[string][]types.Trade
}

// New creates an empty trade log.
func New() *Log {
	return &Log{bySymbol: make(map[string][]types.Trade)}
}

// Stage assigns the next trade id and per-symbol sequence number and queues
// the row write inside tx. It does not update the read-side index — callers
// must call Commit with the same trades only after tx.Commit() succeeds, so
// a failed transaction never leaves the log's in-memory index ahead of the
// durable store.
func (l *Log) Stage(tx *store.Tx, trade types.Trade) (types.Trade, error) {
	trade.TradeID = tx.NextTradeID()
	trade.SymbolSequence = tx.NextSymbolSequence(trade.Symbol)
	if err := tx.Put("trades", fmt.Sprintf("%d", trade.TradeID), trade); err != nil {
		return types.Trade{}, fmt.Errorf("stage trade: %w", err)
	}
	return trade, nil
}

// Commit records trades in the read-side index after their transaction has
// durably committed.
func (l *Log) Commit(trades ...types.Trade) {
	if len(trades) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range trades {
		l.bySymbol[t.Symbol] = append(l.bySymbol[t.Symbol], t)
	}
}

// Recent returns up to limit of the most recent trades for symbol, oldest
// first within the returned slice.
func (l *Log) Recent(symbol string, limit int) []types.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.bySymbol[symbol]
	if limit <= 0 || limit >= len(all) {
		out := make([]types.Trade, len(all))
		copy(out, all)
		return out
	}
	out := make([]types.Trade, limit)
	copy(out, all[len(all)-limit:])
	return out
}

// All returns every trade recorded for symbol, oldest first. Used by
// analytics which needs the full window rather than a tail.
func (l *Log) All(symbol string) []types.Trade {
	return l.Recent(symbol, 0)
}
