// Package store provides the transactional persistence boundary the
// matching engine runs against. spec.md treats the durable storage engine
// as external infrastructure; this package is the in-process stand-in the
// core actually runs on, adapted from the crash-safe atomic-write pattern
// the teacher uses for position snapshots, generalized into a small
// transactional row store with typed Put/Get and a Tx grouping construct so
// AppendTrade and an order status update commit together (spec.md §4.C).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is an in-memory, optionally file-backed key/row store. Writes made
// inside a Tx are applied atomically to the in-memory maps; if a data
// directory is configured, each Tx also durably writes its rows via atomic
// write-then-rename, mirroring the teacher's SavePosition.
type Store struct {
	mu   sync.Mutex
	dir  string
	rows map[string]map[string][]byte // table -> key -> JSON value

	tradeCounter  uint64
	symbolCounter map[string]uint64
}

// Open creates a store rooted at dir. If dir is empty, the store is purely
// in-memory (used by tests).
func Open(dir string) (*Store, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &Store{
		dir:           dir,
		rows:          make(map[string]map[string][]byte),
		symbolCounter: make(map[string]uint64),
	}, nil
}

// Close is a no-op; the in-memory store holds no open file handles.
func (s *Store) Close() error {
	return nil
}

// Tx is a batch of row writes and counter bumps applied together.
type Tx struct {
	s      *Store
	puts   []put
	trade  bool
	symbol string
}

type put struct {
	table string
	key   string
	value []byte
}

// Begin starts a transaction. Tx is not safe for concurrent use; callers
// already hold whatever higher-level lock (e.g. the symbol engine mutex)
// makes a sequence of Tx calls linearizable.
func (s *Store) Begin() *Tx {
	return &Tx{s: s}
}

// Put stages a row write for table/key.
func (t *Tx) Put(table, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", table, key, err)
	}
	t.puts = append(t.puts, put{table: table, key: key, value: data})
	return nil
}

// NextTradeID stages a trade-id counter increment and returns the id that
// will be assigned when Commit runs.
func (t *Tx) NextTradeID() uint64 {
	t.trade = true
	return t.s.tradeCounter + 1
}

// NextSymbolSequence stages a per-symbol sequence increment.
func (t *Tx) NextSymbolSequence(symbol string) uint64 {
	t.symbol = symbol
	return t.s.symbolCounter[symbol] + 1
}

// Commit applies all staged writes atomically under the store's mutex, then
// durably persists the transaction's rows if a data directory is configured.
func (t *Tx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, p := range t.puts {
		table, ok := t.s.rows[p.table]
		if !ok {
			table = make(map[string][]byte)
			t.s.rows[p.table] = table
		}
		table[p.key] = p.value
	}
	if t.trade {
		t.s.tradeCounter++
	}
	if t.symbol != "" {
		t.s.symbolCounter[t.symbol]++
	}

	if t.s.dir == "" || len(t.puts) == 0 {
		return nil
	}
	return t.s.appendLocked(t.puts)
}

// appendLocked writes each row to <dir>/<table>/<key>.json via atomic
// write-then-rename, the same crash-safe pattern used for position files.
func (s *Store) appendLocked(puts []put) error {
	for _, p := range puts {
		tableDir := filepath.Join(s.dir, p.table)
		if err := os.MkdirAll(tableDir, 0o755); err != nil {
			return fmt.Errorf("create table dir %s: %w", p.table, err)
		}
		final := filepath.Join(tableDir, p.key+".json")
		tmp := final + ".tmp"
		if err := os.WriteFile(tmp, p.value, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, final); err != nil {
			return fmt.Errorf("rename %s: %w", tmp, err)
		}
	}
	return nil
}

// Get reads a row, unmarshalling into out. Returns false if the key is absent.
func (s *Store) Get(table, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.rows[table][key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", table, key, err)
	}
	return true, nil
}

// SeedCounters recovers the trade-id and per-symbol sequence counters at
// startup. The matching engine must not run until this succeeds, per
// spec.md §9: a lost counter seed risks reusing trade ids across a restart.
func (s *Store) SeedCounters(tradeCounter uint64, symbolCounters map[string]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeCounter = tradeCounter
	for sym, v := range symbolCounters {
		s.symbolCounter[sym] = v
	}
}
