package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type orderRow struct {
	ID     string
	Status string
}

func TestPutCommitThenGet(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	tx := s.Begin()
	require.NoError(t, tx.Put("orders", "o1", orderRow{ID: "o1", Status: "OPEN"}))
	require.NoError(t, tx.Commit())

	var row orderRow
	ok, err := s.Get("orders", "o1", &row)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "OPEN", row.Status)
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	var row orderRow
	ok, err := s.Get("orders", "missing", &row)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTradeIDCounterIncrementsOnlyOnCommit(t *testing.T) {
	t.Parallel()
	s, err := Open("")
	require.NoError(t, err)

	tx := s.Begin()
	id := tx.NextTradeID()
	require.Equal(t, uint64(1), id)

	// Before commit, a fresh Tx still sees the counter at zero.
	require.Equal(t, uint64(1), s.Begin().NextTradeID())

	require.NoError(t, tx.Commit())
	require.Equal(t, uint64(2), s.Begin().NextTradeID())
}

func TestSymbolSequenceIsPerSymbol(t *testing.T) {
	t.Parallel()
	s, err := Open("")
	require.NoError(t, err)

	tx := s.Begin()
	require.Equal(t, uint64(1), tx.NextSymbolSequence("BTC-USD"))
	require.NoError(t, tx.Commit())

	require.Equal(t, uint64(2), s.Begin().NextSymbolSequence("BTC-USD"))
	require.Equal(t, uint64(1), s.Begin().NextSymbolSequence("ETH-USD"))
}

func TestSeedCountersRestoresAfterRestart(t *testing.T) {
	t.Parallel()
	s, err := Open("")
	require.NoError(t, err)

	s.SeedCounters(41, map[string]uint64{"BTC-USD": 7})

	tx := s.Begin()
	require.Equal(t, uint64(42), tx.NextTradeID())
	require.Equal(t, uint64(8), tx.NextSymbolSequence("BTC-USD"))
}
