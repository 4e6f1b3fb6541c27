package wallet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestReserveRejectsInsufficientBalance(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	l.Credit("alice", "USD", decimal.NewFromInt(100))

	err := l.Reserve("alice", "USD", decimal.NewFromInt(150))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	l.Credit("alice", "USD", decimal.NewFromInt(100))

	require.NoError(t, l.Reserve("alice", "USD", decimal.NewFromInt(40)))
	require.True(t, l.Snapshot("alice", "USD").Available().Equal(decimal.NewFromInt(60)))

	require.NoError(t, l.Release("alice", "USD", decimal.NewFromInt(40)))
	require.True(t, l.Snapshot("alice", "USD").Available().Equal(decimal.NewFromInt(100)))
}

func TestSettleDebitMovesTotalAndLocked(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	l.Credit("alice", "USD", decimal.NewFromInt(100))
	require.NoError(t, l.Reserve("alice", "USD", decimal.NewFromInt(50)))

	require.NoError(t, l.Settle("alice", "USD", decimal.NewFromInt(50), true))
	bal := l.Snapshot("alice", "USD")
	require.True(t, bal.Total.Equal(decimal.NewFromInt(50)))
	require.True(t, bal.Locked.IsZero())
}

func TestNonceSingleUse(t *testing.T) {
	t.Parallel()
	s := NewNonceStore(10 * time.Minute)
	nonce, _, err := s.Issue("0xAbC0000000000000000000000000000000dEaD")
	require.NoError(t, err)

	require.NoError(t, s.Verify(nonce, "0xabc0000000000000000000000000000000dead"))
	require.ErrorIs(t, s.Verify(nonce, "0xabc0000000000000000000000000000000dead"), ErrNonceUnknown)
}

func TestNonceExpires(t *testing.T) {
	t.Parallel()
	s := NewNonceStore(-1 * time.Second)
	nonce, _, err := s.Issue("0xAbC0000000000000000000000000000000dEaD")
	require.NoError(t, err)

	require.ErrorIs(t, s.Verify(nonce, "0xAbC0000000000000000000000000000000dEaD"), ErrNonceExpired)
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateAddress("0x000000000000000000000000000000000000dEaD"))
	require.ErrorIs(t, ValidateAddress("not-an-address"), ErrInvalidAddress)
}
