// Package wallet implements the balance gate: reserve/settle/release
// semantics against per-principal, per-asset balances, a single-use nonce
// store for wallet-binding signatures, and a client for the external wallet
// oracle (balance sync / gas estimation), which this core treats as an
// opaque collaborator per spec.md's non-goals.
package wallet

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Balance is the available/locked split for one principal's holding of one
// asset. Available = Total - Locked.
type Balance struct {
	Total  decimal.Decimal
	Locked decimal.Decimal
}

// Available returns the spendable amount.
func (b Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Locked)
}

// Ledger is the in-process balance gate. One mutex guards all balances;
// contention is low relative to the matching engine's per-symbol locks.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]*Balance // principalID -> asset -> balance
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]*Balance)}
}

// Credit increases a principal's total balance for asset (deposits, trade
// settlement proceeds). Settle credits receipts itself and does not call it.
func (l *Ledger) Credit(principalID, asset string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(principalID, asset)
	bal.Total = bal.Total.Add(amount)
}

func (l *Ledger) balanceLocked(principalID, asset string) *Balance {
	assets, ok := l.balances[principalID]
	if !ok {
		assets = make(map[string]*Balance)
		l.balances[principalID] = assets
	}
	bal, ok := assets[asset]
	if !ok {
		bal = &Balance{}
		assets[asset] = bal
	}
	return bal
}

// Reserve locks `amount` of asset against principalID's available balance.
// Returns ErrInsufficientBalance if the available balance is too small.
func (l *Ledger) Reserve(principalID, asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(principalID, asset)
	if bal.Available().LessThan(amount) {
		return fmt.Errorf("reserve %s %s for %s: %w", amount, asset, principalID, ErrInsufficientBalance)
	}
	bal.Locked = bal.Locked.Add(amount)
	return nil
}

// Release unlocks a previously reserved amount without moving it (order
// cancelled or rejected before settling).
func (l *Ledger) Release(principalID, asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(principalID, asset)
	bal.Locked = bal.Locked.Sub(amount)
	if bal.Locked.IsNegative() {
		bal.Locked = decimal.Zero
	}
	return nil
}

// Settle moves `amount` of asset out of a principal's total+locked balance
// (debit side of a trade) or adds to total (credit side). debit=true means
// the amount leaves both Total and Locked; debit=false credits Total only.
func (l *Ledger) Settle(principalID, asset string, amount decimal.Decimal, debit bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(principalID, asset)
	if debit {
		bal.Total = bal.Total.Sub(amount)
		bal.Locked = bal.Locked.Sub(amount)
		if bal.Locked.IsNegative() {
			bal.Locked = decimal.Zero
		}
	} else {
		bal.Total = bal.Total.Add(amount)
	}
	return nil
}

// Snapshot returns the current balance for principalID/asset.
func (l *Ledger) Snapshot(principalID, asset string) Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(principalID, asset)
	return *bal
}
