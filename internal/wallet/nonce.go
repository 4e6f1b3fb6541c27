package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// pendingNonce mirrors the Python wallet service's _pending_signatures entry:
// an address bound to a nonce with a fixed expiry, consumed exactly once.
type pendingNonce struct {
	address   string
	expiresAt time.Time
}

// NonceStore issues wallet-binding nonces and verifies them exactly once.
type NonceStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingNonce
}

// NewNonceStore creates a nonce store with the given expiry window.
func NewNonceStore(ttl time.Duration) *NonceStore {
	return &NonceStore{ttl: ttl, pending: make(map[string]pendingNonce)}
}

// Issue generates a fresh nonce bound to address, valid for the store's ttl.
func (s *NonceStore) Issue(address string) (nonce string, expiresAt time.Time, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate nonce: %w", err)
	}
	nonce = hex.EncodeToString(buf)
	expiresAt = time.Now().Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[nonce] = pendingNonce{address: strings.ToLower(address), expiresAt: expiresAt}
	return nonce, expiresAt, nil
}

// Verify consumes a nonce if it exists, is unexpired, and matches address.
// Nonces are single-use: a successful or failed-but-present lookup deletes
// the entry, matching the original service's "clean up used nonce" step.
func (s *NonceStore) Verify(nonce, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pn, ok := s.pending[nonce]
	if !ok {
		return ErrNonceUnknown
	}
	delete(s.pending, nonce)

	if time.Now().After(pn.expiresAt) {
		return ErrNonceExpired
	}
	if pn.address != strings.ToLower(address) {
		return ErrNonceUnknown
	}
	return nil
}
