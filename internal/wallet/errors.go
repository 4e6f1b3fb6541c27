package wallet

import "errors"

var (
	// ErrInsufficientBalance is returned by Reserve when a principal's
	// available balance cannot cover the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNonceExpired is returned by NonceStore.Verify when the nonce's
	// expiry window (the store's TTL) has passed.
	ErrNonceExpired = errors.New("nonce expired")
	// ErrNonceUnknown is returned by NonceStore.Verify for a nonce never issued or
	// already consumed (nonces are single-use).
	ErrNonceUnknown = errors.New("nonce unknown or already used")
	// ErrInvalidAddress is returned when a wallet address fails hex-address
	// format validation.
	ErrInvalidAddress = errors.New("invalid wallet address")
)
