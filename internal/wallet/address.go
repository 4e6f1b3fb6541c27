package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress checks that addr is a well-formed hex wallet address. It
// does not perform any signing or chain lookups; on-chain verification is
// the external wallet oracle's responsibility.
func ValidateAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%q: %w", addr, ErrInvalidAddress)
	}
	return nil
}

// NormalizeAddress returns the checksummed form of a validated address.
func NormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return common.HexToAddress(addr).Hex(), nil
}
