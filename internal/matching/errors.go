package matching

import "errors"

// Error kinds returned by the matching engine's public operations. Each is
// wrapped with context via fmt.Errorf("...: %w", ErrXxx) so callers can use
// errors.Is against the sentinel while still getting a readable message.
var (
	ErrValidation              = errors.New("validation")
	ErrNotCancellable          = errors.New("not cancellable")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrConflictingClientOrder  = errors.New("conflicting client order id")
	ErrRateLimited             = errors.New("rate limited")
	ErrAuthRequired            = errors.New("auth required")
	ErrAuthInvalid             = errors.New("auth invalid")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrFatal                   = errors.New("fatal")
	ErrUnknownSymbol           = errors.New("unknown symbol")
)
