package session

import "errors"

// ErrUnauthorizedChannel is returned when a client tries to subscribe to a
// principal-scoped channel it doesn't own.
var ErrUnauthorizedChannel = errors.New("unauthorized channel subscription")
