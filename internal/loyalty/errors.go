package loyalty

import (
	"errors"
	"fmt"
)

// ErrRedemptionFailed means the API answered but the body lacked the
// redemption fields.
var ErrRedemptionFailed = errors.New("redemption failed")

// ErrAuthRequired is returned instead of a degraded attempt when the client
// is configured to require a bearer token.
var ErrAuthRequired = errors.New("device registration failed")

// TransportError wraps a network level failure (timeout, refused connection).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
