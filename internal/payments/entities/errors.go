package entities

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrUpstreamRejected      = errors.New("upstream rejected request")
	ErrUpstreamProtocolError = errors.New("upstream protocol error")
	ErrMalformedCallback     = errors.New("malformed callback")
	ErrPersistenceFailure    = errors.New("persistence failure")
)

// IsUpstream reports whether err came from the gateway or token exchange.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamRejected) ||
		errors.Is(err, ErrUpstreamProtocolError)
}
