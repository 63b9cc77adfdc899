package fetch

import (
	"errors"
	"fmt"
)

// Fetch errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTooManyRedirects is returned when the redirect target redirects again.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrMissingLocation is returned for a redirect without a Location header.
	ErrMissingLocation = errors.New("redirect without Location header")

	// ErrProxyNotSOCKS5 is returned when the proxy does not speak SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when the proxy cannot be reached.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")
)

// StatusError is returned for responses with a status code of 400 or above.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// ProxyStatus represents the result of checking a SOCKS5 proxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy speaks SOCKS5 without authentication.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the proxy answered but is not a usable SOCKS5 proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates no connection could be established.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the check timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
