package tor

import "errors"

var (
	// ErrProxyNotSOCKS5 is returned when the proxy address answers but does
	// not speak SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be made. The proxy is probably not running.
	ErrProxyCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrProxyTimeout is returned when the proxy did not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to SOCKS5 proxy")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when a client is requested from an embedded
	// daemon that has not been started.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of checking the proxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy is a working SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something answered that is not a
	// usable SOCKS5 proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates we could not establish a connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
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

// Error returns the error for this status, or nil if OK.
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
