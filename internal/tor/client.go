package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the handshake in CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is how many redirects a proxied client follows.
const maxRedirects = 10

// Client routes connections through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the proxy in "host:port" format.
	proxyAddress string

	dialer proxy.ContextDialer

	// timeout is the default timeout of HTTP clients built by this client.
	timeout time.Duration

	// insecureTLS disables certificate checks for sites with self-signed
	// certificates.
	insecureTLS bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithInsecureTLS disables TLS certificate verification.
func WithInsecureTLS(insecure bool) ClientOption {
	return func(c *Client) {
		c.insecureTLS = insecure
	}
}

// NewClient creates a client for the SOCKS5 proxy at proxyAddress
// (for example "127.0.0.1:9050"). It does not contact the proxy; call
// CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port needs no authentication.
	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}

	c := &Client{
		proxyAddress: proxyAddress,
		dialer:       cd,
		timeout:      timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// isValidProxyAddress reports whether address is host:port with a port
// between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is the CONNECT target of the handshake check. Only
	// the proxy's reply header matters, not whether the connection succeeds.
	socks5ProbeHost = "example.com"
	socks5ProbePort = 80
)

// CheckConnection verifies that a SOCKS5 proxy without authentication
// listens at the configured address and answers a CONNECT request.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if status := greet(conn); status != ProxyStatusOK {
		return status
	}
	return connectProbe(conn)
}

// greet offers "no authentication" and checks the proxy accepts it.
func greet(conn net.Conn) ProxyStatus {
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// connectProbe sends a CONNECT request and checks that a SOCKS5 reply
// comes back. Any reply code counts.
func connectProbe(conn net.Conn) ProxyStatus {
	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5ProbeHost))}
	req = append(req, socks5ProbeHost...)
	req = append(req, byte(socks5ProbePort>>8), byte(socks5ProbePort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, reply, reserved, address type
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return readFailure(err)
	}
	if header[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// HTTPClient returns a new HTTP client whose connections all go through
// the proxy.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: c.dialer.DialContext,
		// Each connection holds a proxy circuit, so keep the pool small.
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if c.insecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opted in with --insecure
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext opens a connection to address through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return c.dialer.DialContext(ctx, network, address)
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// ProxyURL returns the proxy as a socks5:// URL, the form headless Chrome
// expects for --proxy-server.
func (c *Client) ProxyURL() string {
	return "socks5://" + c.proxyAddress
}
