package tor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
		if client.ProxyURL() != "socks5://127.0.0.1:9050" {
			t.Errorf("ProxyURL() = %q", client.ProxyURL())
		}
	})

	t.Run("invalid address returns error", func(t *testing.T) {
		t.Parallel()

		if _, err := NewClient("not-an-address", time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:9050", true},
		{"", false},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"a:b:c", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.valid {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.valid)
			}
		})
	}
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("routes through proxy with jar and timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 45*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		hc := client.HTTPClient()
		if hc.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v", hc.Timeout)
		}
		if hc.Jar == nil {
			t.Error("expected cookie jar")
		}
		transport, ok := hc.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("unexpected transport %T", hc.Transport)
		}
		if transport.DialContext == nil {
			t.Error("expected proxy dialer")
		}
		if transport.TLSClientConfig != nil {
			t.Error("TLS verification should stay on by default")
		}
	})

	t.Run("insecure TLS is opt-in", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", time.Second, WithInsecureTLS(true))
		if err != nil {
			t.Fatal(err)
		}
		transport := client.HTTPClient().Transport.(*http.Transport)
		if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected InsecureSkipVerify")
		}
	})

	t.Run("redirect limit", func(t *testing.T) {
		t.Parallel()

		client, _ := NewClient("127.0.0.1:9050", time.Second)
		hc := client.HTTPClient()
		via := make([]*http.Request, maxRedirects)
		if err := hc.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
			t.Errorf("expected ErrUseLastResponse, got %v", err)
		}
		if err := hc.CheckRedirect(nil, via[:1]); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		text   string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		if tt.status.String() != tt.text {
			t.Errorf("String() = %q, want %q", tt.status.String(), tt.text)
		}
		if !errors.Is(tt.status.Error(), tt.err) {
			t.Errorf("%s: Error() = %v, want %v", tt.text, tt.status.Error(), tt.err)
		}
	}
	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Error() == nil {
		t.Error("unknown status should describe itself and return an error")
	}
}

// startMockProxy serves one connection with handle and returns its address.
func startMockProxy(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		handle func(conn net.Conn)
		want   ProxyStatus
	}{
		{
			name: "HTTP server is wrong type",
			handle: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "proxy requiring auth is wrong type",
			handle: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0xFF})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "SOCKS5 proxy answering CONNECT is OK",
			handle: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0x00})
				req := make([]byte, 256)
				_, _ = conn.Read(req)
				_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			},
			want: ProxyStatusOK,
		},
		{
			name: "wrong version in CONNECT reply",
			handle: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0x00})
				req := make([]byte, 256)
				_, _ = conn.Read(req)
				_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
			},
			want: ProxyStatusWrongType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(startMockProxy(t, tt.handle), 30*time.Second)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			if got := client.CheckConnection(context.Background()); got != tt.want {
				t.Errorf("CheckConnection() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59999", 30*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", got)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59998", 30*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		got := client.CheckConnection(ctx)
		if got != ProxyStatusCannotConnect && got != ProxyStatusTimeout {
			t.Errorf("expected CannotConnect or Timeout, got %v", got)
		}
	})
}

func TestDialContext(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:59997", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.DialContext(ctx, "tcp", "example.com:80"); err == nil {
		t.Error("expected error for canceled context")
	}
}
