package tor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds Tor's bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago for crawls started
// with --tor. Bootstrapping takes one to three minutes.
type EmbeddedTor struct {
	mu sync.Mutex

	process *tornago.TorProcess

	// socksAddr and controlAddr are set once the daemon is up.
	socksAddr   string
	controlAddr string

	startupTimeout time.Duration
	logger         *slog.Logger
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// WithEmbeddedLogger sets the logger.
func WithEmbeddedLogger(logger *slog.Logger) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start to launch the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type launchResult struct {
	process *tornago.TorProcess
	err     error
}

// Start launches the daemon on OS-assigned ports and waits for it to
// bootstrap. If ctx ends first, Start returns and the daemon is stopped
// as soon as it comes up.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	e.logger.Info("starting embedded Tor daemon", "startup_timeout", e.startupTimeout)

	done := make(chan launchResult, 1)
	go func() {
		p, err := tornago.StartTorDaemon(launchCfg)
		done <- launchResult{process: p, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", res.err)
		}
		e.mu.Lock()
		e.process = res.process
		e.socksAddr = res.process.SocksAddr()
		e.controlAddr = res.process.ControlAddr()
		e.mu.Unlock()
		e.logger.Info("embedded Tor daemon ready", "socks", e.socksAddr)
		return nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.process != nil {
				_ = res.process.Stop() //nolint:errcheck // best effort cleanup
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. It is safe to call on an unstarted or
// already stopped instance.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address of the running daemon, or "".
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socksAddr
}

// ControlAddr returns the control port address of the running daemon, or "".
func (e *EmbeddedTor) ControlAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlAddr
}

// IsRunning reports whether the daemon is up.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// NewClient returns a Client for the daemon's SOCKS port.
func (e *EmbeddedTor) NewClient(timeout time.Duration, opts ...ClientOption) (*Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrNotRunning
	}
	return NewClient(addr, timeout, opts...)
}
