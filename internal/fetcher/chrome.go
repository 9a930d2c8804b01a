package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// ChromeOptions configures the headless browser behind a ChromePool.
type ChromeOptions struct {
	// Sessions is the number of tabs that may render at once.
	Sessions int

	// UserAgents are rotated per browser; one is picked at start.
	UserAgents []string

	// ProxyServer is passed to Chrome as --proxy-server, for example
	// "socks5://127.0.0.1:9050". Empty means a direct connection.
	ProxyServer string

	// CaptureDelay is how long to let scripts run after navigation before
	// the DOM is captured.
	CaptureDelay time.Duration

	// MaxBodySize caps the captured HTML.
	MaxBodySize int64

	// DisableHeadless shows the browser window; useful when debugging.
	DisableHeadless bool
}

// ChromePool renders pages in tabs of a single headless Chrome process.
// Each lease owns one tab until it is released.
type ChromePool struct {
	opts   ChromeOptions
	sem    *semaphore.Weighted
	logger *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context //nolint:containedctx // chromedp scopes the browser by context
	browserCancel context.CancelFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewChromePool starts Chrome and returns a pool of opts.Sessions tabs.
// The browser lives until Close is called or ctx is canceled.
func NewChromePool(ctx context.Context, opts ChromeOptions, logger *slog.Logger) (*ChromePool, error) {
	if opts.Sessions < 1 {
		opts.Sessions = 1
	}
	if opts.CaptureDelay <= 0 {
		opts.CaptureDelay = 1500 * time.Millisecond
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:], //nolint:gocritic // copy of the defaults
		chromedp.Flag("headless", !opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(pickUserAgent(opts.UserAgents)),
	)
	if opts.ProxyServer != "" {
		execOpts = append(execOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Running an empty action list starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromePool{
		opts:          opts,
		sem:           semaphore.NewWeighted(int64(opts.Sessions)),
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Acquire opens a tab once one of the pool's sessions is free.
func (p *ChromePool) Acquire(ctx context.Context) (Lease, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// The first Run creates the tab and ties its event loop to the given
	// context, so it runs on the lease's context rather than a fetch's.
	tabCtx, tabCancel := chromedp.NewContext(p.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		p.sem.Release(1)
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &ChromeFetcher{
		pool:      p,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}, nil
}

// Close shuts down the browser. Outstanding tabs are closed with it.
func (p *ChromePool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.browserCancel()
		p.allocCancel()
	})
	return nil
}

// ChromeFetcher is a leased browser tab.
type ChromeFetcher struct {
	pool      *ChromePool
	tabCtx    context.Context //nolint:containedctx // chromedp scopes the tab by context
	tabCancel context.CancelFunc
	once      sync.Once
}

// Fetch navigates the tab to pageURL, waits for scripts to settle and
// reduces the rendered DOM. The status code is not observed and stays 0.
func (c *ChromeFetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (*Page, error) {
	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		html     string
		finalURL string
	)
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(c.pool.opts.CaptureDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	if int64(len(html)) > c.pool.opts.MaxBodySize {
		html = html[:c.pool.opts.MaxBodySize]
	}
	if finalURL == "" {
		finalURL = pageURL
	}

	page, err := reduce(pageURL, finalURL, []byte(html))
	if err != nil {
		return nil, err
	}
	c.pool.logger.Debug("rendered page",
		"url", pageURL,
		"resolved", finalURL,
		"html_bytes", len(html),
		"links", len(page.Hrefs),
	)
	return page, nil
}

// Release closes the tab and frees its session.
func (c *ChromeFetcher) Release() {
	c.once.Do(func() {
		c.tabCancel()
		c.pool.sem.Release(1)
	})
}
