package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/language"
	"github.com/nao1215/sitecrawler/internal/linkfilter"
	"github.com/nao1215/sitecrawler/internal/model"
)

// Default crawl settings.
const (
	// DefaultWorkers is the number of concurrent workers per site.
	DefaultWorkers = 4

	// DefaultMaxLinks is the page ceiling per site.
	DefaultMaxLinks = 100

	// DefaultPerPageNewLinkCap is how many new links one page may queue.
	DefaultPerPageNewLinkCap = 20

	// DefaultMaxWordsPerPage is how many words are kept per page.
	DefaultMaxWordsPerPage = 1000

	// DefaultSiteTimeBudget bounds the whole crawl of one site.
	DefaultSiteTimeBudget = 5 * time.Minute

	// DefaultSeedScanTimeBudget bounds fetching and filtering the root page.
	DefaultSeedScanTimeBudget = 60 * time.Second

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultGracePeriod is how long in-flight fetches may run past the
	// site deadline before they are canceled.
	DefaultGracePeriod = 5 * time.Second
)

// Coordinator crawls sites one root at a time. A Coordinator holds no
// per-crawl state, so one value may run several roots concurrently.
type Coordinator struct {
	// pool supplies fetchers; every worker and the seed scan lease one.
	pool fetcher.Pool

	// oracle decides whether the root page is English.
	oracle language.Oracle

	// filter turns hrefs into crawl candidates.
	filter *linkfilter.Filter

	logger *slog.Logger

	numWorkers         int
	maxLinks           int
	perPageNewLinkCap  int
	maxWordsPerPage    int
	siteTimeBudget     time.Duration
	seedScanTimeBudget time.Duration
	fetchTimeout       time.Duration
	gracePeriod        time.Duration

	// requestsPerSecond paces each site crawl; 0 disables pacing.
	requestsPerSecond float64

	now func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of workers per site.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.numWorkers = n
		}
	}
}

// WithMaxLinks sets the page ceiling per site.
func WithMaxLinks(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxLinks = n
		}
	}
}

// WithPerPageNewLinkCap sets how many new links a single page may queue.
func WithPerPageNewLinkCap(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.perPageNewLinkCap = n
		}
	}
}

// WithMaxWordsPerPage sets how many words of each page are kept.
func WithMaxWordsPerPage(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxWordsPerPage = n
		}
	}
}

// WithSiteTimeBudget sets the wall-clock budget for a whole site.
func WithSiteTimeBudget(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.siteTimeBudget = d
		}
	}
}

// WithSeedScanTimeBudget sets the budget for scanning the root page.
func WithSeedScanTimeBudget(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.seedScanTimeBudget = d
		}
	}
}

// WithFetchTimeout sets the per-page fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithGracePeriod sets how long in-flight fetches may outlive the deadline.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.gracePeriod = d
		}
	}
}

// WithRequestsPerSecond paces requests to each site.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Coordinator) {
		c.requestsPerSecond = rps
	}
}

// WithOracle sets the language oracle.
func WithOracle(o language.Oracle) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.oracle = o
		}
	}
}

// WithFilter sets the link filter.
func WithFilter(f *linkfilter.Filter) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.filter = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator that fetches through pool.
func NewCoordinator(pool fetcher.Pool, opts ...Option) *Coordinator {
	c := &Coordinator{
		pool:               pool,
		oracle:             language.NewDetector(0),
		filter:             linkfilter.NewFilter(nil),
		logger:             slog.Default(),
		numWorkers:         DefaultWorkers,
		maxLinks:           DefaultMaxLinks,
		perPageNewLinkCap:  DefaultPerPageNewLinkCap,
		maxWordsPerPage:    DefaultMaxWordsPerPage,
		siteTimeBudget:     DefaultSiteTimeBudget,
		seedScanTimeBudget: DefaultSeedScanTimeBudget,
		fetchTimeout:       DefaultFetchTimeout,
		gracePeriod:        DefaultGracePeriod,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls the site at root and returns its result. Run never fails:
// seed failures, timeouts and non-English sites all produce a result that
// says what happened.
func (c *Coordinator) Run(ctx context.Context, root string) (result *model.CrawlResult) {
	start := c.now()
	result = model.NewZeroPageResult(root, start)
	logger := c.logger.With("root", root)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("crawl panicked", "panic", r)
			result = model.NewZeroPageResult(root, start)
			result.SeedError = fmt.Sprintf("panic: %v", r)
		}
		result.Duration = c.now().Sub(start)
	}()

	st := newCrawlState(linkfilter.Normalize(root), c.maxLinks, c.perPageNewLinkCap)

	links, ok := c.generateSeeds(ctx, st, result, logger)
	if !ok {
		st.snapshot(result)
		return result
	}

	st.seed(links)
	c.dispatch(ctx, st, start.Add(c.siteTimeBudget), result, logger)

	st.snapshot(result)
	result.ComputeDigest()

	logger.Info("crawl finished",
		"home_domain", result.HomeDomain,
		"pages", result.PagesVisited,
		"words", result.TotalWords,
		"new_links", result.NewLinkCount,
		"timed_out", result.TimedOut,
		"complete", result.Complete,
	)
	return result
}

// dispatch runs the workers until the crawl drains, the deadline passes
// or ctx is canceled.
func (c *Coordinator) dispatch(ctx context.Context, st *crawlState, deadline time.Time, result *model.CrawlResult, logger *slog.Logger) {
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	acquireCtx, cancelAcquire := context.WithDeadline(fetchCtx, deadline)
	defer cancelAcquire()

	limiter := fetcher.NewLimiter(c.requestsPerSecond, c.numWorkers)
	workers := make([]*worker, c.numWorkers)
	var wg sync.WaitGroup

	for i := range workers {
		w := &worker{
			id:         i,
			c:          c,
			state:      st,
			homeDomain: st.homeDomain,
			limiter:    limiter,
		}
		workers[i] = w

		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := c.pool.Acquire(acquireCtx)
			if err != nil {
				w.current = StateAborted
				logger.Warn("worker could not lease a fetcher", "worker", w.id, "error", err)
				// Waiting for a lease used up the site budget.
				if isDeadline(acquireCtx, err) {
					st.abort(true)
				}
				return
			}
			defer lease.Release()

			w.lease = lease
			w.run(fetchCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	joined := true
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("site time budget exceeded", "budget", c.siteTimeBudget)
		st.abort(true)
		joined = c.awaitWorkers(done, cancelFetch)
	case <-ctx.Done():
		st.abort(false)
		joined = c.awaitWorkers(done, cancelFetch)
	}

	if !joined {
		logger.Error("workers did not stop within the grace period; abandoning them")
		return
	}
	for _, w := range workers {
		result.Workers = append(result.Workers, w.summary())
	}
}

// awaitWorkers gives in-flight fetches the grace period, then cancels them
// and waits one more grace period. It reports whether every worker exited.
func (c *Coordinator) awaitWorkers(done <-chan struct{}, cancelFetch context.CancelFunc) bool {
	grace := time.NewTimer(c.gracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		return true
	case <-grace.C:
	}

	cancelFetch()
	grace.Reset(c.gracePeriod + time.Second)
	select {
	case <-done:
		return true
	case <-grace.C:
		return false
	}
}
