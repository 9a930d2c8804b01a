package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/language"
	"github.com/nao1215/sitecrawler/internal/linkfilter"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/pipeline"
	"github.com/nao1215/sitecrawler/internal/report"
	"github.com/nao1215/sitecrawler/internal/source"
	"github.com/nao1215/sitecrawler/internal/tor"
)

// redisPasswordEnv holds the Redis password so it stays out of the
// process list.
const redisPasswordEnv = "SITECRAWLER_REDIS_PASSWORD"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [root-url...]",
		Short: "Crawl websites from their root URLs",
		Long: `Crawl fetches each root page, follows same-domain links in order of
path depth and keeps the visible text of every page it visits.

A site's crawl stops when its page ceiling is reached, when it runs out
of links or when its time budget is spent. Each finished site is
classified (success, low_count, timeout, fail, error), stored in the
database and counted in the batch summary printed at the end.

Examples:
  # Crawl one site
  sitecrawler crawl https://example.com/

  # Crawl a list of roots, 20 sites at a time
  sitecrawler crawl --list roots.txt --batch 20

  # Take roots from a Redis list filled with 'sitecrawler enqueue'
  sitecrawler crawl --redis localhost:6379

  # Render pages with headless Chrome and write a Markdown summary
  sitecrawler crawl -r chrome -m -o summary.md https://example.com/

  # Crawl through Tor
  sitecrawler crawl --tor https://example.com/

Configuration file (.sitecrawler) example:
  defaults:
    maxLinks: 200
  sites:
    example.com:
      workers: 8
      siteTimeBudget: 10m
      userAgent: "Mozilla/5.0 (compatible; sitecrawler)"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Per-site limits
	f.IntP("workers", "w", crawler.DefaultWorkers, "Concurrent workers per site")
	f.IntP("max-links", "n", crawler.DefaultMaxLinks, "Maximum pages crawled per site")
	f.Int("link-cap", crawler.DefaultPerPageNewLinkCap, "Maximum new links one page may queue")
	f.Int("max-words", crawler.DefaultMaxWordsPerPage, "Words kept per page")
	f.Duration("site-budget", crawler.DefaultSiteTimeBudget, "Time budget for one site")
	f.Duration("seed-budget", crawler.DefaultSeedScanTimeBudget, "Time budget for scanning the root page")
	f.DurationP("timeout", "t", crawler.DefaultFetchTimeout, "Timeout for one page fetch")
	f.Duration("grace", crawler.DefaultGracePeriod, "How long in-flight fetches may run past the site budget")
	f.Float64("rps", 0, "Requests per second per site (0 disables pacing)")

	// Roots
	f.IntP("batch", "b", config.DefaultBatchSize, "Number of sites crawled at once")
	f.Int("max-roots", 0, "Stop after this many roots (0 means no limit)")
	f.StringP("list", "l", "", "File with one root URL per line")
	f.String("redis", "", "Take roots from a Redis list at this address (password from "+redisPasswordEnv+")")
	f.String("redis-key", config.DefaultRedisKey, "Redis list holding the roots")

	// Fetching
	f.StringP("renderer", "r", config.RendererHTTP, "Page renderer: http or chrome")
	f.StringSlice("user-agent", nil, "User-Agent strings to rotate (default: built-in browser list)")
	f.Int64("max-body", fetcher.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.Bool("no-probe", false, "Do not send HEAD probes to detect downloads")
	f.Bool("insecure", false, "Skip TLS certificate verification")
	f.String("proxy", "", "Route fetches through a SOCKS5 proxy (host:port)")
	f.Bool("tor", false, "Start an embedded Tor daemon and crawl through it")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Classification
	f.Int("low-count", model.DefaultLowCountThreshold, "Word count below which a site is low_count")
	f.Int("fail-words", model.DefaultFailWordThreshold, "Word count below which a low_count site counts as failed")
	f.IntSlice("retry-codes", model.DefaultRetryCodes, "Root response codes that mark a site for retry")

	// Storage and output
	f.String("db-dir", config.XDGDataDir(), "Directory of the results database")
	f.Bool("no-db", false, "Do not store results")
	f.StringP("config", "c", "", "Configuration file path (default: .sitecrawler in current or home directory)")
	f.BoolP("json", "j", false, "Output JSON summary (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false, "Output Markdown summary (mutually exclusive with --json)")
	f.StringP("output", "o", "", "Write the summary to this file (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLog)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags and the optional
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	r := &flagReader{flags: cmd.Flags()}

	cfg.NumWorkers = r.Int("workers")
	cfg.MaxLinksPerSite = r.Int("max-links")
	cfg.PerPageNewLinkCap = r.Int("link-cap")
	cfg.MaxWordsPerPage = r.Int("max-words")
	cfg.SiteTimeBudget = r.Duration("site-budget")
	cfg.SeedScanTimeBudget = r.Duration("seed-budget")
	cfg.FetchTimeout = r.Duration("timeout")
	cfg.GracePeriod = r.Duration("grace")
	cfg.RequestsPerSecond = r.Float64("rps")

	cfg.BatchSize = r.Int("batch")
	cfg.MaxRoots = r.Int("max-roots")
	cfg.ListFile = r.String("list")
	cfg.RedisAddr = r.String("redis")
	cfg.RedisKey = r.String("redis-key")
	cfg.RedisPassword = os.Getenv(redisPasswordEnv)

	cfg.Renderer = r.String("renderer")
	if uas := r.StringSlice("user-agent"); len(uas) > 0 {
		cfg.UserAgents = uas
	}
	cfg.MaxBodySize = r.Int64("max-body")
	cfg.ProbeDownloads = !r.Bool("no-probe")
	cfg.InsecureTLS = r.Bool("insecure")
	cfg.ProxyAddress = r.String("proxy")
	cfg.UseEmbeddedTor = r.Bool("tor")
	cfg.TorStartupTimeout = r.Duration("tor-timeout")

	cfg.LowCountThreshold = r.Int("low-count")
	cfg.FailWordThreshold = r.Int("fail-words")
	cfg.RetryCodes = r.IntSlice("retry-codes")

	cfg.DBDir = r.String("db-dir")
	cfg.SaveToDB = !r.Bool("no-db")
	cfg.ConfigFilePath = r.String("config")
	cfg.JSONReport = r.Bool("json")
	cfg.MarkdownReport = r.Bool("markdown")
	cfg.ReportFile = r.String("output")

	cfg.Verbose = persistentBool(cmd, "verbose")
	cfg.JSONLog = persistentBool(cmd, "json-log")

	if r.err != nil {
		return nil, r.err
	}

	// An explicitly named file must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = siteConfigs
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Roots = args
	return cfg, nil
}

// runCrawl crawls every root from the configured sources and writes the
// batch summary to out. Progress lines go to progress.
func runCrawl(ctx context.Context, cfg *config.Config, out, progress io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"roots", len(cfg.Roots),
		"list", cfg.ListFile,
		"redis", cfg.RedisAddr,
		"renderer", cfg.Renderer,
		"batch_size", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	tr, err := setupTransport(ctx, cfg, progress, logger)
	if err != nil {
		return err
	}
	defer tr.close(logger)

	pool, err := newPool(ctx, cfg, tr, logger)
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // pools only reject further leases

	var store pipeline.Store
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		store = db
	}

	src, closeSource, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	th := cfg.Thresholds()
	var finished atomic.Int64
	logger.Debug("result pipeline", "steps", pipeline.DefaultPipeline(store, th, logger).StepNames())
	bp := pipeline.NewBatchProcessor(
		newCrawlerFactory(cfg, pool, tr, logger),
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(store, th, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithThresholds(th),
		pipeline.WithBatchLogger(logger),
		pipeline.WithResultCallback(func(r *pipeline.Report) {
			fmt.Fprintf(progress, "[%d] %s: %s (%d pages, %d words)\n",
				finished.Add(1), r.Result.Root, r.Outcome.Status, r.Result.PagesVisited, r.Result.TotalWords)
		}),
	)

	summary, runErr := bp.Run(ctx, src, cfg.MaxRoots)
	if summary != nil {
		if err := writeReport(cfg, out, summary); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("crawl stopped: %w", runErr)
	}
	return nil
}

// transport is how fetches and download probes reach the network.
type transport struct {
	// client carries HTTP fetches and probes.
	client *http.Client

	// proxyURL is handed to Chrome; empty means a direct connection.
	proxyURL string

	// embedded is the Tor daemon started for --tor.
	embedded *tor.EmbeddedTor
}

func (t *transport) close(logger *slog.Logger) {
	if t.embedded == nil {
		return
	}
	logger.Info("stopping embedded Tor daemon")
	if err := t.embedded.Stop(); err != nil {
		logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// setupTransport picks a direct connection, an external SOCKS5 proxy or
// an embedded Tor daemon.
func setupTransport(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*transport, error) {
	switch {
	case cfg.UseEmbeddedTor:
		return startEmbeddedTor(ctx, cfg, progress, logger)
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.FetchTimeout, tor.WithInsecureTLS(cfg.InsecureTLS))
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return &transport{client: client.HTTPClient(), proxyURL: client.ProxyURL()}, nil
	default:
		return &transport{client: directClient(cfg.InsecureTLS)}, nil
	}
}

// directClient is the HTTP client used without a proxy.
func directClient(insecure bool) *http.Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}
	tr := base.Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opted in with --insecure
	}
	jar, _ := cookiejar.New(nil) //nolint:errcheck // New never fails with nil options
	return &http.Client{Transport: tr, Jar: jar}
}

// startEmbeddedTor starts an embedded Tor daemon and verifies its proxy.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*transport, error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintln(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithEmbeddedLogger(logger),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socks_addr", embedded.SocksAddr(),
		"control_addr", embedded.ControlAddr(),
	)

	client, err := embedded.NewClient(cfg.FetchTimeout, tor.WithInsecureTLS(cfg.InsecureTLS))
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	fmt.Fprintf(progress, "Embedded Tor ready, SOCKS proxy: %s\n", embedded.SocksAddr())
	return &transport{client: client.HTTPClient(), proxyURL: client.ProxyURL(), embedded: embedded}, nil
}

// newPool builds the fetcher pool shared by every site of the run. Its size
// lets every worker of every concurrent site hold a lease.
func newPool(ctx context.Context, cfg *config.Config, tr *transport, logger *slog.Logger) (fetcher.Pool, error) {
	size := cfg.BatchSize * cfg.NumWorkers

	if cfg.Renderer == config.RendererChrome {
		pool, err := fetcher.NewChromePool(ctx, fetcher.ChromeOptions{
			Sessions:     size,
			UserAgents:   cfg.UserAgents,
			ProxyServer:  tr.proxyURL,
			CaptureDelay: cfg.ChromeCaptureDelay,
			MaxBodySize:  cfg.MaxBodySize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start chrome: %w", err)
		}
		return pool, nil
	}

	return fetcher.NewBoundedPool(newHTTPFetcher(cfg, tr, cfg.UserAgents, logger), size), nil
}

func newHTTPFetcher(cfg *config.Config, tr *transport, userAgents []string, logger *slog.Logger) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(
		fetcher.WithHTTPClient(tr.client),
		fetcher.WithUserAgents(userAgents),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithHTTPLogger(logger),
	)
}

// buildSource chains the command-line roots, the list file and the Redis
// list, in that order. The returned func releases the Redis connection.
func buildSource(cfg *config.Config, logger *slog.Logger) (source.URLQueueSource, func(), error) {
	sources := []source.URLQueueSource{source.NewSliceSource(cfg.Roots)}
	closeFn := func() {}

	if cfg.ListFile != "" {
		fileSource, err := source.NewFileSource(cfg.ListFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read list file: %w", err)
		}
		logger.Info("loaded root list", "path", cfg.ListFile, "roots", fileSource.Len())
		sources = append(sources, fileSource)
	}

	if cfg.RedisAddr != "" {
		redisSource, err := source.NewRedisSource(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisKey,
			source.WithRedisLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sources = append(sources, redisSource)
		closeFn = func() {
			_ = redisSource.Close() //nolint:errcheck // Best effort cleanup
		}
	}

	return source.Chain(sources...), closeFn, nil
}

// siteCrawler is a coordinator with a pool of its own, closed once the
// site is done.
type siteCrawler struct {
	*crawler.Coordinator
	pool fetcher.Pool
}

// Run implements pipeline.Crawler.
func (s siteCrawler) Run(ctx context.Context, root string) *model.CrawlResult {
	defer s.pool.Close() //nolint:errcheck // pools only reject further leases
	return s.Coordinator.Run(ctx, root)
}

// newCrawlerFactory returns a factory building one coordinator per root,
// with that site's overrides from the configuration file applied.
func newCrawlerFactory(cfg *config.Config, pool fetcher.Pool, tr *transport, logger *slog.Logger) pipeline.CrawlerFactory {
	oracle := language.NewDetector(language.DefaultMinConfidence)
	probeUA := ""
	if len(cfg.UserAgents) > 0 {
		probeUA = cfg.UserAgents[0]
	}
	filter := linkfilter.NewFilter(linkfilter.NewClassifier(
		linkfilter.WithProbeClient(tr.client),
		linkfilter.WithProbe(cfg.ProbeDownloads),
		linkfilter.WithProbeUserAgent(probeUA),
		linkfilter.WithClassifierLogger(logger),
	))

	return func(root string) pipeline.Crawler {
		domain := linkfilter.RegistrableDomain(root)
		site := cfg.Site(domain)

		opts := []crawler.Option{
			crawler.WithWorkers(cfg.NumWorkers),
			crawler.WithMaxLinks(cfg.MaxLinksPerSite),
			crawler.WithPerPageNewLinkCap(cfg.PerPageNewLinkCap),
			crawler.WithMaxWordsPerPage(cfg.MaxWordsPerPage),
			crawler.WithSiteTimeBudget(cfg.SiteTimeBudget),
			crawler.WithSeedScanTimeBudget(cfg.SeedScanTimeBudget),
			crawler.WithFetchTimeout(cfg.FetchTimeout),
			crawler.WithGracePeriod(cfg.GracePeriod),
			crawler.WithRequestsPerSecond(cfg.RequestsPerSecond),
			crawler.WithOracle(oracle),
			crawler.WithFilter(filter),
			crawler.WithLogger(logger),
		}

		// Later options win, so overrides go last.
		workers := cfg.NumWorkers
		if site.Workers > 0 {
			workers = site.Workers
			opts = append(opts, crawler.WithWorkers(site.Workers))
		}
		if site.MaxLinks > 0 {
			opts = append(opts, crawler.WithMaxLinks(site.MaxLinks))
		}
		if site.SiteTimeBudget > 0 {
			opts = append(opts, crawler.WithSiteTimeBudget(site.SiteTimeBudget))
		}
		if site.RequestsPerSecond > 0 {
			opts = append(opts, crawler.WithRequestsPerSecond(site.RequestsPerSecond))
		}

		if site.UserAgent == "" {
			return crawler.NewCoordinator(pool, opts...)
		}
		if cfg.Renderer != config.RendererHTTP {
			logger.Warn("per-site user agent is only applied with the http renderer", "domain", domain)
			return crawler.NewCoordinator(pool, opts...)
		}
		sitePool := fetcher.NewBoundedPool(newHTTPFetcher(cfg, tr, []string{site.UserAgent}, logger), workers)
		return siteCrawler{Coordinator: crawler.NewCoordinator(sitePool, opts...), pool: sitePool}
	}
}

// writeReport writes the batch summary in the requested format.
func writeReport(cfg *config.Config, stdout io.Writer, summary *model.BatchSummary) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	// A JSON or Markdown file still leaves a text summary on the terminal.
	if cfg.ReportFile != "" && (cfg.JSONReport || cfg.MarkdownReport) {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(stdout))
	}
	_, err := w.Write(summary)
	return err
}
