package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/model"
)

// Renderers select the PageFetcher implementation.
const (
	// RendererHTTP fetches pages with a plain HTTP client.
	RendererHTTP = "http"

	// RendererChrome renders pages in headless Chrome.
	RendererChrome = "chrome"
)

// Default configuration values. Crawl limits mirror the crawler defaults.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawler"

	// DefaultProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultBatchSize is how many roots are crawled at once.
	DefaultBatchSize = 10

	// DefaultTorStartupTimeout bounds bootstrapping the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultChromeCaptureDelay lets scripts run before the DOM is read.
	DefaultChromeCaptureDelay = 500 * time.Millisecond

	// DefaultRedisKey is the Redis list roots are taken from.
	DefaultRedisKey = "sitecrawler:roots"
)

// Config holds every option of a crawl run. It is filled from defaults,
// the optional YAML file and CLI flags, in that order.
type Config struct {
	// NumWorkers is the number of concurrent workers per site.
	NumWorkers int

	// MaxLinksPerSite is the page ceiling per site.
	MaxLinksPerSite int

	// PerPageNewLinkCap is how many new links one page may queue.
	PerPageNewLinkCap int

	// MaxWordsPerPage is how many words of each page are kept.
	MaxWordsPerPage int

	// SiteTimeBudget bounds the crawl of one site.
	SiteTimeBudget time.Duration

	// SeedScanTimeBudget bounds fetching and filtering the root page.
	SeedScanTimeBudget time.Duration

	// FetchTimeout bounds a single page fetch.
	FetchTimeout time.Duration

	// GracePeriod is how long in-flight fetches may outlive the deadline.
	GracePeriod time.Duration

	// BatchSize is how many roots are crawled at once.
	BatchSize int

	// MaxRoots stops the run after this many roots; 0 means no limit.
	MaxRoots int

	// RequestsPerSecond paces requests to each site; 0 disables pacing.
	RequestsPerSecond float64

	// Renderer is RendererHTTP or RendererChrome.
	Renderer string

	// ChromeCaptureDelay is how long Chrome waits after navigation.
	ChromeCaptureDelay time.Duration

	// UserAgents are picked at random per fetcher.
	UserAgents []string

	// MaxBodySize caps the bytes read from one response.
	MaxBodySize int64

	// ProbeDownloads enables HEAD probes for links without a known extension.
	ProbeDownloads bool

	// RetryCodes are root response codes that mark a site for a retry.
	RetryCodes []int

	// LowCountThreshold is the word count below which a crawl is low_count.
	LowCountThreshold int

	// FailWordThreshold is the word count below which a low_count crawl
	// counts as a failure in the success rate.
	FailWordThreshold int

	// DBDir is the directory of the SQLite database.
	DBDir string

	// SaveToDB persists results; when false the batch only classifies.
	SaveToDB bool

	// RedisAddr enables the Redis root source when set.
	RedisAddr string

	// RedisPassword authenticates against Redis.
	RedisPassword string

	// RedisKey is the Redis list roots are taken from.
	RedisKey string

	// ProxyAddress routes fetches through a SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseEmbeddedTor starts a Tor daemon and routes fetches through it.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds bootstrapping the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// InsecureTLS disables certificate verification.
	InsecureTLS bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog writes logs as JSON instead of text.
	JSONLog bool

	// JSONReport selects the JSON batch summary.
	JSONReport bool

	// MarkdownReport selects the Markdown batch summary.
	MarkdownReport bool

	// ReportFile is where the summary goes; empty means stdout.
	ReportFile string

	// ConfigFilePath is an explicit YAML file path.
	ConfigFilePath string

	// SiteConfigs holds the per-site overrides from the YAML file.
	SiteConfigs *File

	// Roots are the root URLs given on the command line.
	Roots []string

	// ListFile is a file with one root URL per line.
	ListFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		NumWorkers:         crawler.DefaultWorkers,
		MaxLinksPerSite:    crawler.DefaultMaxLinks,
		PerPageNewLinkCap:  crawler.DefaultPerPageNewLinkCap,
		MaxWordsPerPage:    crawler.DefaultMaxWordsPerPage,
		SiteTimeBudget:     crawler.DefaultSiteTimeBudget,
		SeedScanTimeBudget: crawler.DefaultSeedScanTimeBudget,
		FetchTimeout:       crawler.DefaultFetchTimeout,
		GracePeriod:        crawler.DefaultGracePeriod,
		BatchSize:          DefaultBatchSize,
		Renderer:           RendererHTTP,
		ChromeCaptureDelay: DefaultChromeCaptureDelay,
		UserAgents:         slices.Clone(fetcher.DefaultUserAgents),
		MaxBodySize:        fetcher.DefaultMaxBodySize,
		ProbeDownloads:     true,
		RetryCodes:         slices.Clone(model.DefaultRetryCodes),
		LowCountThreshold:  model.DefaultLowCountThreshold,
		FailWordThreshold:  model.DefaultFailWordThreshold,
		DBDir:              XDGDataDir(),
		SaveToDB:           true,
		RedisKey:           DefaultRedisKey,
		TorStartupTimeout:  DefaultTorStartupTimeout,
	}
}

// Thresholds returns the outcome classification thresholds.
func (c *Config) Thresholds() model.Thresholds {
	return model.Thresholds{
		LowCount:   c.LowCountThreshold,
		FailWords:  c.FailWordThreshold,
		RetryCodes: slices.Clone(c.RetryCodes),
	}
}

// Site returns the overrides for domain, or the zero SiteConfig when no
// file was loaded.
func (c *Config) Site(domain string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(domain)
}

// XDGDataDir returns the data directory, ~/.local/share/sitecrawler on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, ~/.config/sitecrawler on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 && c.ListFile == "" && c.RedisAddr == "" {
		return ErrNoRoot
	}
	if c.NumWorkers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxLinksPerSite <= 0 {
		return ErrInvalidMaxLinks
	}
	if c.PerPageNewLinkCap < 0 {
		return ErrInvalidLinkCap
	}
	if c.MaxWordsPerPage <= 0 {
		return ErrInvalidMaxWords
	}
	if c.SiteTimeBudget <= 0 || c.SeedScanTimeBudget <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxRoots < 0 {
		return ErrInvalidMaxRoots
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.Renderer != RendererHTTP && c.Renderer != RendererChrome {
		return ErrUnknownRenderer
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.FailWordThreshold < 0 || c.FailWordThreshold > c.LowCountThreshold {
		return ErrInvalidThresholds
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ProxyAddress != "" && c.UseEmbeddedTor {
		return ErrConflictingProxy
	}
	return nil
}
