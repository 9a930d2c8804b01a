package linkfilter

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds a single download probe.
const DefaultProbeTimeout = 5 * time.Second

// maxExtensionLength is the longest suffix treated as a file extension.
// Longer dotted suffixes ("/news.latest-stories") are left to the probe.
const maxExtensionLength = 6

// pageExtensions are file extensions served as HTML documents.
var pageExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
	".shtml": true,
	".php":   true,
	".asp":   true,
	".aspx":  true,
	".jsp":   true,
}

// loginMarkers mark paths that lead to an authentication form.
var loginMarkers = []string{"login", "log-in", "signin", "sign-in", "logon"}

// Classification describes what a link points to.
type Classification struct {
	// IsDownload is true when the link serves a file rather than a page.
	IsDownload bool
	// IsLoginPage is true when the link leads to a login form.
	IsLoginPage bool
}

// LinkClassifier classifies links before they are queued.
type LinkClassifier interface {
	Classify(ctx context.Context, rawURL string) Classification
}

// Classifier is the default LinkClassifier.
// Download detection looks at the file extension first and falls back to a
// HEAD probe for extensionless paths when probing is enabled.
type Classifier struct {
	// client sends HEAD probes.
	client *http.Client

	// probe enables network probes for ambiguous links.
	probe bool

	// probeTimeout bounds each probe.
	probeTimeout time.Duration

	// userAgent is sent with probes when set.
	userAgent string

	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]bool
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithProbeClient sets the HTTP client used for download probes.
func WithProbeClient(client *http.Client) ClassifierOption {
	return func(c *Classifier) {
		c.client = client
	}
}

// WithProbe enables or disables network probes.
func WithProbe(enabled bool) ClassifierOption {
	return func(c *Classifier) {
		c.probe = enabled
	}
}

// WithProbeTimeout sets the per-probe timeout.
func WithProbeTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithProbeUserAgent sets the User-Agent header sent with probes.
func WithProbeUserAgent(ua string) ClassifierOption {
	return func(c *Classifier) {
		c.userAgent = ua
	}
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier creates a Classifier. Probing is enabled by default.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		client:       http.DefaultClient,
		probe:        true,
		probeTimeout: DefaultProbeTimeout,
		logger:       slog.Default(),
		cache:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify reports whether rawURL is a download or a login page.
// Login detection is purely lexical. A login link is not probed.
func (c *Classifier) Classify(ctx context.Context, rawURL string) Classification {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Classification{IsDownload: true}
	}

	if IsLoginPath(u) {
		return Classification{IsLoginPage: true}
	}

	download, ambiguous := extensionVerdict(u.Path)
	if !ambiguous {
		return Classification{IsDownload: download}
	}
	if !c.probe {
		return Classification{}
	}
	return Classification{IsDownload: c.probeDownload(ctx, rawURL)}
}

// IsLoginPath reports whether the host, path or query of u mentions a
// login form. Hosts count too, so login.example.com is rejected even
// though it shares the home domain.
func IsLoginPath(u *url.URL) bool {
	target := strings.ToLower(u.Hostname() + u.Path + "?" + u.RawQuery)
	for _, m := range loginMarkers {
		if strings.Contains(target, m) {
			return true
		}
	}
	return false
}

// extensionVerdict decides a download from the path's extension alone.
// ambiguous is true when the extension says nothing either way.
func extensionVerdict(p string) (download, ambiguous bool) {
	ext := strings.ToLower(path.Ext(strings.TrimRight(p, "/")))
	if ext == "" || len(ext) > maxExtensionLength || !isAlnum(ext[1:]) {
		return false, true
	}
	return !pageExtensions[ext], false
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// probeDownload sends a HEAD request and inspects the response headers.
// Probe failures count as "not a download"; the page fetch will sort it out.
func (c *Classifier) probeDownload(ctx context.Context, rawURL string) bool {
	c.mu.Lock()
	if v, ok := c.cache[rawURL]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("download probe failed", "url", rawURL, "error", err)
		return false
	}
	_ = resp.Body.Close() //nolint:errcheck // HEAD response has no body

	download := IsDownloadResponse(resp.Header)

	c.mu.Lock()
	c.cache[rawURL] = download
	c.mu.Unlock()

	return download
}

// IsDownloadResponse reports whether response headers describe a file download.
func IsDownloadResponse(h http.Header) bool {
	if strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment") {
		return true
	}

	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}

	switch {
	case mediaType == "application/octet-stream",
		mediaType == "application/pdf",
		mediaType == "application/zip",
		strings.HasPrefix(mediaType, "application/x-"),
		strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "font/"):
		return true
	}
	return false
}
