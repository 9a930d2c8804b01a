package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// HTTPFetcher fetches pages with a plain HTTP client. It does not execute
// scripts.
type HTTPFetcher struct {
	// client is the HTTP client; it may route through a proxy.
	client *http.Client

	// userAgents are rotated across requests.
	userAgents []string

	// maxBodySize limits the bytes read from a response body.
	maxBodySize int64

	logger *slog.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgents sets the User-Agent strings to rotate through.
func WithUserAgents(uas []string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgents = uas
	}
}

// WithMaxBodySize sets the response body limit. Non-positive sizes keep the default.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{},
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs pageURL and reduces the HTML response to a Page.
// Responses with status 400 or above yield a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (*Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", pickUserAgent(f.userAgents))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, ErrNotHTML)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", pageURL, err)
	}

	resolved := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		resolved = resp.Request.URL.String()
	}

	page, err := reduce(pageURL, resolved, body)
	if err != nil {
		return nil, err
	}
	page.StatusCode = resp.StatusCode

	f.logger.Debug("fetched page",
		"url", pageURL,
		"resolved", resolved,
		"status", resp.StatusCode,
		"bytes", len(body),
		"links", len(page.Hrefs),
	)
	return page, nil
}

// reduce parses an HTML body into a Page. Links resolve against resolvedURL.
func reduce(pageURL, resolvedURL string, body []byte) (*Page, error) {
	parser, err := NewParser(resolvedURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", resolvedURL, err)
	}
	doc, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
	}
	return &Page{
		URL:         pageURL,
		ResolvedURL: resolvedURL,
		Text:        doc.Text,
		Hrefs:       doc.Hrefs,
		Lang:        doc.Lang,
		Title:       doc.Title,
	}, nil
}

// isHTML reports whether a Content-Type header denotes HTML. A missing
// header is accepted.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
