package fetcher

import (
	"context"
	"time"
)

// Page is what the crawler keeps of a fetched document.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// ResolvedURL is the URL after redirects. It decides the home domain
	// of a crawl when the root redirects elsewhere.
	ResolvedURL string

	// StatusCode is the HTTP status of the final response, or 0 when the
	// fetcher cannot observe it.
	StatusCode int

	// Text is the visible text of the document, whitespace-collapsed.
	Text string

	// Hrefs are the absolute link targets found in the document, in
	// document order. They are not normalized or filtered.
	Hrefs []string

	// Lang is the value of the <html lang> attribute, if any.
	Lang string

	// Title is the document title.
	Title string
}

// PageFetcher retrieves and reduces a single page.
// Fetch must give up once timeout elapses or ctx is done.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error)
}
