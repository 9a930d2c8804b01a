// Package fetcher loads pages for the crawler.
//
// # Components
//
//   - PageFetcher: the interface the crawler depends on
//   - HTTPFetcher: plain HTTP GET, parsed with golang.org/x/net/html
//   - ChromeFetcher: headless Chrome through chromedp for script-heavy sites
//   - Pool: bounded leases on fetchers, shared across concurrent site crawls
//   - Limiter: per-site request rate
//
// Both fetchers reduce a page to its visible text, the absolute hrefs it
// links to, the URL it finally resolved to, and the declared document
// language. Markup, scripts and styles are discarded.
//
// # Usage
//
//	f := fetcher.NewHTTPFetcher(fetcher.WithUserAgents(uas))
//	pool := fetcher.NewBoundedPool(f, 8)
//	lease, err := pool.Acquire(ctx)
//	defer lease.Release()
//	page, err := lease.Fetch(ctx, "https://example.com", 30*time.Second)
package fetcher
