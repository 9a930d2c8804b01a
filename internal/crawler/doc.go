// Package crawler crawls one website from a root URL with a pool of workers.
//
// # Architecture
//
// A Coordinator owns the crawl of a single root. It fetches the root page
// under the seed-scan budget, decides whether the site is worth crawling
// (English, has internal links), and seeds a priority queue with the links
// found there. It then starts a fixed number of workers and a deadline
// watchdog.
//
// Workers loop over claim, fetch, filter and commit. Claiming and committing
// happen under the crawl's single mutex; fetching and link filtering happen
// outside it. A worker that finds the queue empty while others are still
// fetching parks on a condition variable instead of exiting, because those
// fetches may still discover links. The crawl is complete only when the
// queue is empty and no worker holds a claimed page.
//
// # Cancellation
//
// When the site budget runs out the coordinator sets an abort flag that
// workers check before each claim and before each commit. In-flight
// fetches get a grace period; after that their context is canceled. Pages
// that finish after the deadline are discarded, so the result reflects
// exactly what was committed in time.
//
// # Priority
//
// The root is fetched first, then the root's links in discovery order.
// Links found later are scored by current queue size plus 100 per path
// segment, which keeps shallow pages ahead of deep ones.
//
// # Usage
//
//	c := crawler.NewCoordinator(pool, crawler.WithWorkers(4))
//	result := c.Run(ctx, "https://example.com")
package crawler
