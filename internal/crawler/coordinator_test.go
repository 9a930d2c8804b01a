package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/fetcher"
)

// fakePage is one page of a fakeSite.
type fakePage struct {
	text     string
	links    []string
	lang     string
	resolved string
	err      error
}

// fakeSite serves pages from memory and counts fetches per URL.
type fakeSite struct {
	pages map[string]fakePage
	delay time.Duration

	mu   sync.Mutex
	hits map[string]int
}

func newFakeSite(pages map[string]fakePage) *fakeSite {
	return &fakeSite{pages: pages, hits: make(map[string]int)}
}

func (s *fakeSite) Fetch(ctx context.Context, url string, timeout time.Duration) (*fetcher.Page, error) {
	s.mu.Lock()
	s.hits[url]++
	s.mu.Unlock()

	if s.delay > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p, ok := s.pages[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, Code: 404}
	}
	if p.err != nil {
		return nil, p.err
	}
	resolved := p.resolved
	if resolved == "" {
		resolved = url
	}
	return &fetcher.Page{
		URL:         url,
		ResolvedURL: resolved,
		StatusCode:  200,
		Text:        p.text,
		Hrefs:       p.links,
		Lang:        p.lang,
	}, nil
}

func (s *fakeSite) hitCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.hits))
	for k, v := range s.hits {
		out[k] = v
	}
	return out
}

type fixedOracle string

func (f fixedOracle) Detect(string) string { return string(f) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func newTestCoordinator(site *fakeSite, opts ...Option) (*Coordinator, *fetcher.BoundedPool) {
	pool := fetcher.NewBoundedPool(site, 16)
	base := []Option{
		WithOracle(fixedOracle("en")),
		WithLogger(quietLogger()),
		WithFetchTimeout(time.Second),
		WithSeedScanTimeBudget(time.Second),
		WithSiteTimeBudget(5 * time.Second),
		WithGracePeriod(50 * time.Millisecond),
	}
	return NewCoordinator(pool, append(base, opts...)...), pool
}

func TestCoordinator_CrawlsWholeSite(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root: {text: words(10), links: []string{
			root + "/a", root + "/b/", root + "/a#frag", "https://other.com/x", "mailto:x@example.com",
		}},
		root + "/a":      {text: words(5), links: []string{root + "/a/deep", root + "/report.pdf", root + "/login"}},
		root + "/b":      {text: words(7), links: []string{root}},
		root + "/a/deep": {text: words(3)},
	})

	c, pool := newTestCoordinator(site, WithWorkers(3))
	result := c.Run(context.Background(), root)

	if !result.Complete || result.TimedOut {
		t.Fatalf("Complete = %v, TimedOut = %v", result.Complete, result.TimedOut)
	}
	if result.PagesVisited != 4 {
		t.Errorf("PagesVisited = %d, want 4 (visited %v)", result.PagesVisited, result.VisitedLinks)
	}
	if result.TotalWords != 25 {
		t.Errorf("TotalWords = %d, want 25", result.TotalWords)
	}
	if result.OriginalLinkCount != 3 {
		t.Errorf("OriginalLinkCount = %d, want 3", result.OriginalLinkCount)
	}
	if result.NewLinkCount != 1 {
		t.Errorf("NewLinkCount = %d, want 1", result.NewLinkCount)
	}
	if result.HomeDomain != "example.com" || result.Redirected || !result.EnglishOK {
		t.Errorf("HomeDomain = %q, Redirected = %v, EnglishOK = %v", result.HomeDomain, result.Redirected, result.EnglishOK)
	}
	if len(result.VisitedLinks) != result.PagesVisited || len(result.Pages) != result.PagesVisited {
		t.Errorf("visited %d links and %d page texts for %d pages", len(result.VisitedLinks), len(result.Pages), result.PagesVisited)
	}
	if result.ContentDigest == "" {
		t.Error("ContentDigest not computed")
	}
	if len(result.Workers) != 3 {
		t.Errorf("Workers = %d summaries, want 3", len(result.Workers))
	}
	for _, w := range result.Workers {
		if w.State != StateStopped.String() {
			t.Errorf("worker %d ended in state %q", w.ID, w.State)
		}
	}

	// The root is fetched once for the seed scan and once by a worker.
	for url, n := range site.hitCounts() {
		want := 1
		if url == root {
			want = 2
		}
		if n != want {
			t.Errorf("%s fetched %d times, want %d", url, n, want)
		}
	}
	if pool.InUse() != 0 {
		t.Errorf("pool has %d leases outstanding", pool.InUse())
	}
}

func TestCoordinator_NonEnglishRoot(t *testing.T) {
	t.Parallel()

	const root = "https://exemple.fr"
	site := newFakeSite(map[string]fakePage{
		root: {text: "bonjour tout le monde", links: []string{root + "/a"}},
	})

	c, _ := newTestCoordinator(site, WithOracle(fixedOracle("fr")))
	result := c.Run(context.Background(), root)

	if result.EnglishOK {
		t.Error("EnglishOK = true for a French site")
	}
	if result.PagesVisited != 0 || len(result.VisitedLinks) != 0 {
		t.Errorf("PagesVisited = %d, want 0", result.PagesVisited)
	}
	if result.HomeDomain != "exemple.fr" {
		t.Errorf("HomeDomain = %q, want exemple.fr", result.HomeDomain)
	}
	if hits := site.hitCounts()[root+"/a"]; hits != 0 {
		t.Errorf("linked page fetched %d times", hits)
	}
}

func TestCoordinator_DeclaredLanguageWins(t *testing.T) {
	t.Parallel()

	const root = "https://example.de"
	site := newFakeSite(map[string]fakePage{
		root: {text: "hello there", lang: "de-DE", links: []string{root + "/a"}},
	})

	c, _ := newTestCoordinator(site, WithOracle(fixedOracle("en")))
	if result := c.Run(context.Background(), root); result.EnglishOK {
		t.Error("declared German page crawled as English")
	}
}

func TestCoordinator_NoInternalLinks(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root: {text: words(40), links: []string{"https://elsewhere.org/"}},
	})

	c, _ := newTestCoordinator(site)
	result := c.Run(context.Background(), root)

	if result.PagesVisited != 0 {
		t.Errorf("PagesVisited = %d, want 0", result.PagesVisited)
	}
	if !result.NeedsInvestigation {
		t.Error("NeedsInvestigation = false")
	}
	if result.SeedError != "" {
		t.Errorf("SeedError = %q", result.SeedError)
	}
}

func TestCoordinator_SeedFailure(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com": {err: &fetcher.StatusError{URL: "https://example.com", Code: 503}},
	})

	c, pool := newTestCoordinator(site)
	result := c.Run(context.Background(), "https://example.com/")

	if result.SeedError == "" {
		t.Error("SeedError empty")
	}
	if result.ResponseCode != 503 {
		t.Errorf("ResponseCode = %d, want 503", result.ResponseCode)
	}
	if result.PagesVisited != 0 {
		t.Errorf("PagesVisited = %d", result.PagesVisited)
	}
	if pool.InUse() != 0 {
		t.Errorf("seed lease not released")
	}
}

func TestCoordinator_SeedTimeout(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{"https://example.com": {text: words(5)}})
	site.delay = 2 * time.Second

	c, pool := newTestCoordinator(site, WithSeedScanTimeBudget(50*time.Millisecond))
	start := time.Now()
	result := c.Run(context.Background(), "https://example.com")

	if !result.TimedOut {
		t.Error("TimedOut = false")
	}
	if result.PagesVisited != 0 {
		t.Errorf("PagesVisited = %d", result.PagesVisited)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %v despite a 50ms seed budget", elapsed)
	}
	if pool.InUse() != 0 {
		t.Errorf("seed lease not released")
	}
}

func TestCoordinator_Redirect(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://old.com": {
			text:     words(5),
			resolved: "https://www.new.com/home",
			links:    []string{"https://www.new.com/a", "https://old.com/b"},
		},
		"https://www.new.com/a": {text: words(2)},
	})

	c, _ := newTestCoordinator(site)
	result := c.Run(context.Background(), "https://old.com")

	if !result.Redirected {
		t.Error("Redirected = false")
	}
	if result.HomeDomain != "new.com" {
		t.Errorf("HomeDomain = %q, want new.com", result.HomeDomain)
	}
	if hits := site.hitCounts()["https://old.com/b"]; hits != 0 {
		t.Errorf("off-domain link fetched %d times", hits)
	}
	if hits := site.hitCounts()["https://www.new.com/a"]; hits != 1 {
		t.Errorf("redirect-domain link fetched %d times", hits)
	}
}

func TestCoordinator_SiteTimeout(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	pages := map[string]fakePage{}
	var rootLinks []string
	for i := range 200 {
		u := fmt.Sprintf("%s/p%d", root, i)
		rootLinks = append(rootLinks, u)
		pages[u] = fakePage{text: words(4)}
	}
	pages[root] = fakePage{text: words(4), links: rootLinks}

	site := newFakeSite(pages)
	site.delay = 40 * time.Millisecond

	c, pool := newTestCoordinator(site,
		WithWorkers(2),
		WithMaxLinks(500),
		WithSiteTimeBudget(300*time.Millisecond),
		WithGracePeriod(10*time.Millisecond),
	)

	start := time.Now()
	result := c.Run(context.Background(), root)
	elapsed := time.Since(start)

	if !result.TimedOut {
		t.Fatal("TimedOut = false")
	}
	if result.Complete {
		t.Error("Complete = true on a timed out crawl")
	}
	if result.PagesVisited == 0 || result.PagesVisited >= 200 {
		t.Errorf("PagesVisited = %d, want a partial crawl", result.PagesVisited)
	}
	if result.TotalWords != 4*result.PagesVisited {
		t.Errorf("TotalWords = %d for %d pages", result.TotalWords, result.PagesVisited)
	}
	if len(result.VisitedLinks) != result.PagesVisited {
		t.Errorf("VisitedLinks = %d for %d pages", len(result.VisitedLinks), result.PagesVisited)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run took %v, budget not enforced", elapsed)
	}
	if pool.InUse() != 0 {
		t.Errorf("pool has %d leases outstanding after timeout", pool.InUse())
	}
}

func TestCoordinator_ContextCanceled(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	pages := map[string]fakePage{}
	var rootLinks []string
	for i := range 50 {
		u := fmt.Sprintf("%s/p%d", root, i)
		rootLinks = append(rootLinks, u)
		pages[u] = fakePage{text: words(1)}
	}
	pages[root] = fakePage{text: words(1), links: rootLinks}
	site := newFakeSite(pages)

	ctx, cancel := context.WithCancel(context.Background())
	site.delay = 20 * time.Millisecond
	time.AfterFunc(150*time.Millisecond, cancel)

	c, pool := newTestCoordinator(site, WithWorkers(2))
	result := c.Run(ctx, root)

	if result.TimedOut {
		t.Error("cancellation reported as timeout")
	}
	if result.Complete {
		t.Error("Complete = true after cancellation")
	}
	if pool.InUse() != 0 {
		t.Errorf("pool has %d leases outstanding after cancel", pool.InUse())
	}
}

func TestCoordinator_ConcurrentClaimsAreUnique(t *testing.T) {
	t.Parallel()

	// A binary tree of pages: every page links to its two children and back
	// to the root, so workers constantly rediscover known links.
	const root = "https://example.com"
	pages := map[string]fakePage{}
	var build func(path string, depth int)
	build = func(path string, depth int) {
		u := root + path
		p := fakePage{text: words(2)}
		if depth < 6 {
			p.links = []string{u + "/l", u + "/r", root, u}
			build(path+"/l", depth+1)
			build(path+"/r", depth+1)
		}
		pages[u] = p
	}
	build("", 0)

	site := newFakeSite(pages)
	c, _ := newTestCoordinator(site,
		WithWorkers(8),
		WithMaxLinks(1000),
		WithPerPageNewLinkCap(10),
	)
	result := c.Run(context.Background(), root)

	if !result.Complete {
		t.Fatal("crawl did not complete")
	}
	if result.PagesVisited != len(pages) {
		t.Errorf("PagesVisited = %d, want %d", result.PagesVisited, len(pages))
	}

	seen := make(map[string]bool)
	for _, u := range result.VisitedLinks {
		if seen[u] {
			t.Errorf("%s visited twice", u)
		}
		seen[u] = true
	}
	for u := range pages {
		if !seen[u] {
			t.Errorf("%s never visited", u)
		}
	}
	for u, n := range site.hitCounts() {
		if u != root && n != 1 {
			t.Errorf("%s fetched %d times", u, n)
		}
	}
}

func TestCoordinator_PerPageNewLinkCap(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	pages := map[string]fakePage{
		root:          {text: words(1), links: []string{root + "/hub"}},
		root + "/hub": {},
	}
	var hubLinks []string
	for i := range 30 {
		u := fmt.Sprintf("%s/hub/c%d", root, i)
		hubLinks = append(hubLinks, u)
		pages[u] = fakePage{text: words(1)}
	}
	hub := pages[root+"/hub"]
	hub.links = hubLinks
	hub.text = words(1)
	pages[root+"/hub"] = hub

	site := newFakeSite(pages)
	c, _ := newTestCoordinator(site, WithWorkers(2), WithPerPageNewLinkCap(5))
	result := c.Run(context.Background(), root)

	if result.NewLinkCount != 5 {
		t.Errorf("NewLinkCount = %d, want 5", result.NewLinkCount)
	}
	if result.PagesVisited != 7 {
		t.Errorf("PagesVisited = %d, want 7", result.PagesVisited)
	}
}

func TestCoordinator_MaxLinks(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	pages := map[string]fakePage{}
	var rootLinks []string
	for i := range 10 {
		u := fmt.Sprintf("%s/p%d", root, i)
		rootLinks = append(rootLinks, u)
		pages[u] = fakePage{text: words(1), links: []string{u + "/child"}}
		pages[u+"/child"] = fakePage{text: words(1)}
	}
	pages[root] = fakePage{text: words(1), links: rootLinks}

	site := newFakeSite(pages)
	c, _ := newTestCoordinator(site, WithWorkers(2), WithMaxLinks(5))
	result := c.Run(context.Background(), root)

	if result.OriginalLinkCount != 11 {
		t.Errorf("OriginalLinkCount = %d, want 11", result.OriginalLinkCount)
	}
	if result.PagesVisited != 5 {
		t.Errorf("PagesVisited = %d, want 5", result.PagesVisited)
	}
	if result.NewLinkCount != 0 {
		t.Errorf("NewLinkCount = %d, want 0 once the ceiling is reached", result.NewLinkCount)
	}
}

func TestCoordinator_VisitOrder(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root:                {text: words(1), links: []string{root + "/x", root + "/y"}},
		root + "/x":         {text: words(1), links: []string{root + "/x/deep/er", root + "/x/deep"}},
		root + "/y":         {text: words(1)},
		root + "/x/deep":    {text: words(1)},
		root + "/x/deep/er": {text: words(1)},
	})

	c, _ := newTestCoordinator(site, WithWorkers(1))
	result := c.Run(context.Background(), root)

	want := []string{root, root + "/x", root + "/y", root + "/x/deep", root + "/x/deep/er"}
	if strings.Join(result.VisitedLinks, " ") != strings.Join(want, " ") {
		t.Errorf("VisitedLinks = %v, want %v", result.VisitedLinks, want)
	}
}

func TestCoordinator_FailedPagesCountAsVisited(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root:             {text: words(3), links: []string{root + "/ok", root + "/broken", root + "/gone"}},
		root + "/ok":     {text: words(2)},
		root + "/broken": {err: errors.New("connection reset")},
	})

	c, _ := newTestCoordinator(site, WithWorkers(2))
	result := c.Run(context.Background(), root)

	if result.PagesVisited != 4 {
		t.Errorf("PagesVisited = %d, want 4", result.PagesVisited)
	}
	if result.TotalWords != 5 {
		t.Errorf("TotalWords = %d, want 5", result.TotalWords)
	}
	failed := 0
	for _, w := range result.Workers {
		failed += w.Failed
	}
	if failed != 2 {
		t.Errorf("workers reported %d failures, want 2", failed)
	}
}

func TestCoordinator_MaxWordsPerPage(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root:        {text: words(50), links: []string{root + "/a"}},
		root + "/a": {text: words(80)},
	})

	c, _ := newTestCoordinator(site, WithMaxWordsPerPage(30))
	result := c.Run(context.Background(), root)

	if result.TotalWords != 60 {
		t.Errorf("TotalWords = %d, want 60", result.TotalWords)
	}
	for _, p := range result.Pages {
		if p.Words != 30 || len(strings.Fields(p.Text)) != 30 {
			t.Errorf("page %s kept %d words", p.URL, p.Words)
		}
	}
}

func TestCoordinator_RecoversPanics(t *testing.T) {
	t.Parallel()

	panicky := fetcher.FetchFunc(func(context.Context, string, time.Duration) (*fetcher.Page, error) {
		panic("renderer crashed")
	})
	c := NewCoordinator(fetcher.Unpooled(panicky), WithLogger(quietLogger()))
	result := c.Run(context.Background(), "https://example.com")

	if !strings.Contains(result.SeedError, "renderer crashed") {
		t.Errorf("SeedError = %q", result.SeedError)
	}
}

// hubSite is a root linking to hubs, each of which links to many children.
func hubSite(root string, hubs, children int) map[string]fakePage {
	pages := map[string]fakePage{}
	var hubLinks []string
	for h := range hubs {
		hub := fmt.Sprintf("%s/hub%d", root, h)
		hubLinks = append(hubLinks, hub)
		var childLinks []string
		for c := range children {
			child := fmt.Sprintf("%s/c%d", hub, c)
			childLinks = append(childLinks, child)
			pages[child] = fakePage{text: words(1)}
		}
		pages[hub] = fakePage{text: words(1), links: childLinks}
	}
	pages[root] = fakePage{text: words(1), links: hubLinks}
	return pages
}

func TestCoordinator_LinkCeiling(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	tests := []struct {
		name    string
		workers int
		linkCap int
		delay   time.Duration
	}{
		{name: "concurrent discovery", workers: 5, linkCap: 20, delay: 20 * time.Millisecond},
		{name: "cap above the slack", workers: 1, linkCap: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			const maxLinks = 10
			site := newFakeSite(hubSite(root, 4, 60))
			site.delay = tt.delay
			c, _ := newTestCoordinator(site,
				WithWorkers(tt.workers),
				WithMaxLinks(maxLinks),
				WithPerPageNewLinkCap(tt.linkCap),
			)
			result := c.Run(context.Background(), root)

			if !result.Complete {
				t.Fatalf("Complete = false (timed out %v)", result.TimedOut)
			}
			if result.PagesVisited > maxLinks {
				t.Errorf("PagesVisited = %d, want at most %d", result.PagesVisited, maxLinks)
			}
			if got := result.OriginalLinkCount + result.NewLinkCount; got > maxLinks {
				t.Errorf("gathered %d links (original %d, new %d), want at most %d",
					got, result.OriginalLinkCount, result.NewLinkCount, maxLinks)
			}
		})
	}
}

// seedOnlyPool hands out a single lease for the seed scan; every later
// Acquire waits until its context ends, like a pool exhausted by other sites.
type seedOnlyPool struct {
	site   *fakeSite
	leased atomic.Bool
}

func (p *seedOnlyPool) Acquire(ctx context.Context) (fetcher.Lease, error) {
	if p.leased.CompareAndSwap(false, true) {
		return fetcher.Unpooled(p.site).Acquire(ctx)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *seedOnlyPool) Close() error { return nil }

func TestCoordinator_LeaseWaitExhaustsBudget(t *testing.T) {
	t.Parallel()

	const root = "https://example.com"
	site := newFakeSite(map[string]fakePage{
		root:        {text: words(3), links: []string{root + "/a", root + "/b"}},
		root + "/a": {text: words(1)},
		root + "/b": {text: words(1)},
	})

	c := NewCoordinator(&seedOnlyPool{site: site},
		WithOracle(fixedOracle("en")),
		WithLogger(quietLogger()),
		WithWorkers(2),
		WithSeedScanTimeBudget(time.Second),
		WithSiteTimeBudget(200*time.Millisecond),
		WithGracePeriod(50*time.Millisecond),
	)
	result := c.Run(context.Background(), root)

	if !result.TimedOut {
		t.Error("TimedOut = false, want true when no worker could lease a fetcher before the deadline")
	}
	if result.Complete {
		t.Error("Complete = true with pages still queued")
	}
	if result.PagesVisited != 0 {
		t.Errorf("PagesVisited = %d, want 0", result.PagesVisited)
	}
}
