package crawler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/language"
	"github.com/nao1215/sitecrawler/internal/linkfilter"
	"github.com/nao1215/sitecrawler/internal/model"
)

// generateSeeds fetches the root page and returns the links to seed the
// queue with. ok is false when the crawl should stop here; result and st
// then already describe why.
func (c *Coordinator) generateSeeds(ctx context.Context, st *crawlState, result *model.CrawlResult, logger *slog.Logger) (links []string, ok bool) {
	seedCtx, cancel := context.WithTimeout(ctx, c.seedScanTimeBudget)
	defer cancel()

	page, err := c.fetchRoot(seedCtx, st.root)
	if err != nil {
		result.ResponseCode = fetcher.StatusCode(err)
		if isDeadline(seedCtx, err) {
			logger.Warn("seed scan timed out", "budget", c.seedScanTimeBudget)
			st.timedOut = true
			return nil, false
		}
		logger.Warn("seed scan failed", "error", err)
		result.SeedError = err.Error()
		return nil, false
	}
	result.ResponseCode = page.StatusCode

	resolved := page.ResolvedURL
	if resolved == "" {
		resolved = st.root
	}
	home := linkfilter.RegistrableDomain(resolved)
	st.homeDomain = home

	if !language.IsEnglish(c.oracle, page.Lang, c.sample(page.Text)) {
		logger.Info("skipping non-English site", "home_domain", home, "lang", page.Lang)
		st.englishOK = false
		return nil, false
	}

	if rootDomain := linkfilter.RegistrableDomain(st.root); home != rootDomain {
		logger.Info("root redirected", "from", rootDomain, "to", home)
		st.redirected = true
	}

	candidates := c.filter.Candidates(seedCtx, page.Hrefs, home)
	if isDeadline(seedCtx, seedCtx.Err()) {
		logger.Warn("seed scan timed out while filtering links", "budget", c.seedScanTimeBudget)
		st.timedOut = true
		return nil, false
	}

	links = make([]string, 0, len(candidates)+1)
	links = append(links, st.root)
	for _, link := range candidates {
		if link != st.root {
			links = append(links, link)
		}
	}
	st.originalLinkCount = len(links)

	if len(links) == 1 {
		logger.Warn("root page has no followable links")
		result.NeedsInvestigation = true
		return nil, false
	}
	if len(links) > c.maxLinks {
		links = links[:c.maxLinks]
	}
	return links, true
}

// fetchRoot leases a fetcher for the seed scan and loads the root page.
func (c *Coordinator) fetchRoot(ctx context.Context, root string) (*fetcher.Page, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return lease.Fetch(ctx, root, c.seedScanTimeBudget)
}

// sample returns the leading words of text for language detection.
func (c *Coordinator) sample(text string) string {
	fields := strings.Fields(text)
	if len(fields) > c.maxWordsPerPage {
		fields = fields[:c.maxWordsPerPage]
	}
	return strings.Join(fields, " ")
}

// isDeadline reports whether err or ctx signals an expired deadline.
func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
