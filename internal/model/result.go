package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// CrawlResult is the immutable outcome of crawling one root URL.
// It is produced once by the crawl coordinator and never modified after.
type CrawlResult struct {
	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// HomeDomain is the registrable domain that bounded the crawl. When the
	// root redirected, this is the domain it redirected to.
	HomeDomain string `json:"home_domain"`

	// Redirected is true when the root resolved to a different registrable domain.
	Redirected bool `json:"redirected"`

	// EnglishOK is false when the root page was detected as non-English;
	// such sites are not crawled.
	EnglishOK bool `json:"english_ok"`

	// TimedOut is true when the seed scan or the site budget ran out.
	TimedOut bool `json:"timed_out"`

	// Complete is true when every queued link was fetched before the deadline.
	Complete bool `json:"complete"`

	// NeedsInvestigation flags roots whose landing page offered no
	// followable links.
	NeedsInvestigation bool `json:"needs_investigation,omitempty"`

	// SeedError holds the reason seed generation failed, if it did.
	SeedError string `json:"seed_error,omitempty"`

	// ResponseCode is the HTTP status of the root fetch, 0 when unknown.
	ResponseCode int `json:"response_code,omitempty"`

	// TotalWords is the sum of the (truncated) word counts of all visited pages.
	TotalWords int `json:"total_words"`

	// PagesVisited is the number of pages whose results were committed.
	PagesVisited int `json:"pages_visited"`

	// OriginalLinkCount is the number of distinct links found on the root
	// page, the root included, before truncation.
	OriginalLinkCount int `json:"original_link_count"`

	// NewLinkCount is the number of links discovered and queued by workers.
	NewLinkCount int `json:"new_link_count"`

	// VisitedLinks lists visited pages in commit order.
	VisitedLinks []string `json:"visited_links"`

	// Pages holds the text of each visited page, in commit order.
	Pages []PageText `json:"pages"`

	// Workers summarizes each worker of the crawl.
	Workers []WorkerSummary `json:"workers,omitempty"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time the crawl took.
	Duration time.Duration `json:"duration"`

	// ContentDigest is a SHA3-256 digest of the visited pages' text, used to
	// tell whether a site changed between runs.
	ContentDigest string `json:"content_digest,omitempty"`
}

// PageText is the text extracted from one visited page.
type PageText struct {
	URL   string `json:"url"`
	Words int    `json:"words"`
	Text  string `json:"text"`
}

// WorkerSummary describes how one crawl worker ended.
type WorkerSummary struct {
	ID      int    `json:"id"`
	State   string `json:"state"`
	Fetched int    `json:"fetched"`
	Failed  int    `json:"failed"`
}

// NewZeroPageResult returns a result for a root that produced no pages.
func NewZeroPageResult(root string, startedAt time.Time) *CrawlResult {
	return &CrawlResult{
		Root:         root,
		EnglishOK:    true,
		VisitedLinks: make([]string, 0),
		Pages:        make([]PageText, 0),
		StartedAt:    startedAt,
	}
}

// Text joins the text of every visited page, one page per line.
func (r *CrawlResult) Text() string {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range r.Pages {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p.Text...)
	}
	return string(buf)
}

// ComputeDigest sets ContentDigest from the page texts.
func (r *CrawlResult) ComputeDigest() {
	if len(r.Pages) == 0 {
		r.ContentDigest = ""
		return
	}
	sum := sha3.Sum256([]byte(r.Text()))
	r.ContentDigest = hex.EncodeToString(sum[:])
}
