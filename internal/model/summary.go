package model

import (
	"sort"
	"time"
)

// RootSummary is one line of a batch summary.
type RootSummary struct {
	Root         string        `json:"root"`
	HomeDomain   string        `json:"home_domain"`
	Status       Status        `json:"status"`
	TotalWords   int           `json:"total_words"`
	PagesVisited int           `json:"pages_visited"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// BatchSummary aggregates the outcomes of one batch run.
type BatchSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Rate SuccessRate `json:"rate"`

	// Counts holds the number of roots per status.
	Counts map[Status]int `json:"counts"`

	// Roots lists every processed root.
	Roots []RootSummary `json:"roots"`

	// LinksToCheck lists roots that deserve a manual look.
	LinksToCheck []string `json:"links_to_check"`
}

// NewBatchSummary returns an empty summary.
func NewBatchSummary(startedAt time.Time) *BatchSummary {
	return &BatchSummary{
		StartedAt:    startedAt,
		Counts:       make(map[Status]int),
		Roots:        make([]RootSummary, 0),
		LinksToCheck: make([]string, 0),
	}
}

// Add records one crawled root and its outcome. Add is not safe for
// concurrent use.
func (b *BatchSummary) Add(r *CrawlResult, o Outcome, stepErr error) {
	b.Rate.Add(o)
	b.Counts[o.Status]++

	rs := RootSummary{
		Root:         r.Root,
		HomeDomain:   r.HomeDomain,
		Status:       o.Status,
		TotalWords:   r.TotalWords,
		PagesVisited: r.PagesVisited,
		Duration:     r.Duration,
		Error:        r.SeedError,
	}
	if stepErr != nil && rs.Error == "" {
		rs.Error = stepErr.Error()
	}
	b.Roots = append(b.Roots, rs)

	if o.NeedsCheck {
		b.LinksToCheck = append(b.LinksToCheck, r.Root)
	}
}

// Total returns the number of roots processed.
func (b *BatchSummary) Total() int { return len(b.Roots) }

// Timeouts returns the number of roots that ran out of time.
func (b *BatchSummary) Timeouts() int { return b.Counts[StatusTimeout] }

// AveragePerRoot returns the mean wall-clock time spent per root.
func (b *BatchSummary) AveragePerRoot() time.Duration {
	if len(b.Roots) == 0 {
		return 0
	}
	return b.Elapsed / time.Duration(len(b.Roots))
}

// TotalWords returns the words collected across all roots.
func (b *BatchSummary) TotalWords() int {
	n := 0
	for _, r := range b.Roots {
		n += r.TotalWords
	}
	return n
}

// Sort orders roots by name and the check list alphabetically, so reports
// are stable regardless of completion order.
func (b *BatchSummary) Sort() {
	sort.Slice(b.Roots, func(i, j int) bool { return b.Roots[i].Root < b.Roots[j].Root })
	sort.Strings(b.LinksToCheck)
}
