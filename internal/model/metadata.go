package model

import "time"

// SiteMetadata is one dated entry of a domain's crawl history.
type SiteMetadata struct {
	// Domain is the home domain of the crawl.
	Domain string `json:"domain"`

	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// Date is the day of the crawl, formatted as 2006-01-02.
	Date string `json:"date"`

	// Status is the bucket the domain currently sits in.
	Status Status `json:"status"`

	TotalWords   int  `json:"total_words"`
	PagesVisited int  `json:"pages_visited"`
	ResponseCode int  `json:"response_code,omitempty"`
	Redirected   bool `json:"redirected,omitempty"`
	EnglishOK    bool `json:"english_ok"`

	// ContentDigest fingerprints the collected text.
	ContentDigest string `json:"content_digest,omitempty"`

	// Changed is true when the digest differs from the previous entry.
	Changed bool `json:"changed"`

	// RecordedAt is when the entry was written.
	RecordedAt time.Time `json:"recorded_at"`
}

// DateLayout formats SiteMetadata.Date.
const DateLayout = "2006-01-02"

// NewSiteMetadata builds a history entry for r filed under status.
func NewSiteMetadata(r *CrawlResult, status Status, now time.Time) SiteMetadata {
	domain := r.HomeDomain
	if domain == "" {
		domain = r.Root
	}
	return SiteMetadata{
		Domain:        domain,
		Root:          r.Root,
		Date:          now.Format(DateLayout),
		Status:        status,
		TotalWords:    r.TotalWords,
		PagesVisited:  r.PagesVisited,
		ResponseCode:  r.ResponseCode,
		Redirected:    r.Redirected,
		EnglishOK:     r.EnglishOK,
		ContentDigest: r.ContentDigest,
		RecordedAt:    now,
	}
}

// SuccessRate counts crawl outcomes across runs.
type SuccessRate struct {
	Success int `json:"success"`
	Fail    int `json:"fail"`
	BadSite int `json:"bad_site"`
}

// Add records one outcome.
func (s *SuccessRate) Add(o Outcome) {
	if o.Success {
		s.Success++
	} else {
		s.Fail++
	}
	if o.BadSite {
		s.BadSite++
	}
}

// Rate returns successes as a fraction of all outcomes, 0 when empty.
func (s SuccessRate) Rate() float64 {
	total := s.Success + s.Fail
	if total == 0 {
		return 0
	}
	return float64(s.Success) / float64(total)
}
