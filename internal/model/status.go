package model

import "slices"

// Status is the category a finished crawl is filed under.
type Status string

const (
	// StatusSuccess is a crawl that collected enough text.
	StatusSuccess Status = "success"

	// StatusFail is a crawl that collected no text.
	StatusFail Status = "fail"

	// StatusLowCount is a crawl that collected some text, but less than
	// the low-count threshold.
	StatusLowCount Status = "low_count"

	// StatusTimeout is a crawl cut short by its time budget.
	StatusTimeout Status = "timeout"

	// StatusError is a crawl whose seed phase failed.
	StatusError Status = "error"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusSuccess, StatusLowCount, StatusTimeout, StatusFail, StatusError}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Default thresholds for outcome classification.
const (
	// DefaultLowCountThreshold is the word count below which a crawl is
	// flagged as low count.
	DefaultLowCountThreshold = 500

	// DefaultFailWordThreshold is the word count below which a low-count
	// crawl counts as a failure in the success rate.
	DefaultFailWordThreshold = 200
)

// DefaultRetryCodes are root response codes worth retrying later, in
// addition to every 5xx code.
var DefaultRetryCodes = []int{403, 408, 425, 429}

// Thresholds tune outcome classification.
type Thresholds struct {
	LowCount   int
	FailWords  int
	RetryCodes []int
}

// DefaultThresholds returns the default classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowCount:   DefaultLowCountThreshold,
		FailWords:  DefaultFailWordThreshold,
		RetryCodes: slices.Clone(DefaultRetryCodes),
	}
}

// Outcome is the classification of a CrawlResult.
type Outcome struct {
	// Status is the category the result is stored under.
	Status Status `json:"status"`

	// Success is true when the result counts as a success in the
	// success rate. Low-count crawls count as successes above the
	// fail-word threshold.
	Success bool `json:"success"`

	// BadSite is true when the root answered with a non-2xx status.
	BadSite bool `json:"bad_site,omitempty"`

	// Retryable is true when the root's status suggests a later retry may work.
	Retryable bool `json:"retryable,omitempty"`

	// NeedsCheck is true when the result should be reviewed by hand.
	NeedsCheck bool `json:"needs_check,omitempty"`
}

// Classify files r under a status.
func Classify(r *CrawlResult, th Thresholds) Outcome {
	var o Outcome

	switch {
	case r.SeedError != "":
		o.Status = StatusError
	case r.TotalWords == 0:
		o.Status = StatusFail
	case r.TotalWords < th.LowCount:
		o.Status = StatusLowCount
		o.Success = r.TotalWords >= th.FailWords
	case r.TimedOut:
		o.Status = StatusTimeout
	default:
		o.Status = StatusSuccess
		o.Success = true
	}

	if code := r.ResponseCode; code != 0 && (code < 200 || code > 299) {
		o.BadSite = o.Status == StatusFail || o.Status == StatusError
		o.Retryable = code >= 500 || slices.Contains(th.RetryCodes, code)
	}
	o.NeedsCheck = r.TotalWords < th.LowCount || o.Status == StatusError || r.NeedsInvestigation
	return o
}
