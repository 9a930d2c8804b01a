// Package model defines the data shared by the crawler, the result
// pipeline, storage and reporting.
//
// The main types are:
//   - CrawlResult: what one site crawl collected and how it ended
//   - Outcome and Status: the classification of a CrawlResult
//   - SiteMetadata and SuccessRate: the per-domain history and run totals
//   - BatchSummary: the aggregate of one batch run
//
// Every type is JSON serializable, since results are stored and reported
// as JSON.
package model
