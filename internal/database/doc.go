// Package database provides SQLite-based storage for crawl output.
//
// CrawlDB keeps four kinds of records in a single file:
//   - Crawl results, one row per crawl of a root, as JSON
//   - Blobs filed by category and key, used for per-status result files
//   - Dated per-domain metadata with the domain's current status
//   - A running success rate across all batches
//
// SQLite comes from modernc.org/sqlite, which needs no CGO. WAL mode lets
// the history command read while a batch is still writing.
package database
