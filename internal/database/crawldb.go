package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawler/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitecrawler.db"

// CrawlDB stores crawl results, categorized blobs, per-domain metadata
// history and the running success rate in one SQLite file.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now is the clock used for timestamps written by Go code.
	now func() time.Time
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets the history command
	// read while a crawl is writing.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; concurrent site crawls serialize here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string { return cdb.dbPath }

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl of a root
	CREATE TABLE IF NOT EXISTS crawl_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root TEXT NOT NULL,
		home_domain TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_words INTEGER NOT NULL,
		pages_visited INTEGER NOT NULL,
		timed_out INTEGER NOT NULL,
		content_digest TEXT,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_root ON crawl_results(root);
	CREATE INDEX IF NOT EXISTS idx_results_domain ON crawl_results(home_domain);

	-- Opaque payloads filed by category, last write wins
	CREATE TABLE IF NOT EXISTS blobs (
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		blob BLOB NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (category, key)
	);

	-- Dated crawl history per domain; status is the bucket the domain is in
	CREATE TABLE IF NOT EXISTS site_metadata (
		domain TEXT NOT NULL,
		date TEXT NOT NULL,
		root TEXT NOT NULL,
		status TEXT NOT NULL,
		total_words INTEGER NOT NULL,
		pages_visited INTEGER NOT NULL,
		response_code INTEGER,
		redirected INTEGER NOT NULL,
		english_ok INTEGER NOT NULL,
		content_digest TEXT,
		changed INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (domain, date)
	);

	CREATE INDEX IF NOT EXISTS idx_metadata_status ON site_metadata(status);

	-- Running totals; a single row with id 1
	CREATE TABLE IF NOT EXISTS success_rate (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		success INTEGER NOT NULL DEFAULT 0,
		fail INTEGER NOT NULL DEFAULT 0,
		bad_site INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Put stores the result of crawling root. Every call adds a row, so
// earlier crawls of the same root stay available as history.
func (cdb *CrawlDB) Put(ctx context.Context, root string, result *model.CrawlResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize crawl result: %w", err)
	}

	query := `
	INSERT INTO crawl_results (root, home_domain, total_words, pages_visited, timed_out, content_digest, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = cdb.db.ExecContext(ctx, query,
		root,
		result.HomeDomain,
		result.TotalWords,
		result.PagesVisited,
		boolToInt(result.TimedOut),
		result.ContentDigest,
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl result: %w", err)
	}
	return nil
}

// GetCrawlResult returns the most recent result for root, or nil
// when root was never crawled.
func (cdb *CrawlDB) GetCrawlResult(ctx context.Context, root string) (*model.CrawlResult, error) {
	query := `
	SELECT result_json FROM crawl_results
	WHERE root = ?
	ORDER BY id DESC
	LIMIT 1
	`

	var resultJSON string
	err := cdb.db.QueryRowContext(ctx, query, root).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl result: %w", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse crawl result: %w", err)
	}
	return &result, nil
}

// CrawlResultMetadata summarizes a stored crawl without its page text.
type CrawlResultMetadata struct {
	ID            int64
	Root          string
	HomeDomain    string
	Timestamp     time.Time
	TotalWords    int
	PagesVisited  int
	TimedOut      bool
	ContentDigest string
}

// ListCrawlResults returns metadata of every stored crawl of root, newest first.
func (cdb *CrawlDB) ListCrawlResults(ctx context.Context, root string) ([]CrawlResultMetadata, error) {
	query := `
	SELECT id, root, home_domain, timestamp, total_words, pages_visited, timed_out, content_digest
	FROM crawl_results
	WHERE root = ?
	ORDER BY id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl results: %w", err)
	}
	defer rows.Close()

	var results []CrawlResultMetadata
	for rows.Next() {
		var (
			meta      CrawlResultMetadata
			timestamp string
			timedOut  int
			digest    sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Root, &meta.HomeDomain, &timestamp,
			&meta.TotalWords, &meta.PagesVisited, &timedOut, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan crawl result: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.TimedOut = timedOut != 0
		meta.ContentDigest = digest.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// Store files blob under category and key, replacing any earlier blob
// with the same category and key.
func (cdb *CrawlDB) Store(ctx context.Context, category, key string, blob []byte) error {
	query := `
	INSERT INTO blobs (category, key, blob)
	VALUES (?, ?, ?)
	ON CONFLICT(category, key) DO UPDATE SET
		blob = excluded.blob,
		timestamp = CURRENT_TIMESTAMP
	`
	if _, err := cdb.db.ExecContext(ctx, query, category, key, blob); err != nil {
		return fmt.Errorf("failed to store blob %s/%s: %w", category, key, err)
	}
	return nil
}

// GetBlob returns the blob filed under category and key, or nil when
// there is none.
func (cdb *CrawlDB) GetBlob(ctx context.Context, category, key string) ([]byte, error) {
	var blob []byte
	err := cdb.db.QueryRowContext(ctx,
		`SELECT blob FROM blobs WHERE category = ? AND key = ?`, category, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s/%s: %w", category, key, err)
	}
	return blob, nil
}

// ListBlobKeys returns the keys filed under category in alphabetical order.
func (cdb *CrawlDB) ListBlobKeys(ctx context.Context, category string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE category = ? ORDER BY key`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// boolToInt maps a bool onto SQLite's integer booleans.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
