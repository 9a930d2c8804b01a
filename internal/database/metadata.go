package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// AppendSiteMetadata records a dated history entry for m.Domain. Changed is
// computed against the newest earlier entry of the domain and returned in
// the stored copy. A second entry on the same date replaces the first, and
// the domain's status moves with it.
func (cdb *CrawlDB) AppendSiteMetadata(ctx context.Context, m model.SiteMetadata) (model.SiteMetadata, error) {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = cdb.now()
	}
	if m.Date == "" {
		m.Date = m.RecordedAt.Format(model.DateLayout)
	}

	var prevDigest sql.NullString
	err := cdb.db.QueryRowContext(ctx, `
	SELECT content_digest FROM site_metadata
	WHERE domain = ? AND date < ?
	ORDER BY date DESC
	LIMIT 1
	`, m.Domain, m.Date).Scan(&prevDigest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		m.Changed = true
	case err != nil:
		return m, fmt.Errorf("failed to read previous metadata: %w", err)
	default:
		m.Changed = prevDigest.String != m.ContentDigest
	}

	query := `
	INSERT INTO site_metadata (domain, date, root, status, total_words, pages_visited,
		response_code, redirected, english_ok, content_digest, changed, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(domain, date) DO UPDATE SET
		root = excluded.root,
		status = excluded.status,
		total_words = excluded.total_words,
		pages_visited = excluded.pages_visited,
		response_code = excluded.response_code,
		redirected = excluded.redirected,
		english_ok = excluded.english_ok,
		content_digest = excluded.content_digest,
		changed = excluded.changed,
		recorded_at = excluded.recorded_at
	`
	_, err = cdb.db.ExecContext(ctx, query,
		m.Domain,
		m.Date,
		m.Root,
		string(m.Status),
		m.TotalWords,
		m.PagesVisited,
		m.ResponseCode,
		boolToInt(m.Redirected),
		boolToInt(m.EnglishOK),
		m.ContentDigest,
		boolToInt(m.Changed),
		m.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return m, fmt.Errorf("failed to save site metadata: %w", err)
	}
	return m, nil
}

// SiteHistory returns every history entry of domain, newest first.
func (cdb *CrawlDB) SiteHistory(ctx context.Context, domain string) ([]model.SiteMetadata, error) {
	query := `
	SELECT domain, date, root, status, total_words, pages_visited, response_code,
		redirected, english_ok, content_digest, changed, recorded_at
	FROM site_metadata
	WHERE domain = ?
	ORDER BY date DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query site history: %w", err)
	}
	defer rows.Close()

	var history []model.SiteMetadata
	for rows.Next() {
		var (
			m                            model.SiteMetadata
			status, recordedAt           string
			code                         sql.NullInt64
			digest                       sql.NullString
			redirected, english, changed int
		)
		if err := rows.Scan(&m.Domain, &m.Date, &m.Root, &status, &m.TotalWords, &m.PagesVisited,
			&code, &redirected, &english, &digest, &changed, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site metadata: %w", err)
		}
		m.Status = model.Status(status)
		m.ResponseCode = int(code.Int64)
		m.Redirected = redirected != 0
		m.EnglishOK = english != 0
		m.ContentDigest = digest.String
		m.Changed = changed != 0
		m.RecordedAt = parseTimestamp(recordedAt)
		history = append(history, m)
	}
	return history, rows.Err()
}

// DomainStatus is the latest bucket of a domain.
type DomainStatus struct {
	Domain string       `json:"domain"`
	Status model.Status `json:"status"`
	Date   string       `json:"date"`
}

// ListDomains returns the latest status of every recorded domain in
// alphabetical order. A non-empty status keeps only domains currently in
// that bucket.
func (cdb *CrawlDB) ListDomains(ctx context.Context, status model.Status) ([]DomainStatus, error) {
	query := `
	SELECT m.domain, m.status, m.date
	FROM site_metadata m
	WHERE m.date = (SELECT MAX(date) FROM site_metadata WHERE domain = m.domain)
	  AND (? = '' OR m.status = ?)
	ORDER BY m.domain
	`

	rows, err := cdb.db.QueryContext(ctx, query, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []DomainStatus
	for rows.Next() {
		var (
			d DomainStatus
			s string
		)
		if err := rows.Scan(&d.Domain, &s, &d.Date); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		d.Status = model.Status(s)
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// RecordOutcome adds o to the running success rate.
func (cdb *CrawlDB) RecordOutcome(ctx context.Context, o model.Outcome) error {
	var rate model.SuccessRate
	rate.Add(o)

	query := `
	INSERT INTO success_rate (id, success, fail, bad_site)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		success = success + excluded.success,
		fail = fail + excluded.fail,
		bad_site = bad_site + excluded.bad_site
	`
	if _, err := cdb.db.ExecContext(ctx, query, rate.Success, rate.Fail, rate.BadSite); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// SuccessRate returns the running success rate. It is zero before the
// first recorded outcome.
func (cdb *CrawlDB) SuccessRate(ctx context.Context) (model.SuccessRate, error) {
	var rate model.SuccessRate
	err := cdb.db.QueryRowContext(ctx,
		`SELECT success, fail, bad_site FROM success_rate WHERE id = 1`).
		Scan(&rate.Success, &rate.Fail, &rate.BadSite)
	if errors.Is(err, sql.ErrNoRows) {
		return rate, nil
	}
	if err != nil {
		return rate, fmt.Errorf("failed to read success rate: %w", err)
	}
	return rate, nil
}
