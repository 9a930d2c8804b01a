package pipeline

import (
	"context"

	"github.com/nao1215/sitecrawler/internal/model"
)

// ResultSink persists crawl output. database.CrawlDB implements it.
type ResultSink interface {
	// Put stores the full result of crawling root.
	Put(ctx context.Context, root string, result *model.CrawlResult) error

	// Store files blob under category and key.
	Store(ctx context.Context, category, key string, blob []byte) error
}

// MetadataStore keeps per-domain history and the running success rate.
// database.CrawlDB implements it.
type MetadataStore interface {
	AppendSiteMetadata(ctx context.Context, m model.SiteMetadata) (model.SiteMetadata, error)
	RecordOutcome(ctx context.Context, o model.Outcome) error
}
