package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/source"
)

// DefaultConcurrency is the number of roots crawled at once.
const DefaultConcurrency = 10

// Crawler crawls one site. crawler.Coordinator implements it.
type Crawler interface {
	Run(ctx context.Context, root string) *model.CrawlResult
}

// CrawlerFactory returns the crawler for root, so per-site settings can
// differ.
type CrawlerFactory func(root string) Crawler

// BatchProcessor crawls roots from a source concurrently and runs each
// result through a fresh pipeline.
type BatchProcessor struct {
	crawlerFactory  CrawlerFactory
	pipelineFactory func() *Pipeline

	concurrency int
	thresholds  model.Thresholds
	logger      *slog.Logger

	// onResult, when set, is called after each root's pipeline finishes.
	// It runs on the root's goroutine.
	onResult func(report *Report)

	now func() time.Time
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of roots crawled at once.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithThresholds sets the thresholds used to classify results whose
// pipeline stopped before classification.
func WithThresholds(th model.Thresholds) BatchOption {
	return func(b *BatchProcessor) {
		b.thresholds = th
	}
}

// WithResultCallback registers fn to be called for every finished root.
// fn must be safe for concurrent use.
func WithResultCallback(fn func(report *Report)) BatchOption {
	return func(b *BatchProcessor) {
		b.onResult = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(crawlerFactory CrawlerFactory, pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		crawlerFactory:  crawlerFactory,
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
		thresholds:      model.DefaultThresholds(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Run pulls roots from src until it is drained or limit roots were taken
// (limit <= 0 means no limit) and crawls them. The summary covers every
// root that finished. The error is non-nil when src failed or ctx was
// canceled; individual crawl or step failures never surface here.
func (bp *BatchProcessor) Run(ctx context.Context, src source.URLQueueSource, limit int) (*model.BatchSummary, error) {
	start := bp.now()
	summary := model.NewBatchSummary(start)
	var mu sync.Mutex

	bp.logger.Info("starting batch", "concurrency", bp.concurrency, "limit", limit)

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	var srcErr error
	taken := 0
	for limit <= 0 || taken < limit {
		root, ok, err := src.Next(ctx)
		if err != nil {
			srcErr = err
			break
		}
		if !ok {
			break
		}
		taken++
		index := taken

		// Go blocks while concurrency roots are running, so the source is
		// only drained as fast as roots finish.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			bp.logger.Info("crawling root", "root", root, "index", index)

			report := bp.process(ctx, root)

			mu.Lock()
			summary.Add(report.Result, report.Outcome, report.Err)
			mu.Unlock()

			if bp.onResult != nil {
				bp.onResult(report)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	summary.Elapsed = bp.now().Sub(start)
	summary.Sort()

	bp.logger.Info("batch complete",
		"roots", summary.Total(),
		"elapsed", summary.Elapsed,
		"success_rate", summary.Rate.Rate(),
	)

	if srcErr == nil {
		srcErr = ctx.Err()
	}
	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		bp.logger.Error("batch stopped early", "error", srcErr)
	}
	return summary, srcErr
}

// ProcessBatch crawls a fixed list of roots.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) (*model.BatchSummary, error) {
	return bp.Run(ctx, source.NewSliceSource(roots), 0)
}

// process crawls root and runs its pipeline. The returned report is
// always classified.
func (bp *BatchProcessor) process(ctx context.Context, root string) *Report {
	result := bp.crawlerFactory(root).Run(ctx, root)
	if result == nil {
		result = model.NewZeroPageResult(root, bp.now())
		result.SeedError = "crawler returned no result"
	}

	report := NewReport(result)
	if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
		bp.logger.Warn("pipeline failed", "root", root, "error", err)
	}
	if !report.Classified() {
		report.Outcome = model.Classify(result, bp.thresholds)
	}
	return report
}
