package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/source"
)

// crawlFunc adapts a function to Crawler.
type crawlFunc func(ctx context.Context, root string) *model.CrawlResult

func (f crawlFunc) Run(ctx context.Context, root string) *model.CrawlResult { return f(ctx, root) }

func fixedWords(words int) CrawlerFactory {
	return func(string) Crawler {
		return crawlFunc(func(_ context.Context, root string) *model.CrawlResult {
			return crawled(root, words)
		})
	}
}

func classifyOnly() *Pipeline {
	return DefaultPipeline(nil, model.DefaultThresholds(), nil)
}

// failingSource yields n roots and then fails.
type failingSource struct {
	n   atomic.Int32
	err error
}

func (s *failingSource) Next(context.Context) (string, bool, error) {
	if s.n.Add(-1) < 0 {
		return "", false, s.err
	}
	return "https://example.com", true, nil
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(fixedWords(1), classifyOnly)
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(fixedWords(1), classifyOnly, WithConcurrency(0))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})
}

func TestBatchProcessorRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("processes every root and summarizes", func(t *testing.T) {
		t.Parallel()

		roots := []string{"https://c.example", "https://a.example", "https://b.example"}
		bp := NewBatchProcessor(fixedWords(600), classifyOnly)

		summary, err := bp.ProcessBatch(ctx, roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total() != 3 {
			t.Fatalf("expected 3 roots, got %d", summary.Total())
		}
		if summary.Counts[model.StatusSuccess] != 3 {
			t.Errorf("counts = %v", summary.Counts)
		}
		if summary.Roots[0].Root != "https://a.example" {
			t.Errorf("roots not sorted: %+v", summary.Roots)
		}
		if summary.TotalWords() != 1800 {
			t.Errorf("TotalWords() = %d", summary.TotalWords())
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		t.Parallel()

		src := source.NewSliceSource([]string{"https://a.example", "https://b.example", "https://c.example"})
		bp := NewBatchProcessor(fixedWords(600), classifyOnly)

		summary, err := bp.Run(ctx, src, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total() != 2 {
			t.Errorf("expected 2 roots, got %d", summary.Total())
		}
		if src.Len() != 1 {
			t.Errorf("expected one root left in source, got %d", src.Len())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(string) Crawler {
			return crawlFunc(func(_ context.Context, root string) *model.CrawlResult {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return crawled(root, 600)
			})
		}

		roots := make([]string, 10)
		for i := range roots {
			roots[i] = "https://example.com"
		}
		bp := NewBatchProcessor(factory, classifyOnly, WithConcurrency(2))
		if _, err := bp.ProcessBatch(ctx, roots); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d, expected <= 2", peak.Load())
		}
	})

	t.Run("step failure is recorded and other roots continue", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.putErr = errors.New("disk full")

		bp := NewBatchProcessor(fixedWords(100), func() *Pipeline {
			return DefaultPipeline(store, model.DefaultThresholds(), nil)
		})
		summary, err := bp.ProcessBatch(ctx, []string{"https://a.example", "https://b.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total() != 2 {
			t.Fatalf("expected 2 roots, got %d", summary.Total())
		}
		for _, r := range summary.Roots {
			if r.Error == "" {
				t.Errorf("%s: step error not recorded", r.Root)
			}
			if r.Status != model.StatusLowCount {
				t.Errorf("%s: status %s", r.Root, r.Status)
			}
		}
		if len(summary.LinksToCheck) != 2 {
			t.Errorf("LinksToCheck = %v", summary.LinksToCheck)
		}
	})

	t.Run("source error stops the batch", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("redis down")
		src := &failingSource{err: boom}
		src.n.Store(2)

		bp := NewBatchProcessor(fixedWords(600), classifyOnly)
		summary, err := bp.Run(ctx, src, 0)
		if !errors.Is(err, boom) {
			t.Errorf("expected source error, got %v", err)
		}
		if summary.Total() != 2 {
			t.Errorf("roots taken before the failure should finish, got %d", summary.Total())
		}
	})

	t.Run("nil crawl result becomes an error outcome", func(t *testing.T) {
		t.Parallel()

		factory := func(string) Crawler {
			return crawlFunc(func(context.Context, string) *model.CrawlResult { return nil })
		}
		bp := NewBatchProcessor(factory, classifyOnly)
		summary, err := bp.ProcessBatch(ctx, []string{"https://a.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Counts[model.StatusError] != 1 {
			t.Errorf("counts = %v", summary.Counts)
		}
	})

	t.Run("callback sees every report", func(t *testing.T) {
		t.Parallel()

		var (
			mu   sync.Mutex
			seen []string
		)
		bp := NewBatchProcessor(fixedWords(600), classifyOnly, WithResultCallback(func(r *Report) {
			mu.Lock()
			seen = append(seen, r.Result.Root)
			mu.Unlock()
		}))
		if _, err := bp.ProcessBatch(ctx, []string{"https://a.example", "https://b.example"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("callback saw %v", seen)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		bp := NewBatchProcessor(fixedWords(600), classifyOnly)
		summary, err := bp.ProcessBatch(cctx, []string{"https://a.example"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary.Total() != 0 {
			t.Errorf("expected no roots, got %d", summary.Total())
		}
	})
}
