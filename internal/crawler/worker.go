package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/model"
)

// WorkerState is the lifecycle stage of a worker.
type WorkerState int

const (
	// StateIdle is a worker waiting to claim a page.
	StateIdle WorkerState = iota
	// StateFetching is a worker loading a page.
	StateFetching
	// StateExtractFilter is a worker tokenizing text and filtering links.
	StateExtractFilter
	// StateReporting is a worker committing its results.
	StateReporting
	// StateStopped is a worker that exited because the crawl drained.
	StateStopped
	// StateAborted is a worker that exited because the crawl was canceled.
	StateAborted
)

// String returns the state name.
func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateExtractFilter:
		return "extract_filter"
	case StateReporting:
		return "reporting"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// worker repeatedly claims a page, fetches it and commits what it found.
type worker struct {
	id    int
	c     *Coordinator
	state *crawlState
	lease fetcher.Lease

	// homeDomain is fixed before workers start.
	homeDomain string
	limiter    *fetcher.Limiter

	current WorkerState
	fetched int
	failed  int
}

// run loops until the crawl drains or is aborted. fetchCtx is canceled
// once the grace period after the deadline has passed.
func (w *worker) run(fetchCtx context.Context) {
	logger := w.c.logger.With("worker", w.id, "root", w.state.root)

	for {
		w.current = StateIdle
		task, gather, outcome := w.state.claim()
		switch outcome {
		case drained:
			w.current = StateStopped
			return
		case aborted:
			w.current = StateAborted
			return
		}

		w.current = StateFetching
		text, words, hrefs := w.fetch(fetchCtx, logger, task.URL, gather)

		w.current = StateExtractFilter
		var candidates []string
		if gather && len(hrefs) > 0 {
			candidates = w.c.filter.Candidates(fetchCtx, hrefs, w.homeDomain)
		}

		w.current = StateReporting
		queued, ok := w.state.commit(task.URL, text, words, candidates)
		if !ok {
			logger.Debug("page discarded after deadline", "url", task.URL)
			continue
		}
		logger.Debug("page committed",
			"url", task.URL,
			"priority", task.Priority,
			"words", words,
			"new_links", queued,
		)
	}
}

// fetch loads one page and returns its truncated text, word count and
// hrefs. A failed fetch yields nothing.
func (w *worker) fetch(ctx context.Context, logger *slog.Logger, url string, gather bool) (text string, words int, hrefs []string) {
	if err := w.limiter.Wait(ctx); err != nil {
		w.failed++
		return "", 0, nil
	}

	page, err := w.safeFetch(ctx, url)
	if err != nil {
		w.failed++
		logger.Debug("fetch failed", "url", url, "error", err)
		return "", 0, nil
	}
	w.fetched++

	fields := strings.Fields(page.Text)
	if len(fields) > w.c.maxWordsPerPage {
		fields = fields[:w.c.maxWordsPerPage]
	}
	if gather {
		hrefs = page.Hrefs
	}
	return strings.Join(fields, " "), len(fields), hrefs
}

// safeFetch turns a fetcher panic into an error so the claimed page is
// still committed and the crawl can drain.
func (w *worker) safeFetch(ctx context.Context, url string) (page *fetcher.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return w.lease.Fetch(ctx, url, w.c.fetchTimeout)
}

func (w *worker) summary() model.WorkerSummary {
	return model.WorkerSummary{
		ID:      w.id,
		State:   w.current.String(),
		Fetched: w.fetched,
		Failed:  w.failed,
	}
}
