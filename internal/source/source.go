package source

import (
	"context"
	"strings"
	"sync"
)

// URLQueueSource yields root URLs. ok is false once the source has
// nothing more to give; err reports a source that failed.
// Implementations are safe for concurrent use.
type URLQueueSource interface {
	Next(ctx context.Context) (url string, ok bool, err error)
}

// SliceSource yields a fixed list of URLs in order.
type SliceSource struct {
	mu   sync.Mutex
	urls []string
	pos  int
}

// NewSliceSource returns a source over urls. Blank entries are skipped.
func NewSliceSource(urls []string) *SliceSource {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return &SliceSource{urls: cleaned}
}

// Next implements URLQueueSource.
func (s *SliceSource) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.urls) {
		return "", false, nil
	}
	u := s.urls[s.pos]
	s.pos++
	return u, true, nil
}

// Len returns the number of URLs not yet handed out.
func (s *SliceSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls) - s.pos
}

// ChainSource drains its sources one after another.
type ChainSource struct {
	mu      sync.Mutex
	sources []URLQueueSource
}

// Chain returns a source that yields everything from each source in turn.
func Chain(sources ...URLQueueSource) *ChainSource {
	return &ChainSource{sources: sources}
}

// Next implements URLQueueSource. A failing source stops the chain.
func (c *ChainSource) Next(ctx context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.sources) > 0 {
		u, ok, err := c.sources[0].Next(ctx)
		if err != nil {
			return "", false, err
		}
		if ok {
			return u, true, nil
		}
		c.sources = c.sources[1:]
	}
	return "", false, nil
}
