package crawler

import (
	"slices"
	"sync"

	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/linkfilter"
	"github.com/nao1215/sitecrawler/internal/model"
)

// claimOutcome tells a worker what to do after a claim attempt.
type claimOutcome int

const (
	// claimed means the worker holds a task.
	claimed claimOutcome = iota
	// drained means the queue is empty and nothing is in flight.
	drained
	// aborted means the crawl was canceled.
	aborted
)

// crawlState is the mutable state of one site crawl. Every field below mu
// is guarded by it.
type crawlState struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue *frontier.LinkQueue

	root       string
	homeDomain string
	maxLinks   int
	perPageCap int

	visitedLinks []string
	pages        []model.PageText

	totalWords        int
	pagesVisited      int
	originalLinkCount int
	newLinkCount      int

	redirected bool
	englishOK  bool
	timedOut   bool
	complete   bool
	aborted    bool

	// inFlight counts workers between claim and commit.
	inFlight int
}

func newCrawlState(root string, maxLinks, perPageCap int) *crawlState {
	s := &crawlState{
		queue:        frontier.NewLinkQueue(maxLinks + frontier.QueueSlack),
		root:         root,
		maxLinks:     maxLinks,
		perPageCap:   perPageCap,
		visitedLinks: make([]string, 0),
		pages:        make([]model.PageText, 0),
		englishOK:    true,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// seed queues the root at priority 0 and the other links at 1..k.
func (s *crawlState) seed(links []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Insert(0, s.root)
	priority := 1
	for _, link := range links {
		if link == s.root {
			continue
		}
		if s.queue.Insert(priority, link) {
			priority++
		}
	}
}

// continueLinkGathering reports whether workers should still collect links.
// The caller holds mu.
func (s *crawlState) continueLinkGathering() bool {
	return s.originalLinkCount+s.newLinkCount < s.maxLinks
}

// linkBudget is how many links the page being committed may queue. It is
// bounded by the per-page cap, by what is left of maxLinks, and by the room
// under maxLinks+QueueSlack once queued, visited and in-flight pages
// (the committing one included) are counted. The caller holds mu.
func (s *crawlState) linkBudget() int {
	gathered := s.maxLinks - (s.originalLinkCount + s.newLinkCount)
	room := s.maxLinks + frontier.QueueSlack - (len(s.visitedLinks) + s.queue.Size() + s.inFlight + 1)
	return max(0, min(s.perPageCap, gathered, room))
}

// claim pops the next task. It blocks while the queue is empty but other
// workers are still fetching.
func (s *crawlState) claim() (task frontier.Task, gather bool, outcome claimOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.aborted {
			return frontier.Task{}, false, aborted
		}
		if t, ok := s.queue.PopMin(); ok {
			s.inFlight++
			return t, s.continueLinkGathering(), claimed
		}
		if s.inFlight == 0 {
			s.complete = true
			s.cond.Broadcast()
			return frontier.Task{}, false, drained
		}
		s.cond.Wait()
	}
}

// commit records the result of a claimed task in one transaction. It
// returns false when the crawl was aborted while the page was in flight;
// such pages are dropped.
func (s *crawlState) commit(url, text string, words int, candidates []string) (queued int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()

	s.inFlight--
	if s.aborted {
		return 0, false
	}

	limit := s.linkBudget()
	for _, link := range candidates {
		if queued >= limit {
			break
		}
		if s.queue.Contains(link) {
			continue
		}
		priority := s.queue.Size() + 1 + 100*linkfilter.PathDepth(link)
		if s.queue.Insert(priority, link) {
			queued++
		}
	}
	s.newLinkCount += queued

	s.totalWords += words
	s.pagesVisited++
	s.visitedLinks = append(s.visitedLinks, url)
	s.pages = append(s.pages, model.PageText{URL: url, Words: words, Text: text})
	return queued, true
}

// abort stops the crawl and wakes every parked worker.
func (s *crawlState) abort(timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aborted = true
	if timedOut {
		s.timedOut = true
	}
	s.cond.Broadcast()
}

// snapshot copies the state into a result.
func (s *crawlState) snapshot(r *model.CrawlResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.HomeDomain = s.homeDomain
	r.Redirected = s.redirected
	r.EnglishOK = s.englishOK
	r.TimedOut = s.timedOut
	r.Complete = s.complete
	r.TotalWords = s.totalWords
	r.PagesVisited = s.pagesVisited
	r.OriginalLinkCount = s.originalLinkCount
	r.NewLinkCount = s.newLinkCount
	r.VisitedLinks = slices.Clone(s.visitedLinks)
	r.Pages = slices.Clone(s.pages)
}
