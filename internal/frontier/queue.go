package frontier

import "container/heap"

// QueueSlack is how far past the page ceiling a site's queue may grow.
// Links discovered late in a crawl still get a chance to be scheduled while
// already-claimed pages finish.
const QueueSlack = 20

// Task is a link waiting to be fetched.
type Task struct {
	// Priority orders tasks; lower values are fetched first.
	Priority int
	// URL is the normalized link.
	URL string

	seq   uint64
	index int
}

// LinkQueue is a binary min-heap of tasks plus a URL index.
type LinkQueue struct {
	tasks    taskHeap
	index    map[string]*Task
	visited  map[string]struct{}
	capacity int
	nextSeq  uint64
}

// NewLinkQueue creates an empty queue that holds at most capacity tasks.
// A capacity below one is treated as one.
func NewLinkQueue(capacity int) *LinkQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &LinkQueue{
		index:    make(map[string]*Task),
		visited:  make(map[string]struct{}),
		capacity: capacity,
	}
}

// Insert queues url with the given priority. It reports whether the link was
// added; a URL that is already queued or visited, or an insert into a full
// queue, is a no-op.
func (q *LinkQueue) Insert(priority int, url string) bool {
	if q.Contains(url) {
		return false
	}
	if len(q.tasks) >= q.capacity {
		return false
	}

	t := &Task{Priority: priority, URL: url, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.tasks, t)
	q.index[url] = t
	return true
}

// RemoveMin removes and returns the task with the smallest priority. Among
// equal priorities the earliest insert wins. The URL is marked visited.
func (q *LinkQueue) RemoveMin() (Task, error) {
	t, ok := q.PopMin()
	if !ok {
		return Task{}, ErrEmptyQueue
	}
	return t, nil
}

// PopMin is RemoveMin with an ok flag instead of an error.
func (q *LinkQueue) PopMin() (Task, bool) {
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t, _ := heap.Pop(&q.tasks).(*Task) //nolint:errcheck // taskHeap only holds *Task
	delete(q.index, t.URL)
	q.visited[t.URL] = struct{}{}
	return Task{Priority: t.Priority, URL: t.URL}, true
}

// Peek returns the next task without removing it.
func (q *LinkQueue) Peek() (Task, bool) {
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	return Task{Priority: t.Priority, URL: t.URL}, true
}

// MarkVisited records url as visited without it ever having been queued.
// A queued URL stays queued.
func (q *LinkQueue) MarkVisited(url string) {
	if _, ok := q.index[url]; ok {
		return
	}
	q.visited[url] = struct{}{}
}

// Contains reports whether url is queued or visited.
func (q *LinkQueue) Contains(url string) bool {
	if _, ok := q.index[url]; ok {
		return true
	}
	_, ok := q.visited[url]
	return ok
}

// Queued reports whether url is waiting in the queue.
func (q *LinkQueue) Queued(url string) bool {
	_, ok := q.index[url]
	return ok
}

// Visited reports whether url has been removed from the queue or marked visited.
func (q *LinkQueue) Visited(url string) bool {
	_, ok := q.visited[url]
	return ok
}

// IsEmpty reports whether no task is queued.
func (q *LinkQueue) IsEmpty() bool { return len(q.tasks) == 0 }

// Size returns the number of queued tasks.
func (q *LinkQueue) Size() int { return len(q.tasks) }

// Capacity returns the maximum number of queued tasks.
func (q *LinkQueue) Capacity() int { return q.capacity }

// taskHeap implements heap.Interface ordered by (Priority, seq).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t, _ := x.(*Task) //nolint:errcheck // only *Task is pushed
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
