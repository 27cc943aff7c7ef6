package crawler

// Frontier is the FIFO work queue of canonical URLs awaiting a visit.
// It tracks every URL ever enqueued and every URL ever popped, so a URL is
// queued at most once and processed at most once per run.
//
// Frontier is not safe for concurrent use; it is owned by a single crawl loop.
type Frontier struct {
	// queue holds pending URLs in FIFO order. head indexes the next pop so
	// popping does not shift the slice.
	queue []string
	head  int

	// enqueued grows monotonically and is the dedup gate for new links.
	enqueued map[string]struct{}

	// visited holds every URL that has been popped.
	visited map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:    make([]string, 0),
		enqueued: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// EnqueueSeed queues the initial URLs in order. Duplicates among the seeds
// are queued once.
func (f *Frontier) EnqueueSeed(urls ...string) {
	for _, u := range urls {
		f.OfferLink(u)
	}
}

// Pop removes and returns the oldest queued URL.
// The second return value is false when the queue is exhausted.
func (f *Frontier) Pop() (string, bool) {
	if f.head >= len(f.queue) {
		return "", false
	}
	u := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 64 && f.head*2 > len(f.queue) {
		f.queue = append(make([]string, 0, len(f.queue)-f.head), f.queue[f.head:]...)
		f.head = 0
	}
	return u, true
}

// MarkVisited records that u has been popped. It must be called right
// after Pop, before any policy check or fetch, so failed URLs are never
// retried within the run.
func (f *Frontier) MarkVisited(u string) {
	f.visited[u] = struct{}{}
	f.enqueued[u] = struct{}{}
}

// OfferLink enqueues u unless it was already visited or enqueued.
// It reports whether u was newly enqueued.
func (f *Frontier) OfferLink(u string) bool {
	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.enqueued[u]; ok {
		return false
	}
	f.enqueued[u] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// Len returns the number of URLs waiting in the queue.
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}

// Discovered returns the number of distinct URLs ever enqueued.
func (f *Frontier) Discovered() int {
	return len(f.enqueued)
}
