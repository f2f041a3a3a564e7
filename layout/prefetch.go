package layout

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sbl8/attrgraph/typeinfo"
)

// PrefetchRequest is one pending asynchronous layout build, ordered by
// Priority — spec.md §5: "the layout-builder's asynchronous queue dispatches
// to a low-priority background worker", ordered by "caller-provided
// priority" (spec.md §4.7).
type PrefetchRequest struct {
	Metadata typeinfo.Metadata
	Mode     Mode
	Priority int

	index int
	done  chan *Descriptor
}

type prefetchHeap []*PrefetchRequest

func (h prefetchHeap) Len() int            { return len(h) }
func (h prefetchHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h prefetchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *prefetchHeap) Push(x any) {
	r := x.(*PrefetchRequest)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *prefetchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// PrefetchQueue is the background layout-building queue. Builds dispatched
// through it run on worker goroutines bounded by a weighted semaphore
// (golang.org/x/sync/semaphore) so a burst of AGPrefetchCompareValues calls
// cannot spawn unbounded goroutines; synchronous callers
// (CompareFetchLayoutsSync) bypass the queue entirely by calling
// Builder.Build directly.
type PrefetchQueue struct {
	builder *Builder

	mu      sync.Mutex
	cond    *sync.Cond
	pending prefetchHeap
	closed  bool

	sem *semaphore.Weighted
}

// NewPrefetchQueue constructs a queue over builder, permitting up to
// maxConcurrent simultaneous background builds.
func NewPrefetchQueue(builder *Builder, maxConcurrent int64) *PrefetchQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	q := &PrefetchQueue{builder: builder, sem: semaphore.NewWeighted(maxConcurrent)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue requests an asynchronous build of (m, mode) at the given priority
// and returns a channel the built Descriptor is delivered on.
func (q *PrefetchQueue) Enqueue(m typeinfo.Metadata, mode Mode, priority int) <-chan *Descriptor {
	req := &PrefetchRequest{Metadata: m, Mode: mode, Priority: priority, done: make(chan *Descriptor, 1)}
	q.mu.Lock()
	heap.Push(&q.pending, req)
	q.mu.Unlock()
	q.cond.Signal()
	return req.done
}

// Run drains the queue until ctx is cancelled, spawning one worker goroutine
// per semaphore permit so at most maxConcurrent builds run at once. Run
// blocks; callers start it with `go queue.Run(ctx)`.
func (q *PrefetchQueue) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}()

	for {
		req, ok := q.next(ctx)
		if !ok {
			return
		}
		if err := q.sem.Acquire(ctx, 1); err != nil {
			req.done <- nil
			continue
		}
		go func(r *PrefetchRequest) {
			defer q.sem.Release(1)
			r.done <- q.builder.Build(r.Metadata, r.Mode)
		}(req)
	}
}

func (q *PrefetchQueue) next(ctx context.Context) (*PrefetchRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	return heap.Pop(&q.pending).(*PrefetchRequest), true
}
