// Package queue provides the in-memory priority queue that feeds the
// worker pool, plus per-type rate and concurrency limits.
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// ErrClosed is returned by Push after the queue has been closed.
var ErrClosed = errors.New("jobq: queue closed")

// entry is one queued job reference. The queue orders entries by
// (priority DESC, seq ASC) only. It holds IDs, never job records, so
// ordering can never depend on payload contents.
type entry struct {
	priority job.Priority
	seq      uint64
	jobID    id.JobID
}

// entryHeap implements heap.Interface with the composite ordering key.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is a thread-safe, total-ordered queue of ready-to-run job IDs.
// Dequeue blocks with a timeout so workers can periodically observe
// shutdown without busy-spinning.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries entryHeap
	seq     uint64
	closed  bool
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds a job reference to the queue. Each push takes a fresh
// sequence number, so a re-enqueued retry joins the back of its
// priority band rather than the front.
func (q *Queue) Push(priority job.Priority, jobID id.JobID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.seq++
	heap.Push(&q.entries, entry{priority: priority, seq: q.seq, jobID: jobID})
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the highest-ordered job ID, blocking up
// to timeout when the queue is empty. It returns ok=false on timeout or
// once the queue is closed; a closed queue stops delivering immediately
// even if entries remain.
func (q *Queue) Dequeue(timeout time.Duration) (id.JobID, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return id.Nil, false
		}
		if len(q.entries) > 0 {
			e := heap.Pop(&q.entries).(entry)
			return e.jobID, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return id.Nil, false
		}

		// Wake ourselves when the deadline passes; Wait has no timeout.
		t := time.AfterFunc(remaining, q.cond.Broadcast)
		q.cond.Wait()
		t.Stop()
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops the queue: all blocked Dequeue calls return and further
// pushes fail with ErrClosed. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether the queue has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
