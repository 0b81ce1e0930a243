// Package frontier implements the shared URL queue drained by crawl workers.
package frontier

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a pending visit request. Depth is the link distance from the
// nearest start URL known when the entry was first enqueued.
type Entry struct {
	URL   string
	Depth int
}

// Queue is an unbounded FIFO safe for multiple producers and consumers.
// Get blocks for a bounded interval; an empty timeout is the workers'
// termination signal.
type Queue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      *list.List
	unfinished int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends an entry to the queue and wakes one waiting consumer.
func (q *Queue) Put(e Entry) {
	q.mu.Lock()
	q.items.PushBack(e)
	q.unfinished++
	q.mu.Unlock()
	q.cond.Signal()
}

// Get removes and returns the oldest entry, waiting up to timeout when the
// queue is empty. The second return value is false on timeout.
func (q *Queue) Get(timeout time.Duration) (Entry, bool) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Entry{}, false
		}
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.(Entry), true
}

// TaskDone marks one previously fetched entry as fully processed.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	q.mu.Unlock()
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Unfinished returns the number of entries put but not yet marked done.
func (q *Queue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
