package server

import (
	"context"
	"sync"
	"time"
)

// maxPolled bounds a poll queue. Every batch carries the full page state, so
// dropping the oldest loses nothing a later batch does not repeat.
const maxPolled = 64

// PollQueue accumulates outgoing batches for a client that polls over HTTP
// instead of holding a websocket.
type PollQueue struct {
	mu      sync.Mutex
	batches [][]byte
	waiters []chan struct{}
	touched time.Time
}

func NewPollQueue() *PollQueue {
	return &PollQueue{touched: time.Now()}
}

// Enqueue adds a batch and wakes any waiting poll.
func (q *PollQueue) Enqueue(batch []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = append(q.batches, batch)
	if over := len(q.batches) - maxPolled; over > 0 {
		q.batches = append(q.batches[:0:0], q.batches[over:]...)
	}
	for _, ch := range q.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Drain returns the pending batches and empties the queue.
func (q *PollQueue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.touched = time.Now()
	out := q.batches
	q.batches = nil
	return out
}

// Poll returns pending batches, waiting up to wait for the first one.
func (q *PollQueue) Poll(ctx context.Context, wait time.Duration) [][]byte {
	if out := q.Drain(); len(out) > 0 || wait <= 0 {
		return out
	}
	ch := make(chan struct{}, 1)
	q.mu.Lock()
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	t := time.NewTimer(wait)
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
	}
	t.Stop()

	q.mu.Lock()
	for i, w := range q.waiters {
		if w == ch {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	return q.Drain()
}

func (q *PollQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// idleSince reports when the queue was last drained.
func (q *PollQueue) idleSince() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.touched
}

// PollQueues holds one queue per polling client.
type PollQueues struct {
	mu     sync.Mutex
	queues map[string]*PollQueue
}

func NewPollQueues() *PollQueues {
	return &PollQueues{queues: make(map[string]*PollQueue)}
}

// Get returns the queue for id and whether it was just created.
func (m *PollQueues) Get(id string) (*PollQueue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[id]; ok {
		return q, false
	}
	q := NewPollQueue()
	m.queues[id] = q
	return q, true
}

func (m *PollQueues) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, id)
}

// Stale returns the ids of queues nobody has drained since cutoff.
func (m *PollQueues) Stale(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, q := range m.queues {
		if q.idleSince().Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}
