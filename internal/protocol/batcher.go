package protocol

import (
	"sync"

	"github.com/goccy/go-json"
)

// Priority orders queued messages within a flush.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityMedium Priority = 1
	PriorityLow    Priority = 2
)

type queued struct {
	key      string
	priority Priority
	msg      *Message
}

// Batcher collects outgoing messages between flushes. A message queued under
// a key replaces the one already waiting under it, so a drag that changes the
// page fifty times between flushes sends the page once.
type Batcher struct {
	mu    sync.Mutex
	order []*queued
	byKey map[string]*queued
}

func NewBatcher() *Batcher {
	return &Batcher{byKey: make(map[string]*queued)}
}

// Queue adds msg. An empty key never replaces anything.
func (b *Batcher) Queue(key string, p Priority, msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key != "" {
		if q, ok := b.byKey[key]; ok {
			q.msg, q.priority = msg, p
			return
		}
	}
	q := &queued{key: key, priority: p, msg: msg}
	b.order = append(b.order, q)
	if key != "" {
		b.byKey[key] = q
	}
}

func (b *Batcher) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order) == 0
}

// Flush returns the queued messages, highest priority first and in queue
// order within a priority, and empties the batcher.
func (b *Batcher) Flush() []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return nil
	}
	out := make([]*Message, 0, len(b.order))
	for p := PriorityHigh; p <= PriorityLow; p++ {
		for _, q := range b.order {
			if q.priority == p {
				out = append(out, q.msg)
			}
		}
	}
	b.order = nil
	b.byKey = make(map[string]*queued)
	return out
}

// FlushJSON is Flush encoded as one message or a JSON array. It returns nil
// when nothing is queued.
func (b *Batcher) FlushJSON() ([]byte, error) {
	msgs := b.Flush()
	switch len(msgs) {
	case 0:
		return nil, nil
	case 1:
		return msgs[0].Encode()
	}
	return json.Marshal(msgs)
}
