package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type key struct {
	page int
	id   string
}

// MemoryStorage is an in-memory storage backend.
type MemoryStorage struct {
	records map[key]*LayerData
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[key]*LayerData)}
}

func copyData(d *LayerData) *LayerData {
	c := *d
	c.Record = append([]byte(nil), d.Record...)
	return &c
}

// Store persists a record to memory.
func (m *MemoryStorage) Store(_ context.Context, d *LayerData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key{d.Page, d.ID}] = copyData(d)
	return nil
}

// Load retrieves a record from memory.
func (m *MemoryStorage) Load(_ context.Context, page int, id string) (*LayerData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.records[key{page, id}]
	if !ok {
		return nil, notFound(page, id)
	}
	return copyData(d), nil
}

// Delete removes a record from memory.
func (m *MemoryStorage) Delete(_ context.Context, page int, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key{page, id})
	return nil
}

// LoadPage returns the page's records by position.
func (m *MemoryStorage) LoadPage(_ context.Context, page int) ([]*LayerData, error) {
	return m.collect(func(d *LayerData) bool { return d.Page == page }), nil
}

// LoadChildren gets all child records of a parent.
func (m *MemoryStorage) LoadChildren(_ context.Context, page int, parentID string) ([]*LayerData, error) {
	return m.collect(func(d *LayerData) bool {
		return d.Page == page && d.ParentID == parentID
	}), nil
}

func (m *MemoryStorage) collect(match func(*LayerData) bool) []*LayerData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*LayerData
	for _, d := range m.records {
		if match(d) {
			out = append(out, copyData(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pages lists pages with records.
func (m *MemoryStorage) Pages(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[int]bool{}
	var pages []int
	for k := range m.records {
		if !seen[k.page] {
			seen[k.page] = true
			pages = append(pages, k.page)
		}
	}
	sort.Ints(pages)
	return pages, nil
}

// Exists checks if a record exists.
func (m *MemoryStorage) Exists(_ context.Context, page int, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key{page, id}]
	return ok
}

// ClearPage removes a page's records.
func (m *MemoryStorage) ClearPage(_ context.Context, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPageLocked(page)
	return nil
}

func (m *MemoryStorage) clearPageLocked(page int) {
	for k := range m.records {
		if k.page == page {
			delete(m.records, k)
		}
	}
}

// Clear removes all data.
func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[key]*LayerData)
	return nil
}

// BeginTransaction starts an atomic operation.
func (m *MemoryStorage) BeginTransaction(_ context.Context) (Transaction, error) {
	return &memoryTransaction{storage: m}, nil
}

// Close closes the storage backend.
func (m *MemoryStorage) Close() error {
	return nil
}

// Count returns the number of stored records.
func (m *MemoryStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var errTxDone = errors.New("transaction already committed")

type txOp struct {
	clear bool
	del   bool
	page  int
	id    string
	data  *LayerData
}

// memoryTransaction queues operations and applies them under one lock.
type memoryTransaction struct {
	storage *MemoryStorage
	ops     []txOp
	done    bool
}

func (tx *memoryTransaction) queue(op txOp) error {
	if tx.done {
		return errTxDone
	}
	tx.ops = append(tx.ops, op)
	return nil
}

func (tx *memoryTransaction) Store(_ context.Context, d *LayerData) error {
	return tx.queue(txOp{data: copyData(d)})
}

func (tx *memoryTransaction) Delete(_ context.Context, page int, id string) error {
	return tx.queue(txOp{del: true, page: page, id: id})
}

func (tx *memoryTransaction) ClearPage(_ context.Context, page int) error {
	return tx.queue(txOp{clear: true, page: page})
}

// Commit applies all queued operations in order.
func (tx *memoryTransaction) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	m := tx.storage
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range tx.ops {
		switch {
		case op.clear:
			m.clearPageLocked(op.page)
		case op.del:
			delete(m.records, key{op.page, op.id})
		default:
			m.records[key{op.data.Page, op.data.ID}] = op.data
		}
	}
	return nil
}

// Rollback discards all queued operations.
func (tx *memoryTransaction) Rollback() error {
	tx.done = true
	tx.ops = nil
	return nil
}
