// Package history keeps a bounded undo/redo log of layer snapshots per page.
//
// Entries are full snapshots of a page's layer list. A page's log is created
// on first use and is never touched by edits on other pages.
package history

import (
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
)

// DefaultLimit is the capacity of each stack.
const DefaultLimit = 50

type pageLog struct {
	past   []layer.List
	future []layer.List

	// open gesture state
	inGesture bool
	recorded  bool
}

// Manager holds the logs of every page.
type Manager struct {
	limit    int
	coalesce bool
	pages    map[int]*pageLog
	log      *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimit sets the capacity of each stack. Values < 1 keep the default.
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithCoalescing controls whether a gesture records at most one entry.
func WithCoalescing(on bool) Option {
	return func(m *Manager) { m.coalesce = on }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = logging.OrNop(l) }
}

// New creates a manager with gesture coalescing on.
func New(opts ...Option) *Manager {
	m := &Manager{
		limit:    DefaultLimit,
		coalesce: true,
		pages:    make(map[int]*pageLog),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limit returns the capacity of each stack.
func (m *Manager) Limit() int {
	return m.limit
}

func (m *Manager) page(p int) *pageLog {
	pl := m.pages[p]
	if pl == nil {
		pl = &pageLog{}
		m.pages[p] = pl
	}
	return pl
}

// push appends s, dropping the oldest entry when the stack is full.
func (m *Manager) push(stack []layer.List, s layer.List) []layer.List {
	return m.trim(append(stack, s))
}

// trim drops the oldest entries beyond the limit.
func (m *Manager) trim(stack []layer.List) []layer.List {
	if over := len(stack) - m.limit; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

// RecordIfChanged pushes prev onto page's past when prev and next differ by
// value, and clears the redo stack. Inside a coalescing gesture only the
// first change records, and the oldest entry is not evicted until the
// gesture ends so a rollback leaves the stack as it was. It reports whether
// an entry was pushed.
func (m *Manager) RecordIfChanged(page int, prev, next layer.List) bool {
	if layer.Equal(prev, next) {
		return false
	}
	pl := m.page(page)
	if pl.inGesture && pl.recorded {
		return false
	}
	if pl.inGesture {
		pl.past = append(pl.past, prev.Clone())
		pl.recorded = true
	} else {
		pl.past = m.push(pl.past, prev.Clone())
	}
	pl.future = nil
	m.log.Log(3, "history page %d: recorded, past=%d", page, len(pl.past))
	return true
}

// Undo pops the newest past snapshot and pushes current onto the redo stack.
// It returns the snapshot to restore, or false when there is nothing to undo.
// An open gesture is closed first.
func (m *Manager) Undo(page int, current layer.List) (layer.List, bool) {
	pl := m.page(page)
	m.close(pl)
	if len(pl.past) == 0 {
		return nil, false
	}
	last := len(pl.past) - 1
	snap := pl.past[last]
	pl.past = pl.past[:last]
	pl.future = m.push(pl.future, current.Clone())
	m.log.Log(3, "history page %d: undo, past=%d future=%d", page, len(pl.past), len(pl.future))
	return snap.Clone(), true
}

// Redo is the mirror of Undo.
func (m *Manager) Redo(page int, current layer.List) (layer.List, bool) {
	pl := m.page(page)
	m.close(pl)
	if len(pl.future) == 0 {
		return nil, false
	}
	last := len(pl.future) - 1
	snap := pl.future[last]
	pl.future = pl.future[:last]
	pl.past = m.push(pl.past, current.Clone())
	m.log.Log(3, "history page %d: redo, past=%d future=%d", page, len(pl.past), len(pl.future))
	return snap.Clone(), true
}

// CanUndo reports whether page has past entries.
func (m *Manager) CanUndo(page int) bool {
	pl := m.pages[page]
	return pl != nil && len(pl.past) > 0
}

// CanRedo reports whether page has future entries.
func (m *Manager) CanRedo(page int) bool {
	pl := m.pages[page]
	return pl != nil && len(pl.future) > 0
}

// Depth returns the sizes of page's past and future stacks.
func (m *Manager) Depth(page int) (past, future int) {
	if pl := m.pages[page]; pl != nil {
		return len(pl.past), len(pl.future)
	}
	return 0, 0
}

// Clear drops page's log.
func (m *Manager) Clear(page int) {
	delete(m.pages, page)
}

// BeginGesture opens a gesture on page. Until EndGesture, at most one entry
// is recorded: the snapshot from before the gesture's first change. Without
// coalescing it does nothing.
func (m *Manager) BeginGesture(page int) {
	if m.coalesce {
		m.BeginStep(page)
	}
}

// BeginStep opens a gesture on page whether or not coalescing is on.
func (m *Manager) BeginStep(page int) {
	pl := m.page(page)
	pl.inGesture, pl.recorded = true, false
}

// EndGesture closes the open gesture on page.
func (m *Manager) EndGesture(page int) {
	if pl := m.pages[page]; pl != nil {
		m.close(pl)
	}
}

// close ends pl's gesture and applies the eviction it deferred.
func (m *Manager) close(pl *pageLog) {
	pl.inGesture, pl.recorded = false, false
	pl.past = m.trim(pl.past)
}

// InGesture reports whether a gesture is open on page.
func (m *Manager) InGesture(page int) bool {
	pl := m.pages[page]
	return pl != nil && pl.inGesture
}

// RollbackGesture closes the open gesture and, when it recorded an entry,
// pops that entry and returns it so the caller can restore the state from
// before the gesture. Nothing is pushed onto the redo stack.
func (m *Manager) RollbackGesture(page int) (layer.List, bool) {
	pl := m.pages[page]
	if pl == nil || !pl.inGesture {
		return nil, false
	}
	recorded := pl.recorded
	pl.inGesture, pl.recorded = false, false
	if !recorded || len(pl.past) == 0 {
		return nil, false
	}
	last := len(pl.past) - 1
	snap := pl.past[last]
	pl.past = pl.past[:last]
	m.log.Log(3, "history page %d: gesture rolled back", page)
	return snap.Clone(), true
}

// PageRecorder feeds one page's store changes into the manager.
type PageRecorder struct {
	m    *Manager
	page int
}

// Record implements the store's recorder hook.
func (r PageRecorder) Record(prev, next layer.List) {
	r.m.RecordIfChanged(r.page, prev, next)
}

// ForPage adapts the manager to one page's store.
func (m *Manager) ForPage(page int) PageRecorder {
	return PageRecorder{m: m, page: page}
}
