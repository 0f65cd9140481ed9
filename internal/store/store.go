// Package store holds the authoritative layer list of one page.
//
// Array order is the stacking order and is authoritative: after every change
// each layer's Z is rewritten to its index. Every committed change is reported
// to the Recorder with the list from before and after the change, and written
// through to the storage backend when one is set.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/zot/pagelayer/internal/hierarchy"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/storage"
)

// persistTimeout bounds one write-through to the backend.
const persistTimeout = 5 * time.Second

// Recorder receives every committed change.
type Recorder interface {
	Record(prev, next layer.List)
}

// Store is one page's layer collection.
type Store struct {
	page    int
	layers  layer.List
	rec     Recorder
	newID   func() string
	backend storage.Backend
	log     *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder sets the change recorder, normally a history page recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// WithIDs replaces the id generator.
func WithIDs(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithBackend writes every change through to b.
func WithBackend(b storage.Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = logging.OrNop(l) }
}

// New creates an empty store for page.
func New(page int, opts ...Option) *Store {
	s := &Store{
		page:  page,
		newID: uuid.NewString,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Page returns the page number.
func (s *Store) Page() int {
	return s.page
}

// All returns a copy of the layers in stacking order.
func (s *Store) All() layer.List {
	return s.layers.Clone()
}

// Snapshot returns the live list without copying. Callers must not modify it.
func (s *Store) Snapshot() layer.List {
	return s.layers
}

// Len returns the number of layers.
func (s *Store) Len() int {
	return len(s.layers)
}

// Get returns a copy of one layer.
func (s *Store) Get(id string) (layer.Layer, bool) {
	l, ok := s.layers.Get(id)
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// Has reports whether id is on the page.
func (s *Store) Has(id string) bool {
	return s.layers.Has(id)
}

// Add creates a layer of kind with its defaults, merges overrides and puts it
// on top. Unknown kinds become a generic rectangle. Overrides that do not fit
// the layer are dropped and the defaults kept. A parentId that is not on the
// page is cleared.
func (s *Store) Add(kind layer.Kind, overrides layer.Patch) string {
	id := s.newID()
	l, err := layer.New(kind, id, overrides)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("add: overrides ignored")
	}
	if b := l.Common(); b.ParentID != "" && !s.layers.Has(b.ParentID) {
		b.ParentID = ""
	}
	next := append(s.layers[:len(s.layers):len(s.layers)], l)
	s.commit(next)
	s.log.Log(3, "page %d: add %s %s", s.page, kind, id)
	return id
}

// Update merges patch into layer id. A missing id, an invalid value or a
// parentId change that would break the tree leaves the page unchanged and
// returns false. An empty patch changes nothing and records nothing.
func (s *Store) Update(id string, patch layer.Patch) bool {
	i := s.layers.Index(id)
	if i < 0 {
		return false
	}
	cur := s.layers[i]
	updated, err := layer.Apply(cur, patch)
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("update rejected")
		return false
	}
	if p := updated.Common().ParentID; p != cur.Common().ParentID && !hierarchy.CanReparent(s.layers, id, p) {
		s.log.Log(3, "page %d: update %s refused parent %q", s.page, id, p)
		return false
	}
	next := append(layer.List(nil), s.layers...)
	next[i] = updated
	s.commit(next)
	s.log.Log(3, "page %d: update %s", s.page, id)
	s.log.Log(4, "page %d: update %s %v", s.page, id, patch)
	return true
}

// Set swaps layer id for l, which must carry the same id. It is how a layer
// changes variant.
func (s *Store) Set(l layer.Layer) bool {
	i := s.layers.Index(l.Common().ID)
	if i < 0 {
		return false
	}
	next := append(layer.List(nil), s.layers...)
	repl := l.Clone()
	repl.Common().ParentID = s.layers[i].Common().ParentID
	next[i] = repl
	s.commit(next)
	return true
}

// Remove deletes id and its descendants, deepest first. It returns the
// removed ids, or nil when id is not on the page.
func (s *Store) Remove(id string) []string {
	next, removed := hierarchy.DeleteCascading(s.layers, id)
	if len(removed) == 0 {
		return nil
	}
	s.commit(next)
	s.log.Log(3, "page %d: remove %v", s.page, removed)
	return removed
}

// Reorder rearranges the page to follow ids, bottom first. ids must name
// every layer exactly once.
func (s *Store) Reorder(ids []string) bool {
	if len(ids) != len(s.layers) {
		return false
	}
	next := make(layer.List, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		l, ok := s.layers.Get(id)
		if !ok || seen[id] {
			return false
		}
		seen[id] = true
		next = append(next, l)
	}
	s.commit(next)
	return true
}

// MoveTo moves id to stacking index to, clamped to the list bounds.
func (s *Store) MoveTo(id string, to int) bool {
	from := s.layers.Index(id)
	if from < 0 {
		return false
	}
	if to < 0 {
		to = 0
	}
	if to >= len(s.layers) {
		to = len(s.layers) - 1
	}
	if to == from {
		return false
	}
	next := append(layer.List(nil), s.layers...)
	l := next[from]
	next = append(next[:from], next[from+1:]...)
	next = append(next[:to], append(layer.List{l}, next[to:]...)...)
	s.commit(next)
	return true
}

// Mutate commits the list fn returns when fn reports a change. fn receives
// the live list and must not modify it in place.
func (s *Store) Mutate(fn func(layer.List) (layer.List, bool)) bool {
	next, ok := fn(s.layers)
	if !ok {
		return false
	}
	s.commit(append(layer.List(nil), next...))
	return true
}

// Replace swaps the whole list without reporting to the recorder. Undo, redo
// and loading use it.
func (s *Store) Replace(ls layer.List) {
	s.layers = reindex(ls.Clone())
	if s.backend != nil {
		s.persistAll()
	}
}

func (s *Store) commit(next layer.List) {
	next = reindex(next)
	prev := s.layers
	if s.rec != nil {
		s.rec.Record(prev, next)
	}
	s.layers = next
	if s.backend != nil {
		s.persistDiff(prev, next)
	}
}

// reindex rewrites Z to the stacking index, cloning layers whose Z moves so
// older snapshots keep their values.
func reindex(ls layer.List) layer.List {
	for i, l := range ls {
		if l.Common().Z != i {
			c := l.Clone()
			c.Common().Z = i
			ls[i] = c
		}
	}
	return ls
}

// Records encodes a page's layers for storage.
func Records(page int, ls layer.List) ([]*storage.LayerData, error) {
	out := make([]*storage.LayerData, 0, len(ls))
	for i, l := range ls {
		d, err := record(page, i, l)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func record(page, pos int, l layer.Layer) (*storage.LayerData, error) {
	b := l.Common()
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode layer %s: %w", b.ID, err)
	}
	return &storage.LayerData{
		Page:     page,
		ID:       b.ID,
		ParentID: b.ParentID,
		Position: pos,
		Kind:     string(b.Kind),
		Record:   raw,
	}, nil
}

// FromRecords decodes stored records, in the order given.
func FromRecords(records []*storage.LayerData) (layer.List, error) {
	out := make(layer.List, 0, len(records))
	for _, r := range records {
		l, err := layer.Decode(r.Record)
		if err != nil {
			return nil, fmt.Errorf("decode layer %s: %w", r.ID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) persistAll() {
	records, err := Records(s.page, s.layers)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		err = storage.ReplacePage(ctx, s.backend, s.page, records)
	}
	if err != nil {
		s.log.Error().Err(err).Int("page", s.page).Msg("persist page")
	}
}

func (s *Store) persistDiff(prev, next layer.List) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := s.writeDiff(ctx, prev, next)
	if err != nil {
		s.log.Error().Err(err).Int("page", s.page).Msg("persist change")
	}
}

func (s *Store) writeDiff(ctx context.Context, prev, next layer.List) (err error) {
	tx, err := s.backend.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	old := make(map[string]layer.Layer, len(prev))
	for _, l := range prev {
		old[l.Common().ID] = l
	}
	for i, l := range next {
		id := l.Common().ID
		if o, ok := old[id]; ok && o == l {
			delete(old, id)
			continue
		}
		delete(old, id)
		d, err := record(s.page, i, l)
		if err != nil {
			return err
		}
		if err = tx.Store(ctx, d); err != nil {
			return err
		}
	}
	for id := range old {
		if err = tx.Delete(ctx, s.page, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
