// Package document is the editing context of a multi-page document.
//
// A Document owns one layer store per page, the per-page undo history, the
// active page, the selection and the layer being edited inline. Everything the
// presentation layer can do to layers goes through it, so the selection and
// editing invariants hold after every call. A Document is not safe for
// concurrent use; callers serialize access.
package document

import (
	"sort"

	"github.com/zot/pagelayer/internal/history"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/storage"
	"github.com/zot/pagelayer/internal/store"
	"github.com/zot/pagelayer/internal/transform"
)

// ChangeKind says what part of the document changed.
type ChangeKind string

const (
	ChangeLayers    ChangeKind = "layers"
	ChangeSelection ChangeKind = "selection"
	ChangePage      ChangeKind = "page"
)

// Change is passed to OnChange listeners.
type Change struct {
	Page int
	Kind ChangeKind
}

// Config holds the document's tunables.
type Config struct {
	HistoryLimit     int
	CoalesceGestures bool
	// Backend, when set, receives every layer change as it happens.
	Backend storage.Backend
	// IDs generates layer ids. Defaults to random UUIDs.
	IDs    func() string
	Logger *logging.Logger
}

// DefaultConfig returns the editor defaults.
func DefaultConfig() Config {
	return Config{HistoryLimit: history.DefaultLimit, CoalesceGestures: true}
}

type page struct {
	store *store.Store
	size  transform.Size
}

type gesture struct {
	page  int
	start layer.List
}

// Document is the editing context.
type Document struct {
	cfg        Config
	pages      map[int]*page
	active     int
	selected   string
	editing    string
	history    *history.Manager
	gesture    *gesture
	nextStyles layer.Patch
	listeners  []func(Change)
	log        *logging.Logger
}

// New creates a document whose active page is 1.
func New(cfg Config) *Document {
	d := &Document{
		cfg:    cfg,
		pages:  make(map[int]*page),
		active: 1,
		log:    logging.OrNop(cfg.Logger),
	}
	d.history = history.New(
		history.WithLimit(cfg.HistoryLimit),
		history.WithCoalescing(cfg.CoalesceGestures),
		history.WithLogger(d.log),
	)
	return d
}

func (d *Document) page(n int) *page {
	p := d.pages[n]
	if p == nil {
		opts := []store.Option{
			store.WithRecorder(d.history.ForPage(n)),
			store.WithLogger(d.log),
		}
		if d.cfg.IDs != nil {
			opts = append(opts, store.WithIDs(d.cfg.IDs))
		}
		if d.cfg.Backend != nil {
			opts = append(opts, store.WithBackend(d.cfg.Backend))
		}
		p = &page{store: store.New(n, opts...)}
		d.pages[n] = p
	}
	return p
}

func (d *Document) current() *store.Store {
	return d.page(d.active).store
}

// OnChange registers a listener called after every change.
func (d *Document) OnChange(fn func(Change)) {
	d.listeners = append(d.listeners, fn)
}

func (d *Document) notify(kind ChangeKind) {
	c := Change{Page: d.active, Kind: kind}
	for _, fn := range d.listeners {
		fn(c)
	}
}

// History exposes the undo manager, mostly for inspection.
func (d *Document) History() *history.Manager {
	return d.history
}

// ActivePage returns the page being edited.
func (d *Document) ActivePage() int {
	return d.active
}

// SetActivePage switches pages. Layers and history of every page are kept;
// the selection, inline editing and any open gesture end.
func (d *Document) SetActivePage(n int) {
	if n == d.active {
		return
	}
	d.EndGesture()
	d.selected, d.editing = "", ""
	d.active = n
	d.page(n)
	d.log.Log(1, "active page %d", n)
	d.notify(ChangePage)
}

// Pages lists the pages that have been touched, ascending.
func (d *Document) Pages() []int {
	out := make([]int, 0, len(d.pages))
	for n := range d.pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// SetPageSize records a page's natural size in document units, as reported
// by the renderer once the page is loaded.
func (d *Document) SetPageSize(n int, width, height float64) {
	d.page(n).size = transform.Size{Width: width, Height: height}
}

// PageSize returns a page's natural size, zero when unknown.
func (d *Document) PageSize(n int) transform.Size {
	if p := d.pages[n]; p != nil {
		return p.size
	}
	return transform.Size{}
}

// Layers returns a copy of the active page's layers in stacking order.
func (d *Document) Layers() layer.List {
	return d.current().All()
}

// LayersOf returns a copy of page n's layers.
func (d *Document) LayersOf(n int) layer.List {
	if p := d.pages[n]; p != nil {
		return p.store.All()
	}
	return nil
}

// Layer returns a copy of one layer on the active page.
func (d *Document) Layer(id string) (layer.Layer, bool) {
	return d.current().Get(id)
}

// Selected returns the selected layer id, or "".
func (d *Document) Selected() string {
	return d.selected
}

// Editing returns the id of the layer in inline edit, or "".
func (d *Document) Editing() string {
	return d.editing
}

// Select sets the selection. "" deselects. Selecting a missing id is refused.
// Any change of selection ends inline editing.
func (d *Document) Select(id string) bool {
	if id != "" && !d.current().Has(id) {
		return false
	}
	if id == d.selected {
		return true
	}
	d.selected = id
	d.editing = ""
	d.notify(ChangeSelection)
	return true
}

// BeginEditing puts the selected text layer into inline edit.
func (d *Document) BeginEditing(id string) bool {
	if id == "" || id != d.selected {
		return false
	}
	l, ok := d.current().Get(id)
	if !ok {
		return false
	}
	if _, isText := l.(*layer.Text); !isText {
		return false
	}
	d.editing = id
	d.notify(ChangeSelection)
	return true
}

// EndEditing leaves inline edit. The selection stays.
func (d *Document) EndEditing() {
	if d.editing == "" {
		return
	}
	d.editing = ""
	d.notify(ChangeSelection)
}

// NextStyles returns the text style applied to text dropped from the palette
// while nothing is selected.
func (d *Document) NextStyles() layer.Patch {
	out := make(layer.Patch, len(d.nextStyles))
	for k, v := range d.nextStyles {
		out[k] = v
	}
	return out
}

// SetNextStyles merges p into the palette text style.
func (d *Document) SetNextStyles(p layer.Patch) {
	if d.nextStyles == nil {
		d.nextStyles = layer.Patch{}
	}
	for k, v := range p {
		d.nextStyles[k] = v
	}
}

// reconcile drops a selection or edit target that no longer exists.
func (d *Document) reconcile() {
	s := d.current()
	changed := false
	if d.selected != "" && !s.Has(d.selected) {
		d.selected = ""
		changed = true
	}
	if d.editing != "" && (d.editing != d.selected || !s.Has(d.editing)) {
		d.editing = ""
		changed = true
	}
	if changed {
		d.notify(ChangeSelection)
	}
}
