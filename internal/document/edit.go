package document

import (
	"github.com/zot/pagelayer/internal/hierarchy"
	"github.com/zot/pagelayer/internal/layer"
)

func (d *Document) changed(ok bool) bool {
	if ok {
		d.notify(ChangeLayers)
	}
	return ok
}

// Add creates a layer on the active page with type defaults merged with
// overrides, puts it on top and selects it.
func (d *Document) Add(kind layer.Kind, overrides layer.Patch) string {
	id := d.current().Add(kind, overrides)
	d.notify(ChangeLayers)
	d.Select(id)
	return id
}

// Update merges patch into a layer. Missing ids are ignored.
func (d *Document) Update(id string, patch layer.Patch) bool {
	return d.changed(d.current().Update(id, patch))
}

// Delete removes a layer and its descendants and clears a selection or edit
// that pointed at any of them.
func (d *Document) Delete(id string) []string {
	removed := d.current().Remove(id)
	if len(removed) == 0 {
		return nil
	}
	d.notify(ChangeLayers)
	d.reconcile()
	return removed
}

// Reorder rearranges the active page; ids lists every layer bottom first.
func (d *Document) Reorder(ids []string) bool {
	return d.changed(d.current().Reorder(ids))
}

// CanReparent reports whether dragged may be dropped onto target in the tree.
func (d *Document) CanReparent(dragged, target string) bool {
	return hierarchy.CanReparent(d.current().Snapshot(), dragged, target)
}

// Reparent moves dragged under target, or to the top level when target is "".
func (d *Document) Reparent(dragged, target string) bool {
	return d.changed(d.current().Mutate(func(ls layer.List) (layer.List, bool) {
		return hierarchy.Reparent(ls, dragged, target)
	}))
}

// SetHidden hides or shows a layer and all its descendants.
func (d *Document) SetHidden(id string, hidden bool) bool {
	return d.changed(d.current().Mutate(func(ls layer.List) (layer.List, bool) {
		return hierarchy.SetHiddenCascading(ls, id, hidden)
	}))
}

// ToggleCollapsed flips the tree view flag of a layer.
func (d *Document) ToggleCollapsed(id string) bool {
	l, ok := d.current().Get(id)
	if !ok {
		return false
	}
	return d.Update(id, layer.Patch{"collapsed": !l.Common().Collapsed})
}

// Group moves one sibling of the selection under the selection and returns
// the moved id.
func (d *Document) Group() (string, bool) {
	if d.selected == "" {
		return "", false
	}
	var moved string
	ok := d.current().Mutate(func(ls layer.List) (layer.List, bool) {
		out, m, ok := hierarchy.Group(ls, d.selected)
		moved = m
		return out, ok
	})
	return moved, d.changed(ok)
}

// Ungroup moves the selection's direct children up to its parent.
func (d *Document) Ungroup() bool {
	if d.selected == "" {
		return false
	}
	sel := d.selected
	return d.changed(d.current().Mutate(func(ls layer.List) (layer.List, bool) {
		return hierarchy.Ungroup(ls, sel)
	}))
}

// BringForward moves a layer one step up the stack.
func (d *Document) BringForward(id string) bool {
	s := d.current()
	i := s.Snapshot().Index(id)
	return i >= 0 && d.changed(s.MoveTo(id, i+1))
}

// SendBackward moves a layer one step down the stack.
func (d *Document) SendBackward(id string) bool {
	s := d.current()
	i := s.Snapshot().Index(id)
	return i > 0 && d.changed(s.MoveTo(id, i-1))
}

// BringToFront makes a layer topmost.
func (d *Document) BringToFront(id string) bool {
	s := d.current()
	return d.changed(s.MoveTo(id, s.Len()-1))
}

// SendToBack makes a layer bottommost.
func (d *Document) SendToBack(id string) bool {
	return d.changed(d.current().MoveTo(id, 0))
}

// Transmute turns placeholder id into an image showing src. Any other layer
// kind is refused.
func (d *Document) Transmute(id, src string) bool {
	l, ok := d.current().Get(id)
	if !ok {
		return false
	}
	ph, ok := l.(*layer.Placeholder)
	if !ok {
		return false
	}
	return d.changed(d.current().Set(layer.Transmute(ph, src)))
}

// SetCell writes one table cell. Cells outside the grid are refused.
func (d *Document) SetCell(id string, row, col int, value string) bool {
	l, ok := d.current().Get(id)
	if !ok {
		return false
	}
	t, ok := l.(*layer.Table)
	if !ok || !t.SetCell(row, col, value) {
		return false
	}
	return d.changed(d.current().Set(t))
}

// Undo restores the active page's previous snapshot.
func (d *Document) Undo() bool {
	return d.travel(true)
}

// Redo re-applies the last undone change on the active page.
func (d *Document) Redo() bool {
	return d.travel(false)
}

func (d *Document) travel(back bool) bool {
	d.gesture = nil
	s := d.current()
	var snap layer.List
	var ok bool
	if back {
		snap, ok = d.history.Undo(d.active, s.All())
	} else {
		snap, ok = d.history.Redo(d.active, s.All())
	}
	if !ok {
		return false
	}
	s.Replace(snap)
	d.notify(ChangeLayers)
	d.reconcile()
	return true
}

// CanUndo reports whether the active page has something to undo.
func (d *Document) CanUndo() bool {
	return d.history.CanUndo(d.active)
}

// CanRedo reports whether the active page has something to redo.
func (d *Document) CanRedo() bool {
	return d.history.CanRedo(d.active)
}

// BeginGesture marks the start of a pointer gesture on the active page. The
// changes made until EndGesture form one undo step when coalescing is on.
func (d *Document) BeginGesture() {
	d.begin()
	d.history.BeginGesture(d.active)
}

// BeginStep is BeginGesture for edits that always form one undo step, such
// as a script run, regardless of the coalescing setting.
func (d *Document) BeginStep() {
	d.begin()
	d.history.BeginStep(d.active)
}

func (d *Document) begin() {
	if d.gesture != nil {
		d.EndGesture()
	}
	d.gesture = &gesture{page: d.active, start: d.current().All()}
}

// EndGesture closes the open gesture.
func (d *Document) EndGesture() {
	if d.gesture == nil {
		return
	}
	d.history.EndGesture(d.gesture.page)
	d.gesture = nil
}

// InGesture reports whether a gesture is open.
func (d *Document) InGesture() bool {
	return d.gesture != nil
}

// CancelGesture puts the page back the way it was when the gesture began.
// When the gesture coalesced, its undo step is dropped as well; otherwise the
// restore is recorded as one more step.
func (d *Document) CancelGesture() bool {
	g := d.gesture
	if g == nil {
		return false
	}
	d.gesture = nil
	s := d.page(g.page).store
	if snap, ok := d.history.RollbackGesture(g.page); ok {
		s.Replace(snap)
	} else if !layer.Equal(s.Snapshot(), g.start) {
		start := g.start
		s.Mutate(func(layer.List) (layer.List, bool) { return start.Clone(), true })
	} else {
		return false
	}
	d.notify(ChangeLayers)
	d.reconcile()
	return true
}

// Key is one keyboard event.
type Key struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// HandleKey runs the undo and redo shortcuts: Ctrl or Cmd with Z undoes, with
// Shift+Z redoes. Keys typed while focus is in an editable text surface are
// left alone; a layer in inline editing holds that focus whatever the view
// reports. It reports whether the key was a shortcut.
func (d *Document) HandleKey(k Key, focusEditable bool) bool {
	if focusEditable || d.editing != "" || !(k.Ctrl || k.Meta) {
		return false
	}
	if k.Key != "z" && k.Key != "Z" {
		return false
	}
	if k.Shift {
		d.Redo()
	} else {
		d.Undo()
	}
	return true
}
