package hierarchy

import "github.com/zot/pagelayer/internal/layer"

// edit copies ls and lets fn change clones of the layers it asks for.
type edit struct {
	ls     layer.List
	cloned map[int]bool
}

func newEdit(ls layer.List) *edit {
	return &edit{ls: append(layer.List(nil), ls...), cloned: map[int]bool{}}
}

func (e *edit) at(i int) *layer.Base {
	if !e.cloned[i] {
		e.ls[i] = e.ls[i].Clone()
		e.cloned[i] = true
	}
	return e.ls[i].Common()
}

func (e *edit) byID(id string) *layer.Base {
	if i := e.ls.Index(id); i >= 0 {
		return e.at(i)
	}
	return nil
}

// Reparent moves dragged under newParent ("" for top level). It returns
// false and the input unchanged when CanReparent refuses.
func Reparent(ls layer.List, dragged, newParent string) (layer.List, bool) {
	if !CanReparent(ls, dragged, newParent) {
		return ls, false
	}
	e := newEdit(ls)
	e.byID(dragged).ParentID = newParent
	return e.ls, true
}

// SetHiddenCascading writes hidden to id and to every descendant. Each layer
// carries its own flag; visibility is not inherited when painting.
func SetHiddenCascading(ls layer.List, id string, hidden bool) (layer.List, bool) {
	if !ls.Has(id) {
		return ls, false
	}
	e := newEdit(ls)
	e.byID(id).Hidden = hidden
	for _, d := range DescendantIDsOf(ls, id) {
		e.byID(d).Hidden = hidden
	}
	return e.ls, true
}

// DeleteCascading removes id and all its descendants. The returned ids are in
// removal order: descendants in reverse pre-order, then id.
func DeleteCascading(ls layer.List, id string) (layer.List, []string) {
	if !ls.Has(id) {
		return ls, nil
	}
	desc := DescendantIDsOf(ls, id)
	removed := make([]string, 0, len(desc)+1)
	for i := len(desc) - 1; i >= 0; i-- {
		removed = append(removed, desc[i])
	}
	removed = append(removed, id)

	out := ls
	for _, r := range removed {
		i := out.Index(r)
		next := make(layer.List, 0, len(out)-1)
		next = append(next, out[:i]...)
		out = append(next, out[i+1:]...)
	}
	return out, removed
}

// GroupCandidate picks the sibling that Group would move under id: the
// nearest sibling below it in stacking order, else the nearest above.
func GroupCandidate(ls layer.List, id string) (string, bool) {
	i := ls.Index(id)
	if i < 0 {
		return "", false
	}
	parent := ls[i].Common().ParentID
	for j := i - 1; j >= 0; j-- {
		if b := ls[j].Common(); b.ParentID == parent && CanReparent(ls, b.ID, id) {
			return b.ID, true
		}
	}
	for j := i + 1; j < len(ls); j++ {
		if b := ls[j].Common(); b.ParentID == parent && CanReparent(ls, b.ID, id) {
			return b.ID, true
		}
	}
	return "", false
}

// Group moves one sibling of id under id. It returns the moved id.
func Group(ls layer.List, id string) (layer.List, string, bool) {
	sib, ok := GroupCandidate(ls, id)
	if !ok {
		return ls, "", false
	}
	out, ok := Reparent(ls, sib, id)
	return out, sib, ok
}

// Ungroup moves the direct children of id up to id's own parent, flattening
// one level. It reports false when id has no children.
func Ungroup(ls layer.List, id string) (layer.List, bool) {
	l, ok := ls.Get(id)
	if !ok {
		return ls, false
	}
	parent := l.Common().ParentID
	if parent != "" && !ls.Has(parent) {
		parent = ""
	}
	children := ChildrenOf(ls, id)
	if len(children) == 0 {
		return ls, false
	}
	e := newEdit(ls)
	for _, c := range children {
		e.byID(c.Common().ID).ParentID = parent
	}
	return e.ls, true
}
