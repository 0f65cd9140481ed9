// Package hierarchy derives a tree from a flat layer list through parent ids.
//
// The flat list stays the source of truth. Nothing here keeps state between
// calls: every query builds what it needs from the list it is given, and the
// edit helpers return a new list, cloning only the layers they change.
package hierarchy

import "github.com/zot/pagelayer/internal/layer"

// index maps a parent id to the positions of its children in stacking order.
type index map[string][]int

func buildIndex(ls layer.List) index {
	idx := make(index, len(ls))
	for i, l := range ls {
		p := l.Common().ParentID
		idx[p] = append(idx[p], i)
	}
	return idx
}

// ChildrenOf returns the direct children of id in stacking order.
func ChildrenOf(ls layer.List, id string) layer.List {
	var out layer.List
	for _, l := range ls {
		if id != "" && l.Common().ParentID == id {
			out = append(out, l)
		}
	}
	return out
}

// DescendantIDsOf lists every layer below id, pre-order, siblings in stacking
// order. The result never contains id itself. Cycles in malformed data are
// cut at the first repeat, so the walk visits each layer at most once.
func DescendantIDsOf(ls layer.List, id string) []string {
	if id == "" {
		return nil
	}
	idx := buildIndex(ls)
	seen := map[string]bool{id: true}
	var out []string
	var walk func(parent string)
	walk = func(parent string) {
		for _, i := range idx[parent] {
			child := ls[i].Common().ID
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			walk(child)
		}
	}
	walk(id)
	return out
}

// CanReparent reports whether dragged may be placed under target. An empty
// target means top level. Both ids must exist; a layer can not go under
// itself or anything below it.
func CanReparent(ls layer.List, dragged, target string) bool {
	if !ls.Has(dragged) {
		return false
	}
	if target == "" {
		return true
	}
	if dragged == target || !ls.Has(target) {
		return false
	}
	for _, d := range DescendantIDsOf(ls, dragged) {
		if d == target {
			return false
		}
	}
	return true
}

// Roots returns the layers shown at the top of the tree: those without a
// parent and those whose parent is missing.
func Roots(ls layer.List) layer.List {
	var out layer.List
	for _, l := range ls {
		if p := l.Common().ParentID; p == "" || !ls.Has(p) {
			out = append(out, l)
		}
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. The walk stops at
// a missing parent or a repeat.
func Ancestors(ls layer.List, id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	cur, ok := ls.Get(id)
	for ok {
		p := cur.Common().ParentID
		if p == "" || seen[p] {
			break
		}
		if cur, ok = ls.Get(p); ok {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Depth is the number of ancestors of id.
func Depth(ls layer.List, id string) int {
	return len(Ancestors(ls, id))
}

// Node is one entry of the derived tree view.
type Node struct {
	Layer    layer.Layer
	Depth    int
	Children []*Node
}

// Tree builds the sidebar tree. Layers caught in a parent cycle are placed at
// the top level so every layer appears exactly once.
func Tree(ls layer.List) []*Node {
	idx := buildIndex(ls)
	placed := make(map[string]bool, len(ls))
	var build func(i, depth int) *Node
	build = func(i, depth int) *Node {
		l := ls[i]
		id := l.Common().ID
		placed[id] = true
		n := &Node{Layer: l, Depth: depth}
		for _, c := range idx[id] {
			if !placed[ls[c].Common().ID] {
				n.Children = append(n.Children, build(c, depth+1))
			}
		}
		return n
	}
	var roots []*Node
	for i, l := range ls {
		if p := l.Common().ParentID; p == "" || !ls.Has(p) {
			roots = append(roots, build(i, 0))
		}
	}
	for i, l := range ls {
		if !placed[l.Common().ID] {
			roots = append(roots, build(i, 0))
		}
	}
	return roots
}

// Walk visits the tree pre-order. Collapsed nodes are visited but their
// children are skipped when skipCollapsed is set.
func Walk(nodes []*Node, skipCollapsed bool, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		if skipCollapsed && n.Layer.Common().Collapsed {
			continue
		}
		Walk(n.Children, skipCollapsed, fn)
	}
}
