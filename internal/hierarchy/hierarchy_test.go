package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/pagelayer/internal/layer"
)

// mk builds a list from id/parent pairs.
func mk(pairs ...string) layer.List {
	var ls layer.List
	for i := 0; i+1 < len(pairs); i += 2 {
		ls = append(ls, &layer.Shape{Base: layer.Base{ID: pairs[i], Kind: "rect", ParentID: pairs[i+1]}})
	}
	return ls
}

func TestDescendantsPreOrder(t *testing.T) {
	ls := mk(
		"a", "",
		"b", "a",
		"c", "b",
		"d", "a",
		"e", "",
		"f", "c",
	)
	assert.Equal(t, []string{"b", "c", "f", "d"}, DescendantIDsOf(ls, "a"))
	assert.Empty(t, DescendantIDsOf(ls, "e"))
	assert.Empty(t, DescendantIDsOf(ls, "missing"))
}

func TestDescendantsTerminateOnCycle(t *testing.T) {
	ls := mk(
		"a", "c",
		"b", "a",
		"c", "b",
	)
	got := DescendantIDsOf(ls, "a")
	assert.NotContains(t, got, "a")
	assert.ElementsMatch(t, []string{"b", "c"}, got)

	self := mk("x", "x")
	assert.Empty(t, DescendantIDsOf(self, "x"))
}

func TestCanReparent(t *testing.T) {
	ls := mk(
		"a", "",
		"b", "a",
		"c", "b",
		"d", "",
	)
	assert.False(t, CanReparent(ls, "a", "a"))
	assert.False(t, CanReparent(ls, "a", "b"))
	assert.False(t, CanReparent(ls, "a", "c"))
	assert.True(t, CanReparent(ls, "c", "a"))
	assert.True(t, CanReparent(ls, "a", "d"))
	assert.True(t, CanReparent(ls, "b", ""))
	assert.False(t, CanReparent(ls, "a", "zz"))
	assert.False(t, CanReparent(ls, "zz", "a"))
}

func TestCanReparentMatchesDescendants(t *testing.T) {
	ls := mk(
		"a", "",
		"b", "a",
		"c", "b",
		"d", "a",
		"e", "",
	)
	for _, x := range ls.IDs() {
		desc := DescendantIDsOf(ls, x)
		for _, y := range ls.IDs() {
			want := x != y && !contains(desc, y)
			assert.Equal(t, want, CanReparent(ls, x, y), "%s -> %s", x, y)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func TestReparentRefusesCycle(t *testing.T) {
	ls := mk("x", "", "y", "")
	ls, ok := Reparent(ls, "y", "x")
	require.True(t, ok)
	assert.Equal(t, "x", ls[1].Common().ParentID)

	after, ok := Reparent(ls, "x", "y")
	assert.False(t, ok)
	assert.Equal(t, "", after[0].Common().ParentID)
}

func TestReparentDoesNotTouchInput(t *testing.T) {
	ls := mk("x", "", "y", "")
	out, ok := Reparent(ls, "y", "x")
	require.True(t, ok)
	assert.Equal(t, "", ls[1].Common().ParentID)
	assert.Same(t, ls[0], out[0])
	assert.NotSame(t, ls[1], out[1])
}

func TestSetHiddenCascading(t *testing.T) {
	ls := mk("a", "", "b", "a", "c", "b", "d", "")
	out, ok := SetHiddenCascading(ls, "a", true)
	require.True(t, ok)
	for _, id := range []string{"a", "b", "c"} {
		l, _ := out.Get(id)
		assert.True(t, l.Common().Hidden, id)
	}
	d, _ := out.Get("d")
	assert.False(t, d.Common().Hidden)

	out, ok = SetHiddenCascading(out, "b", false)
	require.True(t, ok)
	a, _ := out.Get("a")
	c, _ := out.Get("c")
	assert.True(t, a.Common().Hidden)
	assert.False(t, c.Common().Hidden)
}

func TestDeleteCascadingOrder(t *testing.T) {
	ls := mk("a", "", "b", "a", "c", "b", "d", "a", "e", "")
	out, removed := DeleteCascading(ls, "a")
	assert.Equal(t, []string{"d", "c", "b", "a"}, removed)
	assert.Equal(t, []string{"e"}, out.IDs())
	assert.Len(t, ls, 5)

	same, removed := DeleteCascading(out, "nope")
	assert.Nil(t, removed)
	assert.Equal(t, out.IDs(), same.IDs())
}

func TestGroupAndUngroup(t *testing.T) {
	ls := mk("a", "", "b", "", "c", "")
	out, moved, ok := Group(ls, "b")
	require.True(t, ok)
	assert.Equal(t, "a", moved)
	a, _ := out.Get("a")
	assert.Equal(t, "b", a.Common().ParentID)

	out, ok = Ungroup(out, "b")
	require.True(t, ok)
	a, _ = out.Get("a")
	assert.Equal(t, "", a.Common().ParentID)

	_, ok = Ungroup(out, "b")
	assert.False(t, ok)
}

func TestGroupFallsBackToSiblingAbove(t *testing.T) {
	ls := mk("a", "", "b", "")
	out, moved, ok := Group(ls, "a")
	require.True(t, ok)
	assert.Equal(t, "b", moved)
	b, _ := out.Get("b")
	assert.Equal(t, "a", b.Common().ParentID)

	_, _, ok = Group(mk("solo", ""), "solo")
	assert.False(t, ok)
}

func TestUngroupNested(t *testing.T) {
	ls := mk("a", "", "b", "a", "c", "b", "d", "b")
	out, ok := Ungroup(ls, "b")
	require.True(t, ok)
	for _, id := range []string{"c", "d"} {
		l, _ := out.Get(id)
		assert.Equal(t, "a", l.Common().ParentID)
	}
}

func TestTreeAndAncestors(t *testing.T) {
	ls := mk("a", "", "b", "a", "c", "b", "o", "ghost")
	roots := Tree(ls)
	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].Layer.Common().ID)
	assert.Equal(t, "o", roots[1].Layer.Common().ID)
	assert.Equal(t, 2, roots[0].Children[0].Children[0].Depth)

	assert.Equal(t, []string{"b", "a"}, Ancestors(ls, "c"))
	assert.Equal(t, 2, Depth(ls, "c"))
	assert.Equal(t, 0, Depth(ls, "o"))
	assert.Equal(t, []string{"a", "o"}, Roots(ls).IDs())

	var order []string
	Walk(roots, false, func(n *Node) { order = append(order, n.Layer.Common().ID) })
	assert.Equal(t, []string{"a", "b", "c", "o"}, order)
}

func TestTreePlacesCycleMembers(t *testing.T) {
	ls := mk("a", "b", "b", "a")
	var seen []string
	Walk(Tree(ls), false, func(n *Node) { seen = append(seen, n.Layer.Common().ID) })
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestWalkSkipsCollapsed(t *testing.T) {
	ls := mk("a", "", "b", "a")
	ls[0].Common().Collapsed = true
	var seen []string
	Walk(Tree(ls), true, func(n *Node) { seen = append(seen, n.Layer.Common().ID) })
	assert.Equal(t, []string{"a"}, seen)
}
