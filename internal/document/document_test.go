package document

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/storage"
)

func newDoc(t *testing.T) *Document {
	t.Helper()
	n := 0
	cfg := DefaultConfig()
	cfg.IDs = func() string {
		n++
		return fmt.Sprintf("L%d", n)
	}
	return New(cfg)
}

func fontSize(t *testing.T, d *Document, id string) float64 {
	t.Helper()
	l, ok := d.Layer(id)
	require.True(t, ok)
	return l.(*layer.Text).FontSize
}

func TestScenarioTextFontSizeUndoRedo(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	require.Equal(t, 16.0, fontSize(t, d, id))

	require.True(t, d.Update(id, layer.Patch{"fontSize": 90}))
	assert.Equal(t, 90.0, fontSize(t, d, id))

	require.True(t, d.Undo())
	assert.Equal(t, 16.0, fontSize(t, d, id))

	require.True(t, d.Redo())
	assert.Equal(t, 90.0, fontSize(t, d, id))
}

func TestScenarioReparentCycleRefused(t *testing.T) {
	d := newDoc(t)
	x := d.Add(layer.KindText, nil)
	y := d.Add(layer.KindText, nil)

	require.True(t, d.Reparent(y, x))
	assert.False(t, d.CanReparent(x, y))
	assert.False(t, d.Reparent(x, y))

	l, _ := d.Layer(x)
	assert.Equal(t, "", l.Common().ParentID)
}

func TestScenarioDeleteWithDescendantsClearsSelection(t *testing.T) {
	d := newDoc(t)
	root := d.Add(layer.KindPath, nil)
	a := d.Add(layer.KindText, layer.Patch{"parentId": root})
	b := d.Add(layer.KindLine, layer.Patch{"parentId": a})
	keep := d.Add(layer.KindImage, nil)
	require.True(t, d.Select(root))

	removed := d.Delete(root)
	assert.ElementsMatch(t, []string{root, a, b}, removed)
	assert.Equal(t, []string{keep}, d.Layers().IDs())
	assert.Equal(t, "", d.Selected())
}

func TestDeleteUnselectedKeepsSelection(t *testing.T) {
	d := newDoc(t)
	a := d.Add(layer.KindText, nil)
	b := d.Add(layer.KindText, nil)
	require.True(t, d.Select(a))
	d.Delete(b)
	assert.Equal(t, a, d.Selected())
	assert.Nil(t, d.Delete("missing"))
}

func TestAddSelectsNewLayer(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindTable, nil)
	assert.Equal(t, id, d.Selected())
}

func TestSelectMissingRefused(t *testing.T) {
	d := newDoc(t)
	assert.False(t, d.Select("ghost"))
	assert.True(t, d.Select(""))
}

func TestEditingFollowsSelection(t *testing.T) {
	d := newDoc(t)
	txt := d.Add(layer.KindText, nil)
	tbl := d.Add(layer.KindTable, nil)

	assert.False(t, d.BeginEditing(txt), "only the selected layer can be edited")
	require.True(t, d.Select(txt))
	require.True(t, d.BeginEditing(txt))
	assert.Equal(t, txt, d.Editing())

	require.True(t, d.Select(tbl))
	assert.Equal(t, "", d.Editing())
	assert.False(t, d.BeginEditing(tbl), "tables are not text")

	require.True(t, d.Select(txt))
	require.True(t, d.BeginEditing(txt))
	d.Select("")
	assert.Equal(t, "", d.Editing())
}

func TestUndoClearsVanishedSelection(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	require.Equal(t, id, d.Selected())

	require.True(t, d.Undo())
	assert.Empty(t, d.Layers())
	assert.Equal(t, "", d.Selected())
}

func TestHistoryBoundary(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	// 50 more distinct edits: 51 in total.
	for i := 1; i <= 50; i++ {
		require.True(t, d.Update(id, layer.Patch{"x": float64(i)}))
	}
	past, _ := d.History().Depth(1)
	require.Equal(t, 50, past)

	for i := 0; i < 50; i++ {
		require.True(t, d.Undo())
	}
	assert.False(t, d.Undo())
	require.Len(t, d.Layers(), 1, "state after the first edit, not the empty page")
	l, _ := d.Layer(id)
	assert.Equal(t, 50.0, l.Common().X)
}

func TestUndoRedoRestoresExactSnapshot(t *testing.T) {
	d := newDoc(t)
	a := d.Add(layer.KindTable, nil)
	b := d.Add(layer.KindLine, layer.Patch{"parentId": a})
	d.SetCell(a, 1, 1, "mid")
	d.SetHidden(a, true)
	d.Update(b, layer.Patch{"strokeWidth": 7})

	before := d.Layers()
	require.True(t, d.Undo())
	require.True(t, d.Redo())
	assert.True(t, layer.Equal(before, d.Layers()), layer.Diff(before, d.Layers()))
}

func TestPagesKeepSeparateLayersAndHistory(t *testing.T) {
	d := newDoc(t)
	p1 := d.Add(layer.KindText, nil)
	d.SetActivePage(2)
	assert.Equal(t, "", d.Selected())
	assert.Empty(t, d.Layers())

	p2 := d.Add(layer.KindLine, nil)
	require.True(t, d.Undo())
	assert.Empty(t, d.Layers())

	d.SetActivePage(1)
	assert.Equal(t, []string{p1}, d.Layers().IDs())
	assert.True(t, d.CanUndo())
	assert.True(t, d.Redo() == false)

	d.SetActivePage(2)
	require.True(t, d.Redo())
	assert.Equal(t, []string{p2}, d.Layers().IDs())
	assert.Equal(t, []int{1, 2}, d.Pages())
}

func TestGestureIsOneUndoStep(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	past0, _ := d.History().Depth(1)

	d.BeginGesture()
	for i := 1; i <= 20; i++ {
		d.Update(id, layer.Move(float64(50+i), 50))
	}
	d.EndGesture()

	past, _ := d.History().Depth(1)
	assert.Equal(t, past0+1, past)
	require.True(t, d.Undo())
	l, _ := d.Layer(id)
	assert.Equal(t, 50.0, l.Common().X)
}

func TestCancelGestureRestoresStart(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	past0, _ := d.History().Depth(1)

	d.BeginGesture()
	d.Update(id, layer.Move(300, 300))
	require.True(t, d.CancelGesture())

	l, _ := d.Layer(id)
	assert.Equal(t, 50.0, l.Common().X)
	past, future := d.History().Depth(1)
	assert.Equal(t, past0, past)
	assert.Zero(t, future)
	assert.False(t, d.CancelGesture())
}

func TestCancelGestureWithoutCoalescing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoalesceGestures = false
	d := New(cfg)
	id := d.Add(layer.KindText, nil)

	d.BeginGesture()
	d.Update(id, layer.Move(100, 50))
	d.Update(id, layer.Move(200, 50))
	require.True(t, d.CancelGesture())

	l, _ := d.Layer(id)
	assert.Equal(t, 50.0, l.Common().X)
}

func TestHandleKey(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	d.Update(id, layer.Patch{"fontSize": 90})

	assert.False(t, d.HandleKey(Key{Key: "z", Ctrl: true}, true), "ignored inside editable text")
	assert.Equal(t, 90.0, fontSize(t, d, id))

	assert.False(t, d.HandleKey(Key{Key: "z"}, false))
	assert.True(t, d.HandleKey(Key{Key: "z", Meta: true}, false))
	assert.Equal(t, 16.0, fontSize(t, d, id))

	assert.True(t, d.HandleKey(Key{Key: "Z", Ctrl: true, Shift: true}, false))
	assert.Equal(t, 90.0, fontSize(t, d, id))
}

func TestHandleKeyIgnoredWhileEditing(t *testing.T) {
	d := newDoc(t)
	id := d.Add(layer.KindText, nil)
	require.True(t, d.Update(id, layer.Patch{"text": "typed"}))
	require.True(t, d.BeginEditing(id))

	assert.False(t, d.HandleKey(Key{Key: "z", Ctrl: true}, false))
	assert.Equal(t, id, d.Editing())
	l, _ := d.Layer(id)
	assert.Equal(t, "typed", l.(*layer.Text).Text)
}

func TestZOrder(t *testing.T) {
	d := newDoc(t)
	a := d.Add(layer.KindText, nil)
	b := d.Add(layer.KindText, nil)
	c := d.Add(layer.KindText, nil)

	require.True(t, d.BringForward(a))
	assert.Equal(t, []string{b, a, c}, d.Layers().IDs())
	require.True(t, d.BringToFront(b))
	assert.Equal(t, []string{a, c, b}, d.Layers().IDs())
	require.True(t, d.SendToBack(b))
	assert.Equal(t, []string{b, a, c}, d.Layers().IDs())
	require.True(t, d.SendBackward(c))
	assert.Equal(t, []string{b, c, a}, d.Layers().IDs())

	assert.False(t, d.SendBackward(b))
	assert.False(t, d.BringForward(a))

	for i, l := range d.Layers() {
		assert.Equal(t, i, l.Common().Z)
	}
}

func TestGroupUngroupOnSelection(t *testing.T) {
	d := newDoc(t)
	a := d.Add(layer.KindText, nil)
	b := d.Add(layer.KindText, nil)

	moved, ok := d.Group()
	require.True(t, ok)
	assert.Equal(t, a, moved)
	l, _ := d.Layer(a)
	assert.Equal(t, b, l.Common().ParentID)

	require.True(t, d.Ungroup())
	l, _ = d.Layer(a)
	assert.Equal(t, "", l.Common().ParentID)

	d.Select("")
	_, ok = d.Group()
	assert.False(t, ok)
}

func TestTransmute(t *testing.T) {
	d := newDoc(t)
	ph := d.Add(layer.KindPlaceholder, layer.Patch{"x": 10})
	txt := d.Add(layer.KindText, nil)

	assert.False(t, d.Transmute(txt, "data:x"))
	require.True(t, d.Transmute(ph, "data:image/png;base64,AA=="))
	l, _ := d.Layer(ph)
	img, ok := l.(*layer.Image)
	require.True(t, ok)
	assert.Equal(t, 10.0, img.X)
	assert.Equal(t, 1.0, img.Opacity)

	require.True(t, d.Undo())
	l, _ = d.Layer(ph)
	assert.IsType(t, &layer.Placeholder{}, l)
}

func TestSetCellAndHidden(t *testing.T) {
	d := newDoc(t)
	tbl := d.Add(layer.KindTable, nil)
	require.True(t, d.SetCell(tbl, 2, 2, "z"))
	assert.False(t, d.SetCell(tbl, 3, 0, "out"))

	l, _ := d.Layer(tbl)
	assert.Equal(t, "z", l.(*layer.Table).Cell(2, 2))

	kid := d.Add(layer.KindText, layer.Patch{"parentId": tbl})
	require.True(t, d.SetHidden(tbl, true))
	k, _ := d.Layer(kid)
	assert.True(t, k.Common().Hidden)

	require.True(t, d.ToggleCollapsed(tbl))
	l, _ = d.Layer(tbl)
	assert.True(t, l.Common().Collapsed)
}

func TestChangeNotifications(t *testing.T) {
	d := newDoc(t)
	var kinds []ChangeKind
	d.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	id := d.Add(layer.KindText, nil)
	d.Update(id, layer.Patch{"x": 1})
	d.SetActivePage(3)

	assert.Equal(t, []ChangeKind{ChangeLayers, ChangeSelection, ChangeLayers, ChangePage}, kinds)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemoryStorage()

	d := newDoc(t)
	a := d.Add(layer.KindTable, nil)
	d.SetCell(a, 0, 0, "saved")
	d.SetActivePage(4)
	d.Add(layer.KindLine, nil)
	require.NoError(t, d.Save(ctx, b))

	other := newDoc(t)
	require.NoError(t, other.Load(ctx, b))
	assert.Equal(t, []int{1, 4}, other.Pages())
	assert.True(t, layer.Equal(d.LayersOf(1), other.LayersOf(1)))
	assert.True(t, layer.Equal(d.LayersOf(4), other.LayersOf(4)))
	assert.False(t, other.CanUndo())
}

func TestPageSize(t *testing.T) {
	d := newDoc(t)
	d.SetPageSize(2, 612, 792)
	assert.Equal(t, 612.0, d.PageSize(2).Width)
	assert.Zero(t, d.PageSize(9).Height)
}

func TestNextStyles(t *testing.T) {
	d := newDoc(t)
	d.SetNextStyles(layer.Patch{"color": "#ff0000"})
	d.SetNextStyles(layer.Patch{"fontSize": 40})
	ns := d.NextStyles()
	assert.Equal(t, "#ff0000", ns["color"])
	ns["color"] = "changed"
	assert.Equal(t, "#ff0000", d.NextStyles()["color"])
}
