// Package composer derives what a page view draws from the document state
// and routes raw pointer input back to the interaction controller.
//
// A Frame is a read-only picture of one page: visible layers in paint order,
// the page's on-screen size and the sidebar rows. It is rebuilt after every
// change instead of being patched.
package composer

import (
	"math"

	"github.com/zot/pagelayer/internal/hierarchy"
	"github.com/zot/pagelayer/internal/interaction"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/transform"
)

// Item is one painted layer.
type Item struct {
	Layer    layer.Layer
	Selected bool
	Editing  bool
}

// Row is one line of the layer tree in the sidebar.
type Row struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        layer.Kind `json:"type"`
	Depth       int        `json:"depth"`
	Hidden      bool       `json:"hidden,omitempty"`
	Collapsed   bool       `json:"collapsed,omitempty"`
	HasChildren bool       `json:"hasChildren,omitempty"`
	Selected    bool       `json:"selected,omitempty"`
}

// Frame is what one page view shows.
type Frame struct {
	View transform.Transform
	// Visual is the page container size on screen.
	Visual transform.Size
	// Items are the visible layers bottom first. The layer in inline edit is
	// painted last so the text surface sits above everything.
	Items []Item
	Rows  []Row
}

// State is the slice of document state a frame is built from.
type State struct {
	Layers   layer.List
	Selected string
	Editing  string
}

// Build composes a frame.
func Build(st State, view transform.Transform) Frame {
	f := Frame{
		View:   view,
		Visual: view.VisualSize(view.Page.Width, view.Page.Height),
	}
	var editing *Item
	for _, l := range st.Layers {
		// each layer carries its own hidden flag; cascades write it on descendants
		if l.Common().Hidden {
			continue
		}
		id := l.Common().ID
		it := Item{Layer: l, Selected: id == st.Selected, Editing: id == st.Editing}
		if it.Editing {
			editing = &it
			continue
		}
		f.Items = append(f.Items, it)
	}
	if editing != nil {
		f.Items = append(f.Items, *editing)
	}
	hierarchy.Walk(hierarchy.Tree(st.Layers), true, func(n *hierarchy.Node) {
		b := n.Layer.Common()
		f.Rows = append(f.Rows, Row{
			ID:          b.ID,
			Name:        layer.DisplayName(n.Layer),
			Kind:        b.Kind,
			Depth:       n.Depth,
			Hidden:      b.Hidden,
			Collapsed:   b.Collapsed,
			HasChildren: len(n.Children) > 0,
			Selected:    b.ID == st.Selected,
		})
	})
	return f
}

// HitTest returns the topmost visible layer under a screen point.
func (f Frame) HitTest(sx, sy float64) (string, bool) {
	p := f.View.DropPoint(sx, sy)
	for i := len(f.Items) - 1; i >= 0; i-- {
		if contains(f.Items[i].Layer.Common(), p) {
			return f.Items[i].Layer.Common().ID, true
		}
	}
	return "", false
}

// contains tests p against the layer's box turned by its own rotation about
// its center.
func contains(b *layer.Base, p transform.Point) bool {
	cx, cy := b.X+b.Width/2, b.Y+b.Height/2
	dx, dy := p.X-cx, p.Y-cy
	if b.Rotation != 0 {
		rad := -b.Rotation * math.Pi / 180
		sin, cos := math.Sincos(rad)
		dx, dy = dx*cos-dy*sin, dx*sin+dy*cos
	}
	return math.Abs(dx) <= b.Width/2 && math.Abs(dy) <= b.Height/2
}

// InputKind names a raw input event from the view.
type InputKind string

const (
	Down        InputKind = "down"
	Move        InputKind = "move"
	Up          InputKind = "up"
	DoubleClick InputKind = "dblclick"
	Enter       InputKind = "enter"
	Escape      InputKind = "escape"
	Blur        InputKind = "blur"
	Text        InputKind = "text"
)

// Input is one raw event. Target names the layer the view already resolved,
// if any; otherwise the frame hit-tests X and Y.
type Input struct {
	Kind   InputKind          `json:"kind"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	Target string             `json:"target,omitempty"`
	Handle interaction.Handle `json:"handle,omitempty"`
	Text   string             `json:"text,omitempty"`
}

// Dispatch routes in to the controller and reports whether it changed
// anything. A press that hits no layer is a background click.
func (f Frame) Dispatch(c *interaction.Controller, in Input) bool {
	switch in.Kind {
	case Down:
		id := f.target(in)
		if id == "" {
			return c.BackgroundClick()
		}
		return c.PointerDown(id, in.Handle, in.X, in.Y)
	case Move:
		return c.PointerMove(in.X, in.Y)
	case Up:
		return c.PointerUp()
	case DoubleClick:
		if id := f.target(in); id != "" {
			return c.DoubleClick(id)
		}
	case Enter:
		return c.KeyEnter()
	case Escape:
		return c.Cancel()
	case Blur:
		c.Blur()
		return true
	case Text:
		return c.EditText(in.Text)
	}
	return false
}

func (f Frame) target(in Input) string {
	if in.Target != "" {
		return in.Target
	}
	id, _ := f.HitTest(in.X, in.Y)
	return id
}
