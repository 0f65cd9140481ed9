// Package interaction turns pointer, keyboard and drop events on a page view
// into document edits.
//
// A Controller tracks at most one pointer gesture. Moves update the layer live
// and every gesture is bracketed with BeginGesture/EndGesture so the history
// can fold it into one undo step.
package interaction

import (
	"math"

	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/transform"
)

// State is the controller's interaction state.
type State int

const (
	Idle State = iota
	Selected
	Dragging
	Resizing
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Editing:
		return "editing"
	}
	return "unknown"
}

// Handle names the part of a layer the pointer went down on.
type Handle string

const (
	// Body starts a drag.
	Body Handle = ""
	// Corner is the bottom-right resize handle.
	Corner Handle = "se"
)

// Editor is the editing context the controller drives.
// *document.Document implements it.
type Editor interface {
	Layer(id string) (layer.Layer, bool)
	Select(id string) bool
	Selected() string
	Editing() string
	BeginEditing(id string) bool
	EndEditing()
	Add(kind layer.Kind, overrides layer.Patch) string
	Update(id string, patch layer.Patch) bool
	Transmute(id, src string) bool
	BeginGesture()
	EndGesture()
	CancelGesture() bool
	NextStyles() layer.Patch
}

// Options bound resizing.
type Options struct {
	MinSize      float64
	MinTableSize float64
	Logger       *logging.Logger
}

// DefaultOptions returns the editor's size limits.
func DefaultOptions() Options {
	return Options{MinSize: 20, MinTableSize: 50}
}

type op struct {
	state          State
	id             string
	startX, startY float64
	origin         layer.Base
	line           *layer.Line
	table          bool
}

// Controller runs the interaction state machine for one page view.
type Controller struct {
	ed   Editor
	view transform.Transform
	opts Options
	op   *op
	log  *logging.Logger
}

// New creates a controller with an identity view.
func New(ed Editor, opts Options) *Controller {
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultOptions().MinSize
	}
	if opts.MinTableSize <= 0 {
		opts.MinTableSize = DefaultOptions().MinTableSize
	}
	return &Controller{
		ed:   ed,
		view: transform.New(1, 0, transform.Size{}),
		opts: opts,
		log:  logging.OrNop(opts.Logger),
	}
}

// SetView changes the zoom and rotation pointer input is interpreted under.
func (c *Controller) SetView(v transform.Transform) {
	c.view = v
}

// View returns the current view transform.
func (c *Controller) View() transform.Transform {
	return c.view
}

// State reports the current interaction state.
func (c *Controller) State() State {
	switch {
	case c.op != nil:
		return c.op.state
	case c.ed.Editing() != "":
		return Editing
	case c.ed.Selected() != "":
		return Selected
	}
	return Idle
}

// PointerDown selects id and starts dragging it, or resizing it when the
// pointer is on the resize handle. x and y are screen coordinates. A press on
// the layer being edited inline belongs to the text surface and is ignored.
func (c *Controller) PointerDown(id string, h Handle, x, y float64) bool {
	if c.op != nil {
		c.PointerUp()
	}
	l, ok := c.ed.Layer(id)
	if !ok || c.ed.Editing() == id {
		return false
	}
	resize := h == Corner && c.ed.Selected() == id
	c.ed.Select(id)
	o := &op{state: Dragging, id: id, startX: x, startY: y, origin: *l.Common()}
	if resize {
		o.state = Resizing
		switch v := l.(type) {
		case *layer.Line:
			o.line = v
		case *layer.Table:
			o.table = true
		}
	}
	c.op = o
	c.ed.BeginGesture()
	c.log.Log(3, "%s %s", o.state, id)
	return true
}

// PointerMove updates the layer under the open gesture.
func (c *Controller) PointerMove(x, y float64) bool {
	o := c.op
	if o == nil {
		return false
	}
	dx, dy := c.view.ScreenDelta(x-o.startX, y-o.startY)
	if o.state == Dragging {
		return c.ed.Update(o.id, layer.Move(math.Round(o.origin.X+dx), math.Round(o.origin.Y+dy)))
	}
	w, h := c.resized(o, dx, dy)
	return c.ed.Update(o.id, layer.Size(w, h))
}

func (c *Controller) resized(o *op, dx, dy float64) (float64, float64) {
	floor := c.opts.MinSize
	if o.table {
		floor = c.opts.MinTableSize
	}
	w := math.Max(floor, o.origin.Width+dx)
	h := math.Max(floor, o.origin.Height+dy)
	if o.line != nil {
		if o.line.Vertical() {
			return o.line.StrokeWidth, h
		}
		return w, o.line.StrokeWidth
	}
	return w, h
}

// PointerUp ends the open gesture.
func (c *Controller) PointerUp() bool {
	if c.op == nil {
		return false
	}
	c.ed.EndGesture()
	c.op = nil
	return true
}

// Cancel aborts the open gesture, putting the layer back where the gesture
// found it. Outside a gesture it leaves inline editing.
func (c *Controller) Cancel() bool {
	if c.op != nil {
		c.op = nil
		c.ed.CancelGesture()
		return true
	}
	if c.ed.Editing() != "" {
		c.ed.EndEditing()
		return true
	}
	return false
}

// DoubleClick starts inline editing of a text layer.
func (c *Controller) DoubleClick(id string) bool {
	l, ok := c.ed.Layer(id)
	if !ok {
		return false
	}
	if _, isText := l.(*layer.Text); !isText {
		return false
	}
	c.ed.Select(id)
	return c.ed.BeginEditing(id)
}

// EditText replaces the text of the layer in inline edit.
func (c *Controller) EditText(text string) bool {
	id := c.ed.Editing()
	if id == "" {
		return false
	}
	return c.ed.Update(id, layer.Patch{"text": text})
}

// KeyEnter handles Enter inside the inline editor. Single-line text commits
// and leaves editing; wrapping text takes the newline, reported as false.
func (c *Controller) KeyEnter() bool {
	id := c.ed.Editing()
	if id == "" {
		return false
	}
	l, ok := c.ed.Layer(id)
	if !ok {
		return false
	}
	if t, isText := l.(*layer.Text); !isText || !t.NoWrap {
		return false
	}
	c.ed.EndEditing()
	return true
}

// Blur leaves inline editing. The selection stays.
func (c *Controller) Blur() {
	c.ed.EndEditing()
}

// BackgroundClick clears the selection.
func (c *Controller) BackgroundClick() bool {
	if c.op != nil {
		return false
	}
	return c.ed.Select("")
}

// DropNew adds a layer of kind at the screen point where it was dropped.
// Payload fields win over the drop position. Text takes the palette font size
// and the document's next-text style under the payload.
func (c *Controller) DropNew(kind layer.Kind, payload layer.Patch, at transform.Point) string {
	p := c.view.DropPoint(at.X, at.Y)
	overrides := layer.Patch{}
	if kind == layer.KindText {
		overrides["fontSize"] = layer.PaletteFontSize
		for k, v := range c.ed.NextStyles() {
			overrides[k] = v
		}
	}
	overrides["x"], overrides["y"] = p.X, p.Y
	for k, v := range payload {
		overrides[k] = v
	}
	id := c.ed.Add(kind, overrides)
	c.log.Log(3, "dropped %s %s at %.1f,%.1f", kind, id, p.X, p.Y)
	return id
}
