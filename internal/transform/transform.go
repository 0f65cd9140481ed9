// Package transform maps pointer input between screen space and document
// space under zoom and page rotation.
//
// Document space is the page's own coordinate frame at zoom 1. Screen space is
// the frame of the on-screen page container after zoom and rotation. Every
// function here is pure: the result depends only on the Transform value and the
// arguments.
package transform

import "math"

// Zoom limits and step used by the zoom controls.
const (
	MinScale  = 0.1
	MaxScale  = 4.0
	ScaleStep = 0.1

	// MaxFitScale caps fit-to-width so small pages are not blown up.
	MaxFitScale = 1.5
)

// Size is a width and height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform describes how a page is shown on screen.
type Transform struct {
	// Scale is the zoom factor. Values <= 0 are treated as 1.
	Scale float64
	// Rotation is the page rotation in degrees clockwise. It is normalized to
	// 0, 90, 180 or 270.
	Rotation int
	// RotationAware rotates screen deltas and drop points back into document
	// axes. When false only Scale is corrected for, so dragging on a page
	// rotated by 90 or 270 moves the layer along the wrong axis.
	RotationAware bool
	// Page is the natural page size in document units. It is only needed to
	// map drop points on a rotated page.
	Page Size
}

// New returns a rotation-aware transform at the given zoom.
func New(scale float64, rotation int, page Size) Transform {
	return Transform{Scale: scale, Rotation: rotation, RotationAware: true, Page: page}
}

func (t Transform) scale() float64 {
	if t.Scale <= 0 || math.IsNaN(t.Scale) || math.IsInf(t.Scale, 0) {
		return 1
	}
	return t.Scale
}

func (t Transform) rotation() int {
	return NormalizeRotation(t.Rotation)
}

// NormalizeRotation snaps degrees to the nearest quarter turn in [0, 360).
func NormalizeRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	r = ((r + 45) / 90) * 90
	return r % 360
}

// Swapped reports whether the page is turned on its side.
func (t Transform) Swapped() bool {
	return t.rotation()%180 != 0
}

// ScreenDelta converts a pointer movement in screen pixels to a document
// space delta.
func (t Transform) ScreenDelta(dx, dy float64) (float64, float64) {
	s := t.scale()
	dx, dy = dx/s, dy/s
	if !t.RotationAware {
		return dx, dy
	}
	switch t.rotation() {
	case 90:
		return dy, -dx
	case 180:
		return -dx, -dy
	case 270:
		return -dy, dx
	}
	return dx, dy
}

// DropPoint converts a point relative to the top-left of the page container
// on screen into document coordinates.
func (t Transform) DropPoint(sx, sy float64) Point {
	s := t.scale()
	u, v := sx/s, sy/s
	if !t.RotationAware {
		return Point{X: u, Y: v}
	}
	w, h := t.Page.Width, t.Page.Height
	switch t.rotation() {
	case 90:
		return Point{X: v, Y: h - u}
	case 180:
		return Point{X: w - u, Y: h - v}
	case 270:
		return Point{X: w - v, Y: u}
	}
	return Point{X: u, Y: v}
}

// VisualSize is the on-screen size of a w by h document box. A page turned
// on its side swaps width and height.
func (t Transform) VisualSize(w, h float64) Size {
	s := t.scale()
	if t.Swapped() {
		w, h = h, w
	}
	return Size{Width: w * s, Height: h * s}
}

// FitScale is the zoom that fits pageWidth into available screen pixels,
// capped at MaxFitScale. It returns 1 when either width is unknown.
func FitScale(available, pageWidth float64) float64 {
	if available <= 0 || pageWidth <= 0 {
		return 1
	}
	return math.Min(available/pageWidth, MaxFitScale)
}

// FitPage is the zoom that fits the whole page into a box, without the cap.
func FitPage(box, page Size) float64 {
	if box.Width <= 0 || box.Height <= 0 || page.Width <= 0 || page.Height <= 0 {
		return 1
	}
	return math.Min(box.Width/page.Width, box.Height/page.Height)
}

// ClampScale keeps a zoom level within MinScale and MaxScale.
func ClampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// ZoomIn returns the next zoom level up.
func ZoomIn(s float64) float64 { return ClampScale(s + ScaleStep) }

// ZoomOut returns the next zoom level down.
func ZoomOut(s float64) float64 { return ClampScale(s - ScaleStep) }
