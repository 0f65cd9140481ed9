package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreenDeltaDividesByScale(t *testing.T) {
	tr := New(2.0, 0, Size{Width: 600, Height: 800})
	dx, dy := tr.ScreenDelta(40, -10)
	assert.Equal(t, 20.0, dx)
	assert.Equal(t, -5.0, dy)
}

func TestScreenDeltaInvalidScale(t *testing.T) {
	for _, s := range []float64{0, -3} {
		dx, dy := Transform{Scale: s}.ScreenDelta(12, 7)
		assert.Equal(t, 12.0, dx)
		assert.Equal(t, 7.0, dy)
	}
}

func TestScreenDeltaRotated(t *testing.T) {
	cases := []struct {
		rotation int
		wantX    float64
		wantY    float64
	}{
		{0, 10, 4},
		{90, 4, -10},
		{180, -10, -4},
		{270, -4, 10},
	}
	for _, c := range cases {
		tr := New(1, c.rotation, Size{})
		x, y := tr.ScreenDelta(10, 4)
		assert.Equal(t, c.wantX, x, "rotation %d", c.rotation)
		assert.Equal(t, c.wantY, y, "rotation %d", c.rotation)
	}
}

func TestScreenDeltaLegacyIgnoresRotation(t *testing.T) {
	tr := Transform{Scale: 2, Rotation: 90}
	x, y := tr.ScreenDelta(10, 4)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 2.0, y)
}

func TestDropPointRotated(t *testing.T) {
	page := Size{Width: 600, Height: 800}
	cases := []struct {
		rotation int
		want     Point
	}{
		{0, Point{X: 100, Y: 30}},
		{90, Point{X: 30, Y: 700}},
		{180, Point{X: 500, Y: 770}},
		{270, Point{X: 570, Y: 100}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, New(1, c.rotation, page).DropPoint(100, 30), "rotation %d", c.rotation)
	}
}

func TestDropPointUnrotated(t *testing.T) {
	tr := New(2, 0, Size{Width: 600, Height: 800})
	assert.Equal(t, Point{X: 50, Y: 100}, tr.DropPoint(100, 200))
}

func TestDropPointCornerOnRotatedPage(t *testing.T) {
	tr := New(1, 90, Size{Width: 600, Height: 800})
	// The document origin sits at the visual top-right corner.
	assert.Equal(t, Point{X: 0, Y: 0}, tr.DropPoint(800, 0))
}

func TestVisualSizeSwapsOnQuarterTurns(t *testing.T) {
	assert.Equal(t, Size{Width: 600, Height: 800}, New(1, 0, Size{}).VisualSize(600, 800))
	assert.Equal(t, Size{Width: 800, Height: 600}, New(1, 90, Size{}).VisualSize(600, 800))
	assert.Equal(t, Size{Width: 600, Height: 800}, New(1, 180, Size{}).VisualSize(600, 800))
	assert.Equal(t, Size{Width: 400, Height: 300}, New(0.5, 270, Size{}).VisualSize(600, 800))
}

func TestNormalizeRotation(t *testing.T) {
	assert.Equal(t, 0, NormalizeRotation(0))
	assert.Equal(t, 90, NormalizeRotation(-270))
	assert.Equal(t, 270, NormalizeRotation(-90))
	assert.Equal(t, 0, NormalizeRotation(360))
	assert.Equal(t, 90, NormalizeRotation(100))
	assert.Equal(t, 0, NormalizeRotation(359))
}

func TestFitScale(t *testing.T) {
	assert.Equal(t, 1.5, FitScale(2000, 600))
	assert.Equal(t, 0.5, FitScale(300, 600))
	assert.Equal(t, 1.0, FitScale(0, 600))
	assert.Equal(t, 0.5, FitPage(Size{Width: 600, Height: 400}, Size{Width: 600, Height: 800}))
}

func TestZoomSteps(t *testing.T) {
	assert.Equal(t, MaxScale, ZoomIn(MaxScale))
	assert.Equal(t, MinScale, ZoomOut(MinScale))
	assert.InDelta(t, 1.1, ZoomIn(1), 1e-9)
}
