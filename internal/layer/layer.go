// Package layer defines the placed content elements of a page.
//
// Layer is a closed sum type: every variant embeds Base and implements the
// unexported marker method, so only this package can add variants. Code that
// needs variant fields switches on the concrete type.
package layer

import (
	"strconv"
	"strings"
)

// Kind is the type tag carried by every layer record.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindPlaceholder Kind = "placeholder"
	KindPath        Kind = "path"
	KindTable       Kind = "table"
	KindLine        Kind = "line"
)

// Known reports whether k is one of the six editor layer kinds.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindImage, KindPlaceholder, KindPath, KindTable, KindLine:
		return true
	}
	return false
}

// Base holds the fields shared by every layer variant.
type Base struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Rotation  float64 `json:"rotation"`
	Z         int     `json:"z"`
	Hidden    bool    `json:"hidden,omitempty"`
	ParentID  string  `json:"parentId,omitempty"`
	Collapsed bool    `json:"collapsed,omitempty"`
	Locked    bool    `json:"locked,omitempty"`
	Name      string  `json:"name,omitempty"`
}

// Common returns the shared fields. The pointer aliases the layer, so callers
// that only hold a clone may modify it freely.
func (b *Base) Common() *Base {
	return b
}

// Layer is one placed content element.
type Layer interface {
	Common() *Base
	Clone() Layer
	isLayer()
}

// Text is a block of styled text.
type Text struct {
	Base
	Text            string  `json:"text"`
	FontFamily      string  `json:"fontFamily"`
	FontSize        float64 `json:"fontSize"`
	FontWeight      string  `json:"fontWeight,omitempty"`
	FontStyle       string  `json:"fontStyle,omitempty"`
	TextDecoration  string  `json:"textDecoration,omitempty"`
	Color           string  `json:"color"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	Align           string  `json:"align,omitempty"`
	LineHeight      float64 `json:"lineHeight,omitempty"`
	LetterSpacing   float64 `json:"letterSpacing,omitempty"`
	Opacity         float64 `json:"opacity,omitempty"`
	ListStyle       string  `json:"listStyle,omitempty"`
	VerticalAlign   string  `json:"verticalAlign,omitempty"`
	NoWrap          bool    `json:"noWrap,omitempty"`
	BorderRadius    float64 `json:"borderRadius,omitempty"`
	BoxShadow       string  `json:"boxShadow,omitempty"`
}

// Image is a raster image referenced by Src (usually a data URL).
type Image struct {
	Base
	Src     string  `json:"src"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Placeholder is an empty image slot. It holds no content and becomes an
// Image when a file is dropped on it.
type Placeholder struct {
	Base
	Label string `json:"label,omitempty"`
}

// Path is a vector shape described by SVG path data.
type Path struct {
	Base
	D           string  `json:"d"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// Line is a horizontal (0) or vertical (90) rule.
type Line struct {
	Base
	StrokeColor  string  `json:"strokeColor"`
	StrokeWidth  float64 `json:"strokeWidth"`
	LineRotation int     `json:"lineRotation"`
}

// Vertical reports whether the line runs top to bottom.
func (l *Line) Vertical() bool {
	return l.LineRotation == 90
}

// Table is a grid of plain-text cells. Data always has Rows rows of Cols cells.
type Table struct {
	Base
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	Data        [][]string `json:"data"`
	BorderColor string     `json:"borderColor,omitempty"`
	BorderWidth float64    `json:"borderWidth,omitempty"`
	ShowBorders bool       `json:"showBorders,omitempty"`
}

// Shape is the generic rectangular layer used for kinds the editor does not
// know. It keeps the original tag so the record survives a round trip.
type Shape struct {
	Base
}

func (*Text) isLayer()        {}
func (*Image) isLayer()       {}
func (*Placeholder) isLayer() {}
func (*Path) isLayer()        {}
func (*Line) isLayer()        {}
func (*Table) isLayer()       {}
func (*Shape) isLayer()       {}

func (l *Text) Clone() Layer        { c := *l; return &c }
func (l *Image) Clone() Layer       { c := *l; return &c }
func (l *Placeholder) Clone() Layer { c := *l; return &c }
func (l *Path) Clone() Layer        { c := *l; return &c }
func (l *Line) Clone() Layer        { c := *l; return &c }
func (l *Shape) Clone() Layer       { c := *l; return &c }

func (l *Table) Clone() Layer {
	c := *l
	c.Data = cloneGrid(l.Data)
	return &c
}

// Zero returns an empty variant for kind. Unknown kinds produce a Shape.
func Zero(kind Kind) Layer {
	switch kind {
	case KindText:
		return &Text{Base: Base{Kind: kind}}
	case KindImage:
		return &Image{Base: Base{Kind: kind}}
	case KindPlaceholder:
		return &Placeholder{Base: Base{Kind: kind}}
	case KindPath:
		return &Path{Base: Base{Kind: kind}}
	case KindTable:
		return &Table{Base: Base{Kind: kind}}
	case KindLine:
		return &Line{Base: Base{Kind: kind}}
	default:
		return &Shape{Base: Base{Kind: kind}}
	}
}

// Transmute turns a placeholder into an image in place: same id, geometry and
// hierarchy, with the placeholder's label dropped.
func Transmute(p *Placeholder, src string) *Image {
	img := &Image{Base: p.Base, Src: src, Opacity: 1}
	img.Kind = KindImage
	return img
}

// DisplayName is the label shown in the layer tree.
func DisplayName(l Layer) string {
	b := l.Common()
	if b.Name != "" {
		return b.Name
	}
	switch v := l.(type) {
	case *Text:
		text := strings.TrimSpace(strings.SplitN(v.Text, "\n", 2)[0])
		if text == "" {
			return "Text"
		}
		if r := []rune(text); len(r) > 20 {
			return string(r[:20]) + "..."
		}
		return text
	case *Image:
		return "Image"
	case *Placeholder:
		if v.Label != "" {
			return v.Label
		}
		return "Image Placeholder"
	case *Table:
		return strconv.Itoa(v.Rows) + "x" + strconv.Itoa(v.Cols) + " Table"
	case *Line:
		if v.Vertical() {
			return "Vertical Line"
		}
		return "Line"
	case *Path:
		return "Shape"
	default:
		if b.Kind == "" {
			return "Layer"
		}
		return string(b.Kind)
	}
}
