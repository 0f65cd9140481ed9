package layer

import "fmt"

// Placement defaults for layers added without an explicit position.
const (
	DefaultX      = 50
	DefaultY      = 50
	DefaultWidth  = 100
	DefaultHeight = 50

	// PaletteFontSize is the font size of text dropped from the palette.
	PaletteFontSize = 90
)

// New builds a layer of the given kind with type-specific defaults, then
// merges overrides on top. Unknown kinds yield a generic Shape so callers
// never have to handle a failed add.
func New(kind Kind, id string, overrides Patch) (Layer, error) {
	l := defaults(kind)
	l.Common().ID = id
	if len(overrides) == 0 {
		return l, nil
	}
	merged, err := Apply(l, overrides)
	if err != nil {
		return l, fmt.Errorf("apply overrides to new %s layer: %w", kind, err)
	}
	return merged, nil
}

func defaults(kind Kind) Layer {
	base := Base{
		Kind:   kind,
		X:      DefaultX,
		Y:      DefaultY,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
	switch kind {
	case KindText:
		return &Text{
			Base:       base,
			Text:       "New Text",
			FontFamily: "Arial",
			FontSize:   16,
			Color:      "#000000",
		}
	case KindImage:
		return &Image{Base: base, Opacity: 1}
	case KindPlaceholder:
		base.Width, base.Height = 200, 200
		return &Placeholder{Base: base, Label: "Drop Image Here"}
	case KindPath:
		base.Width, base.Height = 100, 100
		return &Path{
			Base:        base,
			D:           "M 0 0 L 100 0 L 100 100 L 0 100 Z",
			Fill:        "transparent",
			Stroke:      "#000000",
			StrokeWidth: 2,
		}
	case KindTable:
		base.Width, base.Height = 300, 150
		t := &Table{Base: base, BorderColor: "#000000", ShowBorders: true}
		t.Resize(3, 3)
		return t
	case KindLine:
		base.Width, base.Height = 150, 3
		return &Line{Base: base, StrokeColor: "#000000", StrokeWidth: 3}
	default:
		return &Shape{Base: base}
	}
}
