package layer

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrInvalidField is returned when a patch value does not fit the field it targets.
var ErrInvalidField = errors.New("invalid layer field")

// Patch is a partial update keyed by record field name ("x", "fontSize", ...).
// Keys the variant does not have are ignored. "id" and "type" are immutable
// through patches; a type change only happens through Transmute.
type Patch map[string]any

// Move is the patch that repositions a layer.
func Move(x, y float64) Patch {
	return Patch{"x": x, "y": y}
}

// Size is the patch that resizes a layer.
func Size(width, height float64) Patch {
	return Patch{"width": width, "height": height}
}

// Apply merges p onto a copy of l and returns the copy. l is never modified.
func Apply(l Layer, p Patch) (Layer, error) {
	if len(p) == 0 {
		return l.Clone(), nil
	}

	current, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, err
	}

	for key, value := range p {
		if key == "id" || key == "type" {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidField, key, err)
		}
		fields[key] = raw
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	out := Zero(l.Common().Kind)
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	if err := normalize(out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize enforces per-variant invariants after a merge or decode.
func normalize(l Layer) error {
	switch v := l.(type) {
	case *Table:
		if v.Rows < 0 || v.Cols < 0 {
			return fmt.Errorf("%w: table dimensions %dx%d", ErrInvalidField, v.Rows, v.Cols)
		}
		v.fit()
	case *Line:
		if v.LineRotation != 0 && v.LineRotation != 90 {
			return fmt.Errorf("%w: lineRotation must be 0 or 90, got %d", ErrInvalidField, v.LineRotation)
		}
	}
	return nil
}
