package layer

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// List is a page's layers in stacking order: index 0 paints first (bottom),
// the last element is topmost.
type List []Layer

// Clone returns a deep copy.
func (ls List) Clone() List {
	if ls == nil {
		return nil
	}
	out := make(List, len(ls))
	for i, l := range ls {
		out[i] = l.Clone()
	}
	return out
}

// Index returns the stacking position of id, or -1.
func (ls List) Index(id string) int {
	for i, l := range ls {
		if l.Common().ID == id {
			return i
		}
	}
	return -1
}

// Get returns the layer with id without copying it.
func (ls List) Get(id string) (Layer, bool) {
	if i := ls.Index(id); i >= 0 {
		return ls[i], true
	}
	return nil, false
}

// Has reports whether id is present.
func (ls List) Has(id string) bool {
	return ls.Index(id) >= 0
}

// IDs returns the ids in stacking order.
func (ls List) IDs() []string {
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.Common().ID
	}
	return ids
}

var equalOpts = cmp.Options{cmpopts.EquateEmpty()}

// Equal compares two snapshots by value. A nil list equals an empty one.
func Equal(a, b List) bool {
	return cmp.Equal(a, b, equalOpts)
}

// Diff returns a human-readable difference, for logs and test failures.
func Diff(a, b List) string {
	return cmp.Diff(a, b, equalOpts)
}

// UnmarshalJSON decodes an array of tagged layer records.
func (ls *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(List, 0, len(raws))
	for i, raw := range raws {
		l, err := Decode(raw)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

// Decode reads one tagged record. Unknown types decode to a Shape.
func Decode(data []byte) (Layer, error) {
	var tag struct {
		Kind Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	l := Zero(tag.Kind)
	if err := json.Unmarshal(data, l); err != nil {
		return nil, err
	}
	if err := normalize(l); err != nil {
		return nil, err
	}
	return l, nil
}
