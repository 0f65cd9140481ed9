// Package protocol defines the JSON messages exchanged with an editor view and
// applies incoming ones to a document.
package protocol

import (
	"github.com/goccy/go-json"

	"github.com/zot/pagelayer/internal/composer"
	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/transform"
)

// MessageType identifies a message.
type MessageType string

const (
	// view -> server
	MsgSelect   MessageType = "select"
	MsgAdd      MessageType = "add"
	MsgUpdate   MessageType = "update"
	MsgDelete   MessageType = "delete"
	MsgReorder  MessageType = "reorder"
	MsgReparent MessageType = "reparent"
	MsgGroup    MessageType = "group"
	MsgUngroup  MessageType = "ungroup"
	MsgHide     MessageType = "hide"
	MsgCollapse MessageType = "collapse"
	MsgArrange  MessageType = "arrange"
	MsgCell     MessageType = "cell"
	MsgUndo     MessageType = "undo"
	MsgRedo     MessageType = "redo"
	MsgKey      MessageType = "key"
	MsgPointer  MessageType = "pointer"
	MsgDrop     MessageType = "drop"
	MsgUpload   MessageType = "upload"
	MsgPage     MessageType = "page"
	MsgView     MessageType = "view"
	MsgStyles   MessageType = "styles"
	MsgSave     MessageType = "save"
	MsgScript   MessageType = "script"

	// server -> view
	MsgLayers MessageType = "layers"
	MsgError  MessageType = "error"
)

// Message is the envelope of every message.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SelectMessage struct {
	LayerID string `json:"layerId"`
}

type AddMessage struct {
	Kind      layer.Kind  `json:"kind"`
	Overrides layer.Patch `json:"overrides,omitempty"`
}

type UpdateMessage struct {
	LayerID string      `json:"layerId"`
	Patch   layer.Patch `json:"patch"`
}

type DeleteMessage struct {
	LayerID string `json:"layerId"`
}

type ReorderMessage struct {
	IDs []string `json:"ids"`
}

type ReparentMessage struct {
	LayerID  string `json:"layerId"`
	ParentID string `json:"parentId"`
}

type HideMessage struct {
	LayerID string `json:"layerId"`
	Hidden  bool   `json:"hidden"`
}

// ArrangeMessage moves a layer in the stack. Action is forward, backward,
// front or back.
type ArrangeMessage struct {
	LayerID string `json:"layerId"`
	Action  string `json:"action"`
}

type CellMessage struct {
	LayerID string `json:"layerId"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Value   string `json:"value"`
}

type KeyMessage struct {
	document.Key
	// FocusEditable is set while focus is in a text field of the view.
	FocusEditable bool `json:"focusEditable,omitempty"`
}

// DropMessage is a palette item dropped at a screen point of the page.
type DropMessage struct {
	Kind    layer.Kind  `json:"kind"`
	Payload layer.Patch `json:"payload,omitempty"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
}

// UploadMessage carries a file dropped on a placeholder. Data is base64 in JSON.
type UploadMessage struct {
	LayerID string `json:"layerId"`
	Name    string `json:"name"`
	Type    string `json:"mimeType"`
	Data    []byte `json:"data"`
}

// PageMessage switches pages. A non-zero size records the page's natural size.
type PageMessage struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// ViewMessage sets zoom and rotation. Fit ("width" or "page") computes the
// zoom from Box, the screen area available for the page; Zoom ("in" or
// "out") steps from the current zoom. Otherwise Scale is used.
type ViewMessage struct {
	Scale    float64        `json:"scale"`
	Rotation int            `json:"rotation"`
	Fit      string         `json:"fit,omitempty"`
	Zoom     string         `json:"zoom,omitempty"`
	Box      transform.Size `json:"box,omitempty"`
}

type StylesMessage struct {
	Styles layer.Patch `json:"styles"`
}

// ScriptMessage names a script from the server's script directory.
type ScriptMessage struct {
	Name string `json:"name"`
}

// LayersMessage is the page state pushed to the view after changes.
type LayersMessage struct {
	Page     int            `json:"page"`
	Layers   layer.List     `json:"layers"`
	Rows     []composer.Row `json:"rows"`
	Selected string         `json:"selected,omitempty"`
	Editing  string         `json:"editing,omitempty"`
	CanUndo  bool           `json:"canUndo"`
	CanRedo  bool           `json:"canRedo"`
	Visual   transform.Size `json:"visual"`
	Scale    float64        `json:"scale"`
}

type ErrorMessage struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Batch is what a view sends when several events happened in one frame.
type Batch struct {
	Messages []Message `json:"messages"`
}

// ParseMessages accepts a single message, an array of messages or a Batch.
func ParseMessages(data []byte) ([]*Message, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []Message
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, err
		}
	case '{':
		var b Batch
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		if len(b.Messages) > 0 {
			msgs = b.Messages
			break
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		msgs = []Message{m}
	default:
		return nil, nil
	}
	out := make([]*Message, len(msgs))
	for i := range msgs {
		out[i] = &msgs[i]
	}
	return out, nil
}

// NewMessage wraps data in an envelope.
func NewMessage(t MessageType, data any) (*Message, error) {
	m := &Message{Type: t}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		m.Data = raw
	}
	return m, nil
}

// Encode serializes the message.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
