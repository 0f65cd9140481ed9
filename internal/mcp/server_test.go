package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/session"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newServer(t *testing.T, scripts ScriptRunner) (*Server, *session.Session) {
	t.Helper()
	n := 0
	cfg := document.DefaultConfig()
	cfg.IDs = func() string {
		n++
		return fmt.Sprintf("L%d", n)
	}
	sess := session.New("mcp-test", session.Options{Document: cfg})
	t.Cleanup(sess.Close)
	return New(sess, Options{Version: "test", Scripts: scripts}), sess
}

// call runs a tool and returns its text, failing on tool errors unless
// wantErr is set.
func call(t *testing.T, h handler, args map[string]any, wantErr bool) string {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text := res.Content[0].(mcp.TextContent).Text
	require.Equal(t, wantErr, res.IsError, text)
	return text
}

func layers(t *testing.T, s *Server, page int) layer.List {
	t.Helper()
	var ls layer.List
	require.NoError(t, json.Unmarshal([]byte(call(t, s.listLayers, map[string]any{"page": float64(page)}, false)), &ls))
	return ls
}

func find(t *testing.T, ls layer.List, id string) *layer.Base {
	t.Helper()
	l, ok := ls.Get(id)
	require.True(t, ok, id)
	return l.Common()
}

func TestAddUpdateDelete(t *testing.T) {
	s, _ := newServer(t, nil)

	out := call(t, s.addLayer, map[string]any{"kind": "text", "fields": map[string]any{"text": "Agent", "x": 40.0}}, false)
	assert.JSONEq(t, `{"id":"L1"}`, out)
	call(t, s.addLayer, map[string]any{"kind": "line"}, false)

	assert.JSONEq(t, `{"changed":true}`, call(t, s.updateLayer, map[string]any{"id": "L1", "fields": map[string]any{"color": "#123456"}}, false))
	call(t, s.moveLayer, map[string]any{"id": "L2", "x": 5.0, "y": 7.0}, false)

	ls := layers(t, s, 0)
	require.Len(t, ls, 2)
	text := ls[0].(*layer.Text)
	assert.Equal(t, "Agent", text.Text)
	assert.Equal(t, "#123456", text.Color)
	assert.Equal(t, 40.0, text.X)
	assert.Equal(t, 7.0, ls[1].Common().Y)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(call(t, s.getLayer, map[string]any{"id": "L1"}, false)), &got))
	assert.Equal(t, "text", got["type"])

	assert.JSONEq(t, `{"removed":["L2"]}`, call(t, s.deleteLayer, map[string]any{"id": "L2"}, false))
	call(t, s.deleteLayer, map[string]any{"id": "L2"}, true)
	call(t, s.updateLayer, map[string]any{"id": "nope", "fields": map[string]any{}}, true)
	call(t, s.getLayer, map[string]any{}, true)
}

func TestBadArguments(t *testing.T) {
	s, _ := newServer(t, nil)
	call(t, s.addLayer, map[string]any{"kind": "hexagon"}, true)
	call(t, s.addLayer, map[string]any{"kind": "text", "fields": "big"}, true)
	assert.Empty(t, layers(t, s, 0))
}

func TestReparentAndHistory(t *testing.T) {
	s, _ := newServer(t, nil)
	call(t, s.addLayer, map[string]any{"kind": "placeholder"}, false)
	call(t, s.addLayer, map[string]any{"kind": "text"}, false)

	call(t, s.reparentLayer, map[string]any{"id": "L2", "parent": "L1"}, false)
	out := call(t, s.reparentLayer, map[string]any{"id": "L1", "parent": "L2"}, true)
	assert.Contains(t, out, "refused")
	assert.Equal(t, "L1", find(t, layers(t, s, 0), "L2").ParentID)

	assert.JSONEq(t, `{"changed":true}`, call(t, s.undo, nil, false))
	assert.Empty(t, find(t, layers(t, s, 0), "L2").ParentID)
	assert.JSONEq(t, `{"changed":true}`, call(t, s.redo, nil, false))
	assert.JSONEq(t, `{"changed":false}`, call(t, s.redo, nil, false))
}

func TestSelectAndPages(t *testing.T) {
	s, sess := newServer(t, nil)
	call(t, s.addLayer, map[string]any{"kind": "text"}, false)
	assert.JSONEq(t, `{"selected":""}`, call(t, s.selectLayer, nil, false))
	assert.JSONEq(t, `{"selected":"L1"}`, call(t, s.selectLayer, map[string]any{"id": "L1"}, false))

	assert.JSONEq(t, `{"page":3}`, call(t, s.setPage, map[string]any{"page": 3.0}, false))
	call(t, s.setPage, map[string]any{"page": 0.0}, true)
	call(t, s.addLayer, map[string]any{"kind": "line"}, false)

	state, err := sess.State()
	require.NoError(t, err)
	assert.Equal(t, 3, state.Page)
	assert.Len(t, layers(t, s, 1), 1)
	assert.Len(t, layers(t, s, 3), 1)
	assert.Len(t, layers(t, s, 0), 1)
	assert.Empty(t, layers(t, s, 2))
}

func TestPageResource(t *testing.T) {
	s, _ := newServer(t, nil)
	call(t, s.addLayer, map[string]any{"kind": "table"}, false)

	var req mcp.ReadResourceRequest
	req.Params.URI = "pagelayer://pages/1"
	contents, err := s.readPage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, "application/json", text.MIMEType)
	var ls layer.List
	require.NoError(t, json.Unmarshal([]byte(text.Text), &ls))
	require.Len(t, ls, 1)
	assert.Equal(t, layer.KindTable, ls[0].Common().Kind)

	req.Params.URI = "pagelayer://pages/none"
	_, err = s.readPage(context.Background(), req)
	assert.Error(t, err)
}

type scripts struct{ names []string }

func (f *scripts) RunNamed(_ context.Context, doc *document.Document, name string) error {
	if name == "broken" {
		return fmt.Errorf("script %s failed", name)
	}
	f.names = append(f.names, name)
	doc.Add(layer.KindText, nil)
	return nil
}

func TestRunScript(t *testing.T) {
	f := &scripts{}
	s, _ := newServer(t, f)
	assert.JSONEq(t, `{"layers":1}`, call(t, s.runScript, map[string]any{"name": "title"}, false))
	assert.Contains(t, call(t, s.runScript, map[string]any{"name": "broken"}, true), "failed")
	assert.Equal(t, []string{"title"}, f.names)
}
