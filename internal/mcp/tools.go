package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/protocol"
)

var kinds = []string{
	string(layer.KindText),
	string(layer.KindImage),
	string(layer.KindPlaceholder),
	string(layer.KindPath),
	string(layer.KindTable),
	string(layer.KindLine),
}

func (s *Server) registerTools() {
	s.srv.AddTool(mcp.NewTool("list_layers",
		mcp.WithDescription("List the layers of a page, bottom first"),
		mcp.WithNumber("page", mcp.Description("Page number; the active page when omitted")),
	), s.listLayers)
	s.srv.AddTool(mcp.NewTool("get_layer",
		mcp.WithDescription("Get one layer of the active page"),
		mcp.WithString("id", mcp.Required()),
	), s.getLayer)
	s.srv.AddTool(mcp.NewTool("add_layer",
		mcp.WithDescription("Add a layer on top of the active page and select it"),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(kinds...)),
		mcp.WithObject("fields", mcp.Description("Field values merged over the kind's defaults")),
	), s.addLayer)
	s.srv.AddTool(mcp.NewTool("update_layer",
		mcp.WithDescription("Merge field values into a layer"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithObject("fields", mcp.Required()),
	), s.updateLayer)
	s.srv.AddTool(mcp.NewTool("move_layer",
		mcp.WithDescription("Move a layer to a position in page units"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithNumber("x", mcp.Required()),
		mcp.WithNumber("y", mcp.Required()),
	), s.moveLayer)
	s.srv.AddTool(mcp.NewTool("delete_layer",
		mcp.WithDescription("Delete a layer and its descendants"),
		mcp.WithString("id", mcp.Required()),
	), s.deleteLayer)
	s.srv.AddTool(mcp.NewTool("reparent_layer",
		mcp.WithDescription("Move a layer under a parent, or to the top level without one"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("parent", mcp.Description("New parent id")),
	), s.reparentLayer)
	s.srv.AddTool(mcp.NewTool("select_layer",
		mcp.WithDescription("Select a layer, or clear the selection without an id"),
		mcp.WithString("id"),
	), s.selectLayer)
	s.srv.AddTool(mcp.NewTool("set_page",
		mcp.WithDescription("Switch the active page"),
		mcp.WithNumber("page", mcp.Required()),
	), s.setPage)
	s.srv.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change on the active page"),
	), s.undo)
	s.srv.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change on the active page"),
	), s.redo)
	if s.scripts != nil {
		s.srv.AddTool(mcp.NewTool("run_script",
			mcp.WithDescription("Run a Lua script from the script directory as one undoable step"),
			mcp.WithString("name", mcp.Required()),
		), s.runScript)
	}
}

// result encodes v as the tool's JSON text, or turns err into a tool error.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func fields(req mcp.CallToolRequest) (layer.Patch, error) {
	v, ok := req.GetArguments()["fields"]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("fields must be an object")
	}
	return layer.Patch(m), nil
}

func (s *Server) listLayers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := req.GetInt("page", 0)
	return result(do(s, func(d *document.Document) (layer.List, error) {
		ls := pageLayers(d, page)
		if ls == nil {
			ls = layer.List{}
		}
		return ls, nil
	}))
}

func (s *Server) getLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return result(nil, err)
	}
	return result(do(s, func(d *document.Document) (layer.Layer, error) {
		l, ok := d.Layer(id)
		if !ok {
			return nil, fmt.Errorf("no layer %q", id)
		}
		return l, nil
	}))
}

func (s *Server) addLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := layer.Kind(req.GetString("kind", ""))
	if !kind.Known() {
		return result(nil, fmt.Errorf("unknown layer kind %q", kind))
	}
	patch, err := fields(req)
	if err != nil {
		return result(nil, err)
	}
	return result(do(s, func(d *document.Document) (map[string]string, error) {
		return map[string]string{"id": d.Add(kind, patch)}, nil
	}))
}

func (s *Server) updateLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return result(nil, err)
	}
	patch, err := fields(req)
	if err != nil {
		return result(nil, err)
	}
	return s.change(id, func(d *document.Document) bool { return d.Update(id, patch) })
}

func (s *Server) moveLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return result(nil, err)
	}
	patch := layer.Move(req.GetFloat("x", 0), req.GetFloat("y", 0))
	return s.change(id, func(d *document.Document) bool { return d.Update(id, patch) })
}

// change applies fn to an existing layer and reports whether anything changed.
func (s *Server) change(id string, fn func(*document.Document) bool) (*mcp.CallToolResult, error) {
	return result(do(s, func(d *document.Document) (map[string]bool, error) {
		if _, ok := d.Layer(id); !ok {
			return nil, fmt.Errorf("no layer %q", id)
		}
		return map[string]bool{"changed": fn(d)}, nil
	}))
}

func (s *Server) deleteLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return result(nil, err)
	}
	return result(do(s, func(d *document.Document) (map[string][]string, error) {
		removed := d.Delete(id)
		if len(removed) == 0 {
			return nil, fmt.Errorf("no layer %q", id)
		}
		return map[string][]string{"removed": removed}, nil
	}))
}

func (s *Server) reparentLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return result(nil, err)
	}
	parent := req.GetString("parent", "")
	return result(do(s, func(d *document.Document) (map[string]bool, error) {
		if !d.Reparent(id, parent) {
			return nil, fmt.Errorf("reparent %s under %q: %w", id, parent, protocol.ErrRefused)
		}
		return map[string]bool{"changed": true}, nil
	}))
}

func (s *Server) selectLayer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	return result(do(s, func(d *document.Document) (map[string]string, error) {
		d.Select(id)
		return map[string]string{"selected": d.Selected()}, nil
	}))
}

// setPage goes through the protocol so the views' page geometry follows.
func (s *Server) setPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := req.GetInt("page", 0)
	if page < 1 {
		return result(nil, fmt.Errorf("page %d: %w", page, protocol.ErrRefused))
	}
	msg, err := protocol.NewMessage(protocol.MsgPage, protocol.PageMessage{Page: page})
	if err != nil {
		return nil, err
	}
	data, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.sess.HandleMessages(ctx, data); err != nil {
		return result(nil, err)
	}
	return result(map[string]int{"page": page}, nil)
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(do(s, func(d *document.Document) (map[string]bool, error) {
		return map[string]bool{"changed": d.Undo()}, nil
	}))
}

func (s *Server) redo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(do(s, func(d *document.Document) (map[string]bool, error) {
		return map[string]bool{"changed": d.Redo()}, nil
	}))
}

func (s *Server) runScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return result(nil, err)
	}
	return result(do(s, func(d *document.Document) (map[string]int, error) {
		if err := s.scripts.RunNamed(ctx, d, name); err != nil {
			return nil, err
		}
		return map[string]int{"layers": len(d.Layers())}, nil
	}))
}
