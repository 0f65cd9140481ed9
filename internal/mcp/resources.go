package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
)

const pagePrefix = "pagelayer://pages/"

// readPage serves pagelayer://pages/{page}.
func (s *Server) readPage(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	page, err := strconv.Atoi(strings.TrimPrefix(uri, pagePrefix))
	if !strings.HasPrefix(uri, pagePrefix) || err != nil || page < 1 {
		return nil, fmt.Errorf("bad page resource %q", uri)
	}
	ls, err := do(s, func(d *document.Document) (layer.List, error) {
		return d.LayersOf(page), nil
	})
	if err != nil {
		return nil, err
	}
	if ls == nil {
		ls = layer.List{}
	}
	data, err := json.Marshal(ls)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
