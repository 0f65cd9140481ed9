// Package mcp lets agents edit a session's pages over the Model Context
// Protocol.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/session"
)

// PageURI is the resource template for a page's layer list.
const PageURI = "pagelayer://pages/{page}"

// ScriptRunner runs a named script against the document.
type ScriptRunner interface {
	RunNamed(ctx context.Context, doc *document.Document, name string) error
}

type Options struct {
	Name    string
	Version string
	// Scripts enables the run_script tool.
	Scripts ScriptRunner
	Logger  *logging.Logger
}

// Server exposes one session's document as MCP tools and resources. Every
// call runs on the session's executor, so agents and browser views of the
// same session never race.
type Server struct {
	sess    *session.Session
	scripts ScriptRunner
	srv     *server.MCPServer
	log     *logging.Logger
}

func New(sess *session.Session, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "pagelayer"
	}
	s := &Server{
		sess:    sess,
		scripts: opts.Scripts,
		log:     logging.OrNop(opts.Logger).With("surface", "mcp"),
	}
	s.srv = server.NewMCPServer(opts.Name, opts.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.registerTools()
	s.srv.AddResourceTemplate(
		mcp.NewResourceTemplate(PageURI, "Page layers",
			mcp.WithTemplateDescription("Layer list of one page, bottom first"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.readPage,
	)
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.srv
}

// ServeStdio serves requests on stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	s.log.Log(0, "serving MCP on stdio")
	return server.ServeStdio(s.srv)
}

// do runs fn on the session executor.
func do[T any](s *Server, fn func(*document.Document) (T, error)) (T, error) {
	return session.Do(s.sess, fn)
}

func pageLayers(d *document.Document, page int) layer.List {
	if page <= 0 {
		return d.Layers()
	}
	return d.LayersOf(page)
}
