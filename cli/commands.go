package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/zot/pagelayer/internal/bundle"
	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/mcp"
	"github.com/zot/pagelayer/internal/protocol"
	"github.com/zot/pagelayer/internal/server"
	"github.com/zot/pagelayer/internal/session"
	layerclient "github.com/zot/pagelayer/lib/go"
)

// stdout is where commands print results.
var stdout io.Writer = os.Stdout

const (
	cleanupInterval = time.Minute
	shutdownTimeout = 5 * time.Second
	sendSettle      = 2 * time.Second
)

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func runServe(args []string) int {
	a, _, err := setup("serve", args)
	if err != nil {
		return fail(err)
	}
	defer a.close()

	sessions := session.NewManager(a.cfg.Session.Timeout.Duration(), a.sessionOptions())
	sessions.OnCreated(a.loadSession)
	srv := server.New(a.cfg, sessions, a.log)
	url, err := srv.StartHTTP()
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "Editor at %s\n", url)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv.StartCleanupWorker(ctx, cleanupInterval)
	<-ctx.Done()
	return shutdown(srv, a)
}

func shutdown(srv *server.Server, a *app) int {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("shutdown")
		return 1
	}
	return 0
}

// runMCP serves one session to an agent on stdio. Browsers can watch and
// edit the same session at /mcp on the HTTP server. Every change is written
// through to storage.
func runMCP(args []string) int {
	a, _, err := setup("mcp", args)
	if err != nil {
		return fail(err)
	}
	defer a.close()
	if !a.cfg.MCP.Enabled {
		return fail(errors.New("MCP is disabled in the configuration"))
	}

	opts := a.sessionOptions()
	opts.Document.Backend = a.backend
	sessions := session.NewManager(0, opts)
	sessions.OnCreated(a.loadSession)
	sess := sessions.CreateWithID("mcp")

	srv := server.New(a.cfg, sessions, a.log)
	url, err := srv.StartHTTP()
	if err != nil {
		return fail(err)
	}
	a.log.Log(0, "session %s/%s", url, sess.ID)

	mopts := mcp.Options{Version: Version, Logger: a.log}
	if a.scripts != nil {
		mopts.Scripts = a.scripts
	}
	if err := mcp.New(sess, mopts).ServeStdio(); err != nil {
		a.log.Error().Err(err).Msg("mcp")
	}
	return shutdown(srv, a)
}

// runScript runs a Lua file against the stored document and saves the
// result.
func runScript(args []string) int {
	a, rest, err := setup("script", args)
	if err != nil {
		return fail(err)
	}
	defer a.close()
	if a.scripts == nil {
		return fail(errors.New("scripting is disabled"))
	}
	if len(rest) < 1 || len(rest) > 2 {
		return fail(errors.New("usage: pagelayer script [options] FILE [PAGE]"))
	}
	page, err := pageArg(rest[1:])
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	d, err := a.loadDocument(ctx)
	if err != nil {
		return fail(err)
	}
	if page > 0 {
		d.SetActivePage(page)
	}
	if err := a.scripts.RunFile(ctx, d, rest[0]); err != nil {
		return fail(err)
	}
	if err := d.Save(ctx, a.backend); err != nil {
		return fail(err)
	}
	return printJSON(nonNil(d.Layers()))
}

// runExport prints one stored page, or every stored page keyed by number.
func runExport(args []string) int {
	a, rest, err := setup("export", args)
	if err != nil {
		return fail(err)
	}
	defer a.close()
	if len(rest) > 1 {
		return fail(errors.New("usage: pagelayer export [options] [PAGE]"))
	}
	page, err := pageArg(rest)
	if err != nil {
		return fail(err)
	}

	d, err := a.loadDocument(context.Background())
	if err != nil {
		return fail(err)
	}
	if page > 0 {
		return printJSON(nonNil(d.LayersOf(page)))
	}
	return printJSON(allPages(d))
}

func allPages(d *document.Document) map[string]layer.List {
	out := make(map[string]layer.List)
	for _, n := range d.Pages() {
		if ls := d.LayersOf(n); len(ls) > 0 {
			out[strconv.Itoa(n)] = ls
		}
	}
	return out
}

// runSend sends messages to a running server and prints the resulting page
// state. SESSION "new" creates a session first.
func runSend(args []string) int {
	a, rest, err := setup("send", args)
	if err != nil {
		return fail(err)
	}
	defer a.close()
	if len(rest) < 1 {
		return fail(errors.New("usage: pagelayer send [options] SESSION|new [MESSAGE...]"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	base := "http://" + a.cfg.Server.Addr()
	id := rest[0]
	if id == "new" {
		if id, err = layerclient.CreateSession(ctx, base); err != nil {
			return fail(err)
		}
		fmt.Fprintf(os.Stderr, "Session %s\n", id)
	}
	c, err := layerclient.Dial(ctx, base, id)
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	state, err := c.State(ctx)
	if err != nil {
		return fail(err)
	}
	for _, msg := range rest[1:] {
		if err := c.SendRaw([]byte(msg)); err != nil {
			return fail(fmt.Errorf("message %q: %w", msg, err))
		}
	}
	if len(rest) > 1 {
		state, err = settle(ctx, c, state)
		if err != nil {
			return fail(err)
		}
	}
	return printJSON(state)
}

// settle returns the last state pushed before the server goes quiet.
func settle(ctx context.Context, c *layerclient.Client, last *protocol.LayersMessage) (*protocol.LayersMessage, error) {
	for {
		wait, cancel := context.WithTimeout(ctx, sendSettle)
		state, err := c.State(wait)
		cancel()
		switch {
		case err == nil:
			last = state
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return last, nil
		default:
			return nil, err
		}
	}
}

// runBundle writes a copy of the running binary carrying a front end.
func runBundle(args []string) int {
	if len(args) != 2 {
		return fail(errors.New("usage: pagelayer bundle SITE_DIR OUTPUT"))
	}
	exe, err := os.Executable()
	if err != nil {
		return fail(err)
	}
	if err := bundle.Create(exe, args[0], args[1]); err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", args[1])
	return 0
}

func pageArg(rest []string) (int, error) {
	if len(rest) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad page %q", rest[0])
	}
	return n, nil
}

func nonNil(ls layer.List) layer.List {
	if ls == nil {
		return layer.List{}
	}
	return ls
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(err)
	}
	fmt.Fprintln(stdout, string(data))
	return 0
}
