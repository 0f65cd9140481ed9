package cli

import (
	"context"
	"fmt"

	"github.com/zot/pagelayer/internal/config"
	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/interaction"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/lua"
	"github.com/zot/pagelayer/internal/protocol"
	"github.com/zot/pagelayer/internal/session"
	"github.com/zot/pagelayer/internal/storage"
	"github.com/zot/pagelayer/internal/upload"
)

// app is what every command builds from its configuration.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	backend storage.Backend
	scripts *lua.Runner
}

// setup loads the configuration for command name and opens the logger and
// storage. It returns the positional arguments.
func setup(name string, args []string) (*app, []string, error) {
	cfg, rest, err := config.Load(name, args)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New().
		FromPath(cfg.Logging.File).
		Level(cfg.Logging.Level).
		Verbosity(cfg.Logging.Verbosity).
		Make()
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.Open(cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.URL)
	if err != nil {
		log.Close()
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	a := &app{cfg: cfg, log: log, backend: backend}
	if cfg.Lua.Enabled {
		a.scripts = lua.NewRunner(cfg.Lua.Path, log)
	}
	log.Log(1, "%s: storage=%s lua=%v", name, cfg.Storage.Type, cfg.Lua.Enabled)
	return a, rest, nil
}

func (a *app) close() {
	if err := a.backend.Close(); err != nil {
		a.log.Error().Err(err).Msg("close storage")
	}
	a.log.Close()
}

func (a *app) documentConfig() document.Config {
	return document.Config{
		HistoryLimit:     a.cfg.Editor.HistoryLimit,
		CoalesceGestures: a.cfg.Editor.CoalesceGestures,
		Logger:           a.log,
	}
}

func (a *app) sessionOptions() session.Options {
	opts := session.Options{
		Document: a.documentConfig(),
		Interaction: interaction.Options{
			MinSize:      a.cfg.Editor.MinSize,
			MinTableSize: a.cfg.Editor.MinTableSize,
		},
		Protocol: protocol.Options{
			Uploads:       upload.Reader{MaxSize: upload.DefaultMaxSize},
			Backend:       a.backend,
			RotationAware: a.cfg.Editor.RotationAware,
		},
		Logger: a.log,
	}
	if a.scripts != nil {
		opts.Protocol.Scripts = a.scripts
	}
	return opts
}

// loadSession fills a new session's document from storage.
func (a *app) loadSession(s *session.Session) {
	_, err := session.Do(s, func(d *document.Document) (struct{}, error) {
		return struct{}{}, d.Load(context.Background(), a.backend)
	})
	if err != nil {
		a.log.Error().Err(err).Str("session", s.ID).Msg("load document")
	}
}

// loadDocument builds a standalone document from storage.
func (a *app) loadDocument(ctx context.Context) (*document.Document, error) {
	d := document.New(a.documentConfig())
	if err := d.Load(ctx, a.backend); err != nil {
		return nil, err
	}
	return d, nil
}
