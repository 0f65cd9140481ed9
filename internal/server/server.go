package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/zot/pagelayer/internal/bundle"
	"github.com/zot/pagelayer/internal/config"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/session"
)

// Server is the editor server: sessions behind an HTTP endpoint.
type Server struct {
	cfg        *config.Config
	sessions   *session.Manager
	ws         *WebSocketEndpoint
	endpoint   *HTTPEndpoint
	httpServer *http.Server
	log        *logging.Logger
}

// New creates a server for sessions. The front end comes from
// cfg.Server.Dir when set, otherwise from a bundle in the executable.
func New(cfg *config.Config, sessions *session.Manager, log *logging.Logger) *Server {
	log = logging.OrNop(log)
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		ws:       NewWebSocketEndpoint(log),
		log:      log,
	}
	s.endpoint = NewHTTPEndpoint(sessions, s.ws, log)
	if cfg.Server.Dir != "" {
		s.endpoint.SetSite(os.DirFS(cfg.Server.Dir))
	} else if site, err := bundle.Self(); err == nil {
		s.endpoint.SetSite(site)
	} else if !errors.Is(err, bundle.ErrNotBundled) {
		log.Warn().Err(err).Msg("bundled front end")
	}
	return s
}

// SetSite replaces the front end file system.
func (s *Server) SetSite(site fs.FS) {
	s.endpoint.SetSite(site)
}

func (s *Server) Handler() http.Handler {
	return s.endpoint
}

// StartHTTP listens on the configured address and serves in the background.
// It returns the base URL; with port 0 the chosen port is written back to
// the configuration.
func (s *Server) StartHTTP() (string, error) {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	if s.cfg.Server.Port == 0 {
		_, port, _ := net.SplitHostPort(listener.Addr().String())
		s.cfg.Server.Port, _ = strconv.Atoi(port)
	}
	s.httpServer = &http.Server{Handler: s.endpoint}
	go func() {
		s.log.Log(0, "HTTP server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("HTTP server")
		}
	}()

	host := s.cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.cfg.Server.Port), nil
}

// StartCleanupWorker closes idle sessions and forgets silent polling clients
// every interval until ctx is done.
func (s *Server) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	go s.sessions.RunCleanup(ctx, interval)
	timeout := s.cfg.Session.Timeout.Duration()
	if timeout <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if n := s.endpoint.ExpirePolls(now.Add(-timeout)); n > 0 {
					s.log.Log(1, "dropped %d polling clients", n)
				}
			}
		}
	}()
}

// Shutdown stops the HTTP server, drops websockets and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.ws.CloseAll()
	s.sessions.CloseAll()
	return err
}
