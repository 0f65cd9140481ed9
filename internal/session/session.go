// Package session keeps one editing document per connected editor.
//
// Every session owns a document, the interaction controller for its page
// view and the protocol handler that feeds both. All of them are touched only
// from the session's executor, so the editing core stays single-threaded no
// matter how many connections deliver events.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/interaction"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/protocol"
)

// Options are the settings every new session is built with.
type Options struct {
	Document    document.Config
	Interaction interaction.Options
	Protocol    protocol.Options
	Logger      *logging.Logger
}

// Session is one editing context shared by its connections.
type Session struct {
	ID string

	doc     *document.Document
	ctl     *interaction.Controller
	handler *protocol.Handler
	out     *protocol.Batcher
	svc     ChanSvc
	cancel  context.CancelFunc
	log     *logging.Logger

	mu           sync.RWMutex
	connections  map[string]func([]byte)
	createdAt    time.Time
	lastActivity time.Time
	closed       bool
}

// New creates a session and starts its executor.
func New(id string, opts Options) *Session {
	now := time.Now()
	log := logging.OrNop(opts.Logger).With("session", id)
	s := &Session{
		ID:           id,
		out:          protocol.NewBatcher(),
		svc:          make(ChanSvc),
		log:          log,
		connections:  make(map[string]func([]byte)),
		createdAt:    now,
		lastActivity: now,
	}
	opts.Document.Logger = log
	opts.Interaction.Logger = log
	opts.Protocol.Logger = log
	opts.Protocol.Post = s.post
	opts.Protocol.Context, s.cancel = context.WithCancel(context.Background())
	s.doc = document.New(opts.Document)
	s.ctl = interaction.New(s.doc, opts.Interaction)
	s.handler = protocol.NewHandler(s.doc, s.ctl, s.out, opts.Protocol)
	RunSvc(s.svc)
	return s
}

// Do runs fn on the session executor with the document and waits for it.
// Changes fn makes are broadcast to the connections afterwards.
func Do[T any](s *Session, fn func(*document.Document) (T, error)) (T, error) {
	if s.isClosed() {
		var zero T
		return zero, ErrClosed
	}
	v, err := SvcSync(s.svc, func() (T, error) {
		v, err := fn(s.doc)
		s.flush()
		return v, err
	})
	s.Touch()
	return v, err
}

// post queues fn on the executor and broadcasts what it changed.
func (s *Session) post(fn func()) {
	if s.isClosed() {
		return
	}
	Svc(s.svc, func() {
		fn()
		s.flush()
	})
}

// HandleMessages applies raw messages from a connection. Errors of single
// messages go back to the views as error messages; only a malformed payload
// is returned.
func (s *Session) HandleMessages(ctx context.Context, data []byte) error {
	msgs, err := protocol.ParseMessages(data)
	if err != nil {
		return err
	}
	_, err = Do(s, func(*document.Document) (struct{}, error) {
		for _, m := range msgs {
			if err := s.handler.Handle(ctx, m); err != nil {
				s.log.Log(1, "%s: %v", m.Type, err)
				s.handler.QueueError(err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// Refresh queues the current page state for every connection.
func (s *Session) Refresh() {
	s.post(s.handler.QueueState)
}

// State returns the page state as the views see it.
func (s *Session) State() (protocol.LayersMessage, error) {
	return Do(s, func(*document.Document) (protocol.LayersMessage, error) {
		return s.handler.State(), nil
	})
}

// flush sends queued output to every connection. Runs on the executor.
func (s *Session) flush() {
	data, err := s.out.FlushJSON()
	if err != nil {
		s.log.Error().Err(err).Msg("encode outgoing batch")
		return
	}
	if data == nil {
		return
	}
	s.mu.RLock()
	sends := make([]func([]byte), 0, len(s.connections))
	for _, send := range s.connections {
		sends = append(sends, send)
	}
	s.mu.RUnlock()
	for _, send := range sends {
		send(data)
	}
}

// AddConnection registers a connection; send receives every outgoing batch.
func (s *Session) AddConnection(id string, send func([]byte)) {
	s.mu.Lock()
	s.connections[id] = send
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.log.Log(1, "connection %s joined", id)
}

// RemoveConnection unregisters a connection and reports whether it was the last.
func (s *Session) RemoveConnection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, id)
	s.lastActivity = time.Now()
	return len(s.connections) == 0
}

func (s *Session) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close stops the executor. Later calls to Do fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connections = map[string]func([]byte){}
	s.mu.Unlock()
	s.cancel()
	Svc(s.svc, nil)
}
