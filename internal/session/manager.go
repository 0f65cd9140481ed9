package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zot/pagelayer/internal/logging"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session closed")
)

// Manager owns all sessions.
type Manager struct {
	opts      Options
	timeout   time.Duration
	log       *logging.Logger
	onCreated func(*Session)
	onClosed  func(*Session)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. A zero timeout keeps idle sessions forever.
func NewManager(timeout time.Duration, opts Options) *Manager {
	return &Manager{
		opts:     opts,
		timeout:  timeout,
		log:      logging.OrNop(opts.Logger),
		sessions: make(map[string]*Session),
	}
}

// OnCreated registers a hook run for every new session.
func (m *Manager) OnCreated(fn func(*Session)) { m.onCreated = fn }

// OnClosed registers a hook run after a session is closed.
func (m *Manager) OnClosed(fn func(*Session)) { m.onClosed = fn }

// Create starts a session with a fresh id.
func (m *Manager) Create() *Session {
	return m.CreateWithID(uuid.NewString())
}

// CreateWithID starts a session under a caller-chosen id, or returns the
// existing one.
func (m *Manager) CreateWithID(id string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s
	}
	s := New(id, m.opts)
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.Log(1, "session %s created", id)
	if m.onCreated != nil {
		m.onCreated(s)
	}
	return s
}

// Get looks a session up.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Destroy closes and forgets a session. Unknown ids are ignored.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	m.log.Log(1, "session %s closed", id)
	if m.onClosed != nil {
		m.onClosed(s)
	}
}

// All returns every live session.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupInactive closes sessions without connections that have been idle
// longer than the timeout, and returns how many it closed.
func (m *Manager) CleanupInactive(now time.Time) int {
	if m.timeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.timeout)
	var stale []string
	for _, s := range m.All() {
		if s.ConnectionCount() == 0 && s.LastActivity().Before(cutoff) {
			stale = append(stale, s.ID)
		}
	}
	for _, id := range stale {
		m.Destroy(id)
	}
	return len(stale)
}

// RunCleanup calls CleanupInactive every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.CleanupInactive(now); n > 0 {
				m.log.Log(0, "closed %d idle sessions", n)
			}
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, s := range m.All() {
		m.Destroy(s.ID)
	}
}
