package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
)

func newManager(timeout time.Duration) *Manager {
	return NewManager(timeout, Options{Document: document.DefaultConfig()})
}

func TestCreateAndGet(t *testing.T) {
	m := newManager(time.Hour)
	s := m.Create()
	if s.ID == "" {
		t.Fatal("expected a session id")
	}
	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := m.Get("nope"); err != ErrNotFound {
		t.Errorf("missing session: %v", err)
	}
	if m.CreateWithID(s.ID) != s {
		t.Error("CreateWithID should return the existing session")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestUniqueIDs(t *testing.T) {
	m := newManager(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := m.Create().ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestDoRunsOnExecutor(t *testing.T) {
	s := newManager(0).Create()
	id, err := Do(s, func(d *document.Document) (string, error) {
		return d.Add(layer.KindText, nil), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	n, _ := Do(s, func(d *document.Document) (int, error) {
		return len(d.Layers()), nil
	})
	if n != 1 || id == "" {
		t.Errorf("layers = %d, id = %q", n, id)
	}
}

func TestConcurrentMessagesAreSerialized(t *testing.T) {
	s := newManager(0).Create()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.HandleMessages(context.Background(), []byte(`{"type":"add","data":{"kind":"line"}}`)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	state, err := s.State()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Layers) != 20 {
		t.Errorf("got %d layers, want 20", len(state.Layers))
	}
}

func TestBroadcast(t *testing.T) {
	s := newManager(0).Create()
	var mu sync.Mutex
	var got []string
	s.AddConnection("c1", func(b []byte) {
		mu.Lock()
		got = append(got, string(b))
		mu.Unlock()
	})

	if err := s.HandleMessages(context.Background(), []byte(`{"type":"add","data":{"kind":"text"}}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.HandleMessages(context.Background(), []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("got %d batches, want 2", len(got))
	}
	if !strings.Contains(got[0], `"type":"layers"`) {
		t.Errorf("first batch: %s", got[0])
	}
	if !strings.Contains(got[1], `"unknown-message"`) {
		t.Errorf("second batch: %s", got[1])
	}
}

func TestMalformedPayload(t *testing.T) {
	s := newManager(0).Create()
	if err := s.HandleMessages(context.Background(), []byte(`{"type":`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestConnections(t *testing.T) {
	s := newManager(0).Create()
	s.AddConnection("a", func([]byte) {})
	s.AddConnection("b", func([]byte) {})
	if s.RemoveConnection("a") {
		t.Error("b is still connected")
	}
	if !s.RemoveConnection("b") {
		t.Error("b was the last connection")
	}
}

func TestCleanupInactive(t *testing.T) {
	m := newManager(time.Minute)
	idle := m.Create()
	busy := m.Create()
	busy.AddConnection("c", func([]byte) {})

	closed := 0
	m.OnClosed(func(*Session) { closed++ })
	if n := m.CleanupInactive(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("closed %d sessions, want 1", n)
	}
	if _, err := m.Get(idle.ID); err != ErrNotFound {
		t.Error("idle session should be gone")
	}
	if _, err := Do(idle, func(*document.Document) (int, error) { return 0, nil }); err != ErrClosed {
		t.Errorf("closed session Do: %v", err)
	}
	if closed != 1 {
		t.Errorf("OnClosed ran %d times", closed)
	}
	if newManager(0).CleanupInactive(time.Now().Add(time.Hour)) != 0 {
		t.Error("zero timeout never cleans up")
	}
}

func TestCloseAll(t *testing.T) {
	m := newManager(0)
	m.Create()
	m.Create()
	m.CloseAll()
	if m.Count() != 0 {
		t.Errorf("Count = %d", m.Count())
	}
}
