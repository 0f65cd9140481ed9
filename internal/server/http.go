package server

import (
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/session"
)

// SessionCookie names the cookie that carries the session id to the front end.
const SessionCookie = "pagelayer-session"

const maxPollWait = 30 * time.Second

// HTTPEndpoint routes HTTP requests.
//
//	GET  /                          new session, redirect to /{session}
//	GET  /{session}                 the front end's index.html
//	GET  /ws/{session}              websocket
//	GET  /api/{session}/state       current page state
//	GET  /api/{session}/pages/{n}   layer list of page n
//	POST /api/{session}/messages    apply messages, reply with the page state
//	GET  /api/{session}/poll        outgoing batches for clients without a websocket
type HTTPEndpoint struct {
	sessions *session.Manager
	ws       *WebSocketEndpoint
	polls    *PollQueues
	site     fs.FS
	mux      *http.ServeMux
	log      *logging.Logger
}

func NewHTTPEndpoint(sessions *session.Manager, ws *WebSocketEndpoint, log *logging.Logger) *HTTPEndpoint {
	h := &HTTPEndpoint{
		sessions: sessions,
		ws:       ws,
		polls:    NewPollQueues(),
		mux:      http.NewServeMux(),
		log:      logging.OrNop(log),
	}
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /ws/{session}", h.handleWebSocket)
	h.mux.HandleFunc("GET /api/{session}/state", h.handleState)
	h.mux.HandleFunc("GET /api/{session}/pages/{page}", h.handleExport)
	h.mux.HandleFunc("POST /api/{session}/messages", h.handleMessages)
	h.mux.HandleFunc("GET /api/{session}/poll", h.handlePoll)
	h.mux.HandleFunc("GET /", h.handleStatic)
	return h
}

// SetSite sets the file system the front end is served from.
func (h *HTTPEndpoint) SetSite(site fs.FS) {
	h.site = site
}

func (h *HTTPEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Log(2, "%s %s", r.Method, r.URL.Path)
	h.mux.ServeHTTP(w, r)
}

func (h *HTTPEndpoint) handleRoot(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	http.Redirect(w, r, "/"+sess.ID, http.StatusTemporaryRedirect)
}

// session looks up the {session} path value, answering 404 when it is unknown.
func (h *HTTPEndpoint) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(r.PathValue("session"))
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (h *HTTPEndpoint) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.session(w, r); ok {
		h.ws.HandleWebSocket(w, r, sess)
	}
}

func (h *HTTPEndpoint) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	state, err := sess.State()
	if err != nil {
		writeError(w, err.Error(), http.StatusGone)
		return
	}
	writeJSON(w, state)
}

// handleExport writes one page's layer list, bottom first.
func (h *HTTPEndpoint) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || n < 1 {
		writeError(w, "bad page number", http.StatusBadRequest)
		return
	}
	ls, err := session.Do(sess, func(d *document.Document) (layer.List, error) {
		return d.LayersOf(n), nil
	})
	if err != nil {
		writeError(w, err.Error(), http.StatusGone)
		return
	}
	if ls == nil {
		ls = layer.List{}
	}
	writeJSON(w, ls)
}

func (h *HTTPEndpoint) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessage))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.HandleMessages(r.Context(), body); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.handleState(w, r)
}

// handlePoll returns the batches queued for ?client=, waiting up to ?wait=.
// The first poll of a client joins it to the session and queues the page state.
func (h *HTTPEndpoint) handlePoll(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	client := r.URL.Query().Get("client")
	if client == "" {
		writeError(w, "missing client", http.StatusBadRequest)
		return
	}
	var wait time.Duration
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, "bad wait", http.StatusBadRequest)
			return
		}
		wait = min(d, maxPollWait)
	}
	q, created := h.polls.Get(sess.ID + "/" + client)
	if created {
		sess.AddConnection(pollConnection(client), q.Enqueue)
		sess.Refresh()
	}
	batches := q.Poll(r.Context(), wait)
	out := make([]json.RawMessage, len(batches))
	for i, b := range batches {
		out[i] = b
	}
	writeJSON(w, out)
}

func pollConnection(client string) string {
	return "poll-" + client
}

// ExpirePolls forgets polling clients that have not polled since cutoff.
func (h *HTTPEndpoint) ExpirePolls(cutoff time.Time) int {
	stale := h.polls.Stale(cutoff)
	for _, key := range stale {
		h.polls.Remove(key)
		sessionID, client, _ := strings.Cut(key, "/")
		if sess, err := h.sessions.Get(sessionID); err == nil {
			sess.RemoveConnection(pollConnection(client))
		}
	}
	return len(stale)
}

// handleStatic serves index.html for session paths and site files otherwise.
func (h *HTTPEndpoint) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	first, _, _ := strings.Cut(name, "/")
	if _, err := h.sessions.Get(first); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    first,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
		name = "index.html"
	}
	if h.site == nil {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(h.site, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
