// Package server exposes editing sessions over HTTP and websockets.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/protocol"
	"github.com/zot/pagelayer/internal/session"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
	// uploads arrive inline, so messages can be large
	maxMessage = 32 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn is one websocket bound to a session. Only writePump writes to conn.
type wsConn struct {
	id   string
	sess *session.Session
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *logging.Logger
}

// WebSocketEndpoint accepts websocket connections for sessions.
type WebSocketEndpoint struct {
	log   *logging.Logger
	mu    sync.RWMutex
	conns map[string]*wsConn
}

func NewWebSocketEndpoint(log *logging.Logger) *WebSocketEndpoint {
	return &WebSocketEndpoint{
		log:   logging.OrNop(log),
		conns: make(map[string]*wsConn),
	}
}

// HandleWebSocket upgrades the request and joins the connection to sess.
// The current page state is pushed right away.
func (ws *WebSocketEndpoint) HandleWebSocket(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Log(0, "websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessage)
	id := "conn-" + uuid.NewString()
	c := &wsConn{
		id:   id,
		sess: sess,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  ws.log.With("conn", id),
	}

	ws.mu.Lock()
	ws.conns[c.id] = c
	ws.mu.Unlock()
	ws.log.Log(1, "websocket connected: session=%s conn=%s", sess.ID, c.id)

	sess.AddConnection(c.id, c.enqueue)
	go c.writePump()
	sess.Refresh()
	go ws.readPump(c)
}

func (ws *WebSocketEndpoint) readPump(c *wsConn) {
	defer ws.disconnect(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Log(0, "websocket error: %v", err)
			}
			return
		}
		c.log.Log(4, "[IN] %s", data)
		if err := c.sess.HandleMessages(ctx, data); err != nil {
			c.log.Log(1, "bad payload: %v", err)
			if b := errorBatch("bad-message", err); b != nil {
				c.enqueue(b)
			}
		}
	}
}

func (ws *WebSocketEndpoint) disconnect(c *wsConn) {
	ws.mu.Lock()
	delete(ws.conns, c.id)
	ws.mu.Unlock()
	c.sess.RemoveConnection(c.id)
	close(c.done)
	c.conn.Close()
	ws.log.Log(1, "websocket disconnected: session=%s conn=%s", c.sess.ID, c.id)
}

// enqueue hands a batch to the writer. A connection that cannot keep up
// loses batches; the next state message repeats everything that matters.
func (c *wsConn) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.Warn().Msg("send buffer full, batch dropped")
	}
}

func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Log(1, "write failed: %v", err)
				return
			}
			c.log.Log(4, "[OUT] %s", data)
		}
	}
}

// Count returns the number of open websockets.
func (ws *WebSocketEndpoint) Count() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.conns)
}

// CloseAll drops every websocket.
func (ws *WebSocketEndpoint) CloseAll() {
	ws.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(ws.conns))
	for _, c := range ws.conns {
		conns = append(conns, c.conn)
	}
	ws.mu.RUnlock()
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

func errorBatch(code string, err error) []byte {
	msg, merr := protocol.NewMessage(protocol.MsgError, protocol.ErrorMessage{Code: code, Description: err.Error()})
	if merr != nil {
		return nil
	}
	data, merr := msg.Encode()
	if merr != nil {
		return nil
	}
	return data
}
