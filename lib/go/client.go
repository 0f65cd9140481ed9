// Package layerclient drives a running pagelayer server from Go programs.
//
// A Client is one websocket view of a session: it sends the same messages a
// browser view sends and receives the page state the server pushes back.
package layerclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/zot/pagelayer/internal/protocol"
)

// ErrClosed is returned after the connection is gone.
var ErrClosed = errors.New("connection closed")

// RemoteError is an error message pushed by the server.
type RemoteError struct {
	Code        string
	Description string
}

func (e *RemoteError) Error() string {
	return e.Code + ": " + e.Description
}

// Client is a websocket connection to one session.
type Client struct {
	SessionID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	in      chan *protocol.Message
	done    chan struct{}
	once    sync.Once
	err     error
}

// CreateSession asks the server at base (http://host:port) for a new session
// and returns its id.
func CreateSession(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/", nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	resp.Body.Close()
	loc := strings.Trim(resp.Header.Get("Location"), "/")
	if resp.StatusCode/100 != 3 || loc == "" {
		return "", fmt.Errorf("create session: unexpected %s", resp.Status)
	}
	return loc, nil
}

// Dial connects to session on the server at base.
func Dial(ctx context.Context, base, session string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/" + session
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	c := &Client{
		SessionID: session,
		conn:      conn,
		in:        make(chan *protocol.Message, 64),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.in)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		msgs, err := protocol.ParseMessages(data)
		if err != nil {
			c.fail(fmt.Errorf("bad message from server: %w", err))
			return
		}
		for _, m := range msgs {
			select {
			case c.in <- m:
			case <-c.done:
				return
			}
		}
	}
}

func (c *Client) fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Send writes msgs as one batch.
func (c *Client) Send(msgs ...*protocol.Message) error {
	var data []byte
	var err error
	if len(msgs) == 1 {
		data, err = msgs[0].Encode()
	} else {
		data, err = json.Marshal(msgs)
	}
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendRaw writes an already encoded message, array or batch.
func (c *Client) SendRaw(data []byte) error {
	if _, err := protocol.ParseMessages(data); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Next returns the next message from the server.
func (c *Client) Next(ctx context.Context) (*protocol.Message, error) {
	select {
	case m, ok := <-c.in:
		if !ok {
			if c.err != nil && !websocket.IsCloseError(c.err, websocket.CloseNormalClosure) {
				return nil, c.err
			}
			return nil, ErrClosed
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State waits for the next page state. Error messages from the server are
// returned as *RemoteError.
func (c *Client) State(ctx context.Context) (*protocol.LayersMessage, error) {
	for {
		m, err := c.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch m.Type {
		case protocol.MsgLayers:
			var state protocol.LayersMessage
			if err := json.Unmarshal(m.Data, &state); err != nil {
				return nil, err
			}
			return &state, nil
		case protocol.MsgError:
			var e protocol.ErrorMessage
			if err := json.Unmarshal(m.Data, &e); err != nil {
				return nil, err
			}
			return nil, &RemoteError{Code: e.Code, Description: e.Description}
		}
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.fail(ErrClosed)
	return c.conn.Close()
}
