package layerclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/protocol"
	"github.com/zot/pagelayer/internal/server"
	"github.com/zot/pagelayer/internal/session"
)

func newServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(0, session.Options{Document: document.DefaultConfig()})
	srv := httptest.NewServer(server.NewHTTPEndpoint(sessions, server.NewWebSocketEndpoint(nil), nil))
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
	})
	return srv, sessions
}

func TestCreateAndEdit(t *testing.T) {
	srv, sessions := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := CreateSession(ctx, srv.URL)
	require.NoError(t, err)
	_, err = sessions.Get(id)
	require.NoError(t, err)

	c, err := Dial(ctx, srv.URL, id)
	require.NoError(t, err)
	defer c.Close()

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Page)
	assert.Empty(t, state.Layers)

	add, err := protocol.NewMessage(protocol.MsgAdd, protocol.AddMessage{Kind: layer.KindText})
	require.NoError(t, err)
	require.NoError(t, c.Send(add))
	state, err = c.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.Layers, 1)
	assert.Equal(t, layer.KindText, state.Layers[0].Common().Kind)
	assert.Equal(t, state.Layers[0].Common().ID, state.Selected)
	assert.True(t, state.CanUndo)
}

func TestRemoteError(t *testing.T) {
	srv, sessions := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.URL, sessions.Create().ID)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.State(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SendRaw([]byte(`{"type":"page","data":{"page":0}}`)))
	_, err = c.State(ctx)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote), "%v", err)
	assert.Equal(t, "refused", remote.Code)

	assert.Error(t, c.SendRaw([]byte(`{"type":`)))
}

func TestDialUnknownSession(t *testing.T) {
	srv, _ := newServer(t)
	_, err := Dial(context.Background(), srv.URL, "nope")
	assert.Error(t, err)
}

func TestNextAfterClose(t *testing.T) {
	srv, sessions := newServer(t)
	c, err := Dial(context.Background(), srv.URL, sessions.Create().ID)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		if _, err = c.Next(ctx); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Send(&protocol.Message{Type: protocol.MsgUndo}), ErrClosed)
}
