package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replistream/client-go/protocol"
)

func newHandshakeOnlyServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{"v1.bsatn.spacetimedb"}}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		framed, err := protocol.EncodeFrame(protocol.CompressionNone,
			protocol.EncodeServerMessage(protocol.ServerMessage{InitialConnection: &protocol.InitialConnection{}}))
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, framed); err != nil {
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestBuilder_BuildDialsAndFiresOnConnect(t *testing.T) {
	srv := newHandshakeOnlyServer(t)
	defer srv.Close()

	connected := make(chan struct{}, 1)
	c, err := NewBuilder().
		WithURI("ws"+strings.TrimPrefix(srv.URL, "http")).
		WithModuleName("mymodule").
		OnConnect(func() { connected <- struct{}{} }).
		Build()
	require.NoError(t, err)
	defer c.Disconnect()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("OnConnect was never called")
	}
}

func TestBuilder_BuildFailsOnBadURI(t *testing.T) {
	_, err := NewBuilder().WithURI("://bad").WithModuleName("m").Build()
	assert.Error(t, err)
}

func TestConnection_DisconnectIsIdempotent(t *testing.T) {
	srv := newHandshakeOnlyServer(t)
	defer srv.Close()

	c, err := NewBuilder().
		WithURI("ws" + strings.TrimPrefix(srv.URL, "http")).
		WithModuleName("mymodule").
		Build()
	require.NoError(t, err)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
}
