// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_SendReceive(t *testing.T) {
	a, b := NewPipe("flight", "companion")
	defer a.Close()
	defer b.Close()

	data, err := b.Receive()
	require.NoError(t, err)
	assert.Nil(t, data, "empty pipe must not block or return data")

	frame := []byte{0x81, 0x00, 0xC0}
	require.NoError(t, a.Send(frame))
	frame[0] = 0xFF // sender reuses its buffer

	data, err = b.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x00, 0xC0}, data)

	require.NoError(t, b.Send([]byte("ab")))
	buf := make([]byte, 1)
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = a.Read(buf)
	assert.Equal(t, byte('b'), buf[:n][0])
}

func TestPipe_Closed(t *testing.T) {
	a, b := NewPipe("a", "b")
	require.NoError(t, b.Close())

	assert.ErrorIs(t, a.Send([]byte{1}), ErrConnectionClosed)
	_, err := b.Receive()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = a.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestPipe_Full(t *testing.T) {
	a, b := NewPipe("a", "b")
	defer b.Close()
	for i := 0; i < pipeBacklog; i++ {
		require.NoError(t, a.Send([]byte{byte(i)}))
	}
	assert.ErrorIs(t, a.Send([]byte{0}), ErrPipeFull)
}

func TestNull(t *testing.T) {
	n := NewNull()
	require.NoError(t, n.Send([]byte{1, 2, 3}))
	data, err := n.Receive()
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, int64(1), n.Sent())
}

func TestOpen(t *testing.T) {
	tr, err := Open(Spec{Kind: KindNull})
	require.NoError(t, err)
	assert.Equal(t, "Null", tr.Describe())

	_, err = Open(Spec{Kind: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Open(Spec{Kind: KindWebSocket, URL: "http://example.invalid"})
	assert.Error(t, err)
}

// echoServer answers every binary message with the same bytes and checks
// the basic auth header when credentials are configured.
func echoServer(t *testing.T, user, pass string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Text messages are noise to the client
			_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURLOf(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_RoundTrip(t *testing.T) {
	srv := echoServer(t, "ground", "secret")
	defer srv.Close()

	ws, err := DialWebSocket(wsURLOf(srv), "ground", "secret", false)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Send([]byte{0x10, 0x00, 0xC0}))

	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for got == nil && time.Now().Before(deadline) {
		got, err = ws.Receive()
		require.NoError(t, err)
		if got == nil {
			time.Sleep(time.Millisecond)
		}
	}
	assert.Equal(t, []byte{0x10, 0x00, 0xC0}, got)
	assert.Contains(t, ws.Describe(), "WebSocket: ws://")
}

func TestWebSocket_AuthRejected(t *testing.T) {
	srv := echoServer(t, "ground", "secret")
	defer srv.Close()

	_, err := DialWebSocket(wsURLOf(srv), "ground", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestWebSocket_ReadAfterServerClose(t *testing.T) {
	srv := echoServer(t, "", "")
	ws, err := DialWebSocket(wsURLOf(srv), "", "", false)
	require.NoError(t, err)
	defer ws.Close()

	srv.CloseClientConnections()
	srv.Close()

	_, err = ws.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
