// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsBacklog = 64

// WebSocket carries frames as binary messages to a bridge (ground station
// gateway or bench harness). A reader goroutine moves incoming messages
// into a buffered channel so Receive never blocks.
type WebSocket struct {
	conn *websocket.Conn
	url  string

	writeMu sync.Mutex

	incoming chan []byte
	errMu    sync.Mutex
	err      error

	// leftover of a message partially consumed by Read
	buf []byte
}

// DialWebSocket opens a WebSocket connection with optional HTTP Basic auth.
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocket(conn, wsURL), nil
}

func newWebSocket(conn *websocket.Conn, wsURL string) *WebSocket {
	w := &WebSocket{
		conn:     conn,
		url:      wsURL,
		incoming: make(chan []byte, wsBacklog),
	}
	go w.readLoop()
	return w
}

func (w *WebSocket) readLoop() {
	defer close(w.incoming)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.errMu.Lock()
			w.err = err
			w.errMu.Unlock()
			return
		}
		// Frames only travel as binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.incoming <- data
	}
}

func (w *WebSocket) closedErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
}

// Read blocks until a message is available.
func (w *WebSocket) Read(p []byte) (int, error) {
	if len(w.buf) == 0 {
		data, ok := <-w.incoming
		if !ok {
			return 0, w.closedErr()
		}
		w.buf = data
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *WebSocket) Write(p []byte) (int, error) {
	if err := w.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Send writes one binary message.
func (w *WebSocket) Send(frame []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Receive returns the next pending message without waiting.
func (w *WebSocket) Receive() ([]byte, error) {
	if len(w.buf) > 0 {
		data := w.buf
		w.buf = nil
		return data, nil
	}
	select {
	case data, ok := <-w.incoming:
		if !ok {
			return nil, w.closedErr()
		}
		return data, nil
	default:
		return nil, nil
	}
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}

// Describe implements Transport.
func (w *WebSocket) Describe() string {
	return "WebSocket: " + w.url
}
