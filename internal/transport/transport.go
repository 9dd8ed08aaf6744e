// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte-stream links the channel tasks and
// the command line tools talk over: a UART, a WebSocket bridge, an
// in-memory pipe and a null sink.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Conn is the blocking byte stream used by the command line tools.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Transport is the non-blocking frame primitive used by channel tasks.
type Transport interface {
	// Send writes one encoded frame.
	Send(frame []byte) error
	// Receive returns the bytes that are available right now, or nil.
	// It never waits longer than the transport's poll timeout.
	Receive() ([]byte, error)
	Close() error
	// Describe returns a one-line description for logs.
	Describe() string
}

// Kinds accepted by Open
const (
	KindSerial    = "serial"
	KindWebSocket = "websocket"
	KindNull      = "null"
)

// Errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrUnknownKind      = errors.New("unknown transport kind")
	ErrPipeFull         = errors.New("pipe buffer full")
)

// Spec describes how to open a transport.
type Spec struct {
	Kind string

	// Serial
	Port        string
	Baud        int
	PollTimeout time.Duration

	// WebSocket
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Open dials the transport described by spec.
func Open(spec Spec) (Transport, error) {
	switch spec.Kind {
	case KindSerial:
		return OpenSerial(spec.Port, spec.Baud, spec.PollTimeout)
	case KindWebSocket:
		return DialWebSocket(spec.URL, spec.Username, spec.Password, spec.SkipSSLVerify)
	case KindNull, "":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("%q: %w", spec.Kind, ErrUnknownKind)
	}
}
