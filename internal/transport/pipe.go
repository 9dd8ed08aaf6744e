// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"
)

const pipeBacklog = 256

// Pipe is one end of an in-memory link. Frames written on one end are read
// from the other in order.
type Pipe struct {
	name string
	in   chan []byte
	peer *Pipe

	closeOnce sync.Once
	closed    chan struct{}

	buf []byte
}

// NewPipe returns two connected ends.
func NewPipe(a, b string) (*Pipe, *Pipe) {
	pa := &Pipe{name: a, in: make(chan []byte, pipeBacklog), closed: make(chan struct{})}
	pb := &Pipe{name: b, in: make(chan []byte, pipeBacklog), closed: make(chan struct{})}
	pa.peer = pb
	pb.peer = pa
	return pa, pb
}

// Send copies frame to the peer. It fails rather than block when the peer
// is not draining.
func (p *Pipe) Send(frame []byte) error {
	select {
	case <-p.closed:
		return ErrConnectionClosed
	case <-p.peer.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case p.peer.in <- append([]byte(nil), frame...):
		return nil
	default:
		return ErrPipeFull
	}
}

// Receive returns the next pending chunk or nil.
func (p *Pipe) Receive() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.closed:
		return nil, ErrConnectionClosed
	default:
		return nil, nil
	}
}

// Read blocks until data arrives or the pipe is closed.
func (p *Pipe) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		select {
		case data := <-p.in:
			p.buf = data
		case <-p.closed:
			return 0, ErrConnectionClosed
		case <-p.peer.closed:
			return 0, ErrConnectionClosed
		}
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *Pipe) Write(b []byte) (int, error) {
	if err := p.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// Describe implements Transport.
func (p *Pipe) Describe() string {
	return "Pipe: " + p.name
}
