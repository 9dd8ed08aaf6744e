// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "sync/atomic"

// Null discards everything sent and never receives. It stands in for links
// that have no hardware attached.
type Null struct {
	sent atomic.Int64
}

// NewNull creates a null transport.
func NewNull() *Null { return &Null{} }

// Send discards frame.
func (n *Null) Send(frame []byte) error {
	n.sent.Add(1)
	return nil
}

// Receive never has data.
func (n *Null) Receive() ([]byte, error) { return nil, nil }

func (n *Null) Close() error { return nil }

// Describe implements Transport.
func (n *Null) Describe() string { return "Null" }

// Sent returns the number of discarded frames.
func (n *Null) Sent() int64 { return n.sent.Load() }
