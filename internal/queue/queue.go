// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package queue provides the guarded FIFO used for every packet hand-off
// between tasks.
package queue

import (
	"sync"

	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// Queue is an unbounded FIFO of packets protected by its own mutex. No
// method calls out of the package while holding the lock, so a caller can
// never end up holding two queue locks at once.
type Queue struct {
	name string

	mu      sync.Mutex
	packets []packetcomm.Packet
}

// New creates an empty queue. The name is only used in logs and snapshots.
func New(name string) *Queue {
	return &Queue{name: name}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Push appends a copy of p to the tail. The caller may reuse p's payload
// once Push returns.
func (q *Queue) Push(p packetcomm.Packet) {
	p = p.Clone()
	q.mu.Lock()
	q.packets = append(q.packets, p)
	q.mu.Unlock()
}

// TryPop removes and returns the head packet. It never blocks; ok is false
// when the queue is empty.
func (q *Queue) TryPop() (p packetcomm.Packet, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packets) == 0 {
		return packetcomm.Packet{}, false
	}
	p = q.packets[0]
	q.packets[0] = packetcomm.Packet{}
	q.packets = q.packets[1:]
	if len(q.packets) == 0 {
		q.packets = nil
	}
	return p, true
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

// Clear discards every queued packet and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.packets)
	q.packets = nil
	return n
}
