// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package router

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks dispatch counters and rates. It is safe for concurrent
// use; the monitor reads it while the main loop updates it.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// Counters is a copy of the statistics at one instant.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Ticks
	Ticks     uint64
	IdleTicks uint64
	HeldTicks uint64

	// Dispatch
	Dispatched    uint64
	ToRadio       uint64
	ToCompanion   uint64
	ToPowerUnit   uint64
	Pongs         uint64
	StatusReplies uint64
	PowerRequests uint64
	BeaconPolls   uint64
	Dropped       uint64
	Ignored       uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	DropRate   float64 // drops/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

func (s *Statistics) update(fn func(c *Counters)) {
	s.mu.Lock()
	fn(&s.c)
	s.c.LastUpdateTime = time.Now()
	s.mu.Unlock()
}

// Snapshot returns the counters with rates calculated.
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	c := s.c
	s.mu.Unlock()

	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.PacketRate = float64(c.Dispatched) / elapsed
		c.DropRate = float64(c.Dropped) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	var dropPercent float64
	if c.Dispatched > 0 {
		dropPercent = float64(c.Dropped) * 100.0 / float64(c.Dispatched)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Router (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Ticks:           %8d (idle %d, held %d)\n", c.Ticks, c.IdleTicks, c.HeldTicks)
	result += fmt.Sprintf("Dispatched:      %8d\n", c.Dispatched)
	result += fmt.Sprintf("  To Radio:         %5d\n", c.ToRadio)
	result += fmt.Sprintf("  To Companion:     %5d\n", c.ToCompanion)
	result += fmt.Sprintf("  To Power Unit:    %5d\n", c.ToPowerUnit)

	if c.Pongs > 0 {
		result += fmt.Sprintf("  Pongs:            %5d\n", c.Pongs)
	}
	if c.StatusReplies > 0 {
		result += fmt.Sprintf("  Status Replies:   %5d\n", c.StatusReplies)
	}
	if c.PowerRequests > 0 {
		result += fmt.Sprintf("  Power Requests:   %5d\n", c.PowerRequests)
	}
	if c.BeaconPolls > 0 {
		result += fmt.Sprintf("  Beacon Polls:     %5d\n", c.BeaconPolls)
	}
	if c.Dropped > 0 {
		result += fmt.Sprintf("Dropped:         %8d (%.1f%%)\n", c.Dropped, dropPercent)
	}
	if c.Ignored > 0 {
		result += fmt.Sprintf("Ignored:         %8d\n", c.Ignored)
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", c.PacketRate)
	result += fmt.Sprintf("Drop Rate:       %8.1f drops/sec\n", c.DropRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.mu.Lock()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
	s.mu.Unlock()
}
