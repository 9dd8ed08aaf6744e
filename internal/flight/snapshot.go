// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flight

import (
	"time"

	"github.com/Thermoquad/flightcore/internal/channel"
	"github.com/Thermoquad/flightcore/internal/power"
	"github.com/Thermoquad/flightcore/internal/router"
	"github.com/Thermoquad/flightcore/internal/supervisor"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// Snapshot is a point-in-time view of the core for the monitor.
type Snapshot struct {
	Uptime         time.Duration
	DeploymentMode bool

	Tasks    []supervisor.Info
	Disabled []packetcomm.ChannelID
	Stack    int

	Power    power.Status
	BusVolts float64
	BusErr   error

	Inbound int
	Queues  map[packetcomm.ChannelID]int
	Links   map[packetcomm.ChannelID]channel.Stats
	Router  router.Counters
	Memory  MemoryReport
}

// Snapshot collects the current state. It is safe to call while Run is
// active.
func (c *Core) Snapshot() Snapshot {
	s := Snapshot{
		Uptime:         c.clk.Now().Sub(c.started),
		DeploymentMode: c.cfg.Beacon.DeploymentMode,
		Tasks:          c.sup.Entries(),
		Stack:          c.sup.StackInUse(),
		Power:          c.seq.Status(),
		Inbound:        c.inbound.Len(),
		Queues:         make(map[packetcomm.ChannelID]int, len(c.queues)),
		Links:          make(map[packetcomm.ChannelID]channel.Stats, len(c.tasks)),
		Router:         c.router.Stats().Snapshot(),
	}
	s.BusVolts, s.BusErr = c.board.ReadBusVoltage(c.cfg.Power.VoltageSensor)

	for _, ch := range packetcomm.Channels {
		s.Queues[ch] = c.queues[ch].Len()
		s.Links[ch] = c.tasks[ch].Stats()
		if c.sup.Disabled(ch) {
			s.Disabled = append(s.Disabled, ch)
		}
	}

	c.mu.Lock()
	s.Memory = c.memReport
	c.mu.Unlock()
	return s
}
