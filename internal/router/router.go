// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package router is the top-level dispatch run once per scheduler tick.
package router

import (
	"time"

	"github.com/Thermoquad/flightcore/internal/clock"
	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/internal/power"
	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// Power is the sequencer surface the router uses.
type Power interface {
	EnsurePowered() power.Outcome
	PowerOn() power.Outcome
	Settling(now time.Time) bool
	EnableLevel() bool
	Deliver(p packetcomm.Packet) bool
	DeliverShutdown(p packetcomm.Packet) bool
}

// Poller triggers a full sensor poll. Sensors enqueue their own beacons.
type Poller interface {
	Poll(elapsed time.Duration)
}

// Options tunes the router.
type Options struct {
	// HoldDuringSettle stops dispatch while the companion is settling.
	HoldDuringSettle bool
}

// Router pulls from the shared inbound queue and pushes onto channel queues.
type Router struct {
	inbound  *queue.Queue
	outbound map[packetcomm.ChannelID]*queue.Queue
	power    Power
	sensors  Poller
	clk      clock.Clock
	opts     Options
	started  time.Time
	stats    *Statistics
	log      logging.Logger
}

// New creates a router. outbound must hold a queue for every channel.
func New(inbound *queue.Queue, outbound map[packetcomm.ChannelID]*queue.Queue, pwr Power, sensors Poller, clk clock.Clock, opts Options) *Router {
	return &Router{
		inbound:  inbound,
		outbound: outbound,
		power:    pwr,
		sensors:  sensors,
		clk:      clk,
		opts:     opts,
		started:  clk.Now(),
		stats:    NewStatistics(),
		log:      logging.New("router"),
	}
}

// Stats returns the router statistics.
func (r *Router) Stats() *Statistics { return r.stats }

// Tick dispatches at most one inbound packet. It reports whether a packet
// was dispatched.
func (r *Router) Tick() bool {
	if r.opts.HoldDuringSettle && r.power.Settling(r.clk.Now()) {
		r.stats.update(func(c *Counters) { c.Ticks++; c.HeldTicks++ })
		return false
	}

	p, ok := r.inbound.TryPop()
	if !ok {
		r.stats.update(func(c *Counters) { c.Ticks++; c.IdleTicks++ })
		return false
	}

	r.stats.update(func(c *Counters) { c.Ticks++; c.Dispatched++ })
	r.Dispatch(p)
	return true
}

// Dispatch routes one packet by destination, then by type for packets
// addressed to this node.
func (r *Router) Dispatch(p packetcomm.Packet) {
	switch p.Dest {
	case packetcomm.NodeGround:
		r.forward(p)
	case packetcomm.NodeCompanion:
		r.power.EnsurePowered()
		r.toCompanion(p, r.power.Deliver, "companion shutting down")
	case packetcomm.NodeLocal:
		r.local(p)
	default:
		r.drop(p, "unknown destination")
	}
}

// forward sends p toward the channel named in its header. Only the radio
// leads to the ground.
func (r *Router) forward(p packetcomm.Packet) {
	if p.ChannelOut != packetcomm.ChannelRadio {
		r.drop(p, "no route to ground via "+p.ChannelOut.String())
		return
	}
	r.push(packetcomm.ChannelRadio, p)
}

func (r *Router) local(p packetcomm.Packet) {
	switch p.Type {
	case packetcomm.TypePing:
		r.stats.update(func(c *Counters) { c.Pongs++ })
		r.forward(packetcomm.NewPong(p))

	case packetcomm.TypeEpsCommunicate:
		r.push(packetcomm.ChannelPowerUnit, p)

	case packetcomm.TypeEpsSwitchName:
		r.switchCommand(p)

	case packetcomm.TypeEpsSwitchStatus:
		sw, err := packetcomm.ParseSwitchQuery(p.Payload)
		if err != nil {
			r.drop(p, err.Error())
			return
		}
		if sw != packetcomm.SwitchCompanionPower {
			r.push(packetcomm.ChannelPowerUnit, p)
			return
		}
		r.stats.update(func(c *Counters) { c.StatusReplies++ })
		r.forward(packetcomm.NewEpsResponse(p, r.power.EnableLevel()))

	case packetcomm.TypeObcSendBeacon:
		r.stats.update(func(c *Counters) { c.BeaconPolls++ })
		if r.sensors != nil {
			r.sensors.Poll(r.clk.Now().Sub(r.started))
		}
		r.push(packetcomm.ChannelPowerUnit, packetcomm.NewSwitchStatusQuery(packetcomm.SwitchAll))

	default:
		r.stats.update(func(c *Counters) { c.Ignored++ })
		r.log.Debug("ignoring %s from %s", p.Type, p.Origin)
	}
}

func (r *Router) switchCommand(p packetcomm.Packet) {
	if len(p.Payload) == 0 {
		r.drop(p, "empty switch command")
		return
	}
	if packetcomm.SwitchID(p.Payload[0]) != packetcomm.SwitchCompanionPower {
		r.push(packetcomm.ChannelPowerUnit, p)
		return
	}

	cmd, err := packetcomm.ParseSwitchCommand(p.Payload)
	if err != nil {
		r.drop(p, err.Error())
		return
	}

	switch {
	case cmd.TurnOff:
		// The companion task owns the shutdown; without one there is
		// nothing to shut down.
		r.toCompanion(p, r.power.DeliverShutdown, "companion not running")
	case cmd.Force:
		r.stats.update(func(c *Counters) { c.PowerRequests++ })
		outcome := r.power.PowerOn()
		r.log.Info("forced companion power on: %s", outcome)
	default:
		r.stats.update(func(c *Counters) { c.PowerRequests++ })
		outcome := r.power.EnsurePowered()
		r.log.Debug("companion power on: %s", outcome)
	}
}

func (r *Router) push(ch packetcomm.ChannelID, p packetcomm.Packet) {
	q, ok := r.outbound[ch]
	if !ok {
		r.drop(p, "no queue for "+ch.String())
		return
	}
	q.Push(p)
	r.stats.update(func(c *Counters) {
		switch ch {
		case packetcomm.ChannelRadio:
			c.ToRadio++
		case packetcomm.ChannelCompanion:
			c.ToCompanion++
		case packetcomm.ChannelPowerUnit:
			c.ToPowerUnit++
		}
	})
}

// toCompanion hands p to the sequencer, which owns the companion queue.
func (r *Router) toCompanion(p packetcomm.Packet, deliver func(packetcomm.Packet) bool, refused string) {
	if !deliver(p) {
		r.drop(p, refused)
		return
	}
	r.stats.update(func(c *Counters) { c.ToCompanion++ })
}

func (r *Router) drop(p packetcomm.Packet, reason string) {
	r.stats.update(func(c *Counters) { c.Dropped++ })
	r.log.Debug("dropped %s %s -> %s: %s", p.Type, p.Origin, p.Dest, reason)
}
