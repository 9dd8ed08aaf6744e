// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package channel implements the cooperative task that owns one link: it
// decodes inbound bytes onto the shared inbound queue and drains its own
// outbound queue onto the wire, one packet per iteration.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/flightcore/internal/clock"
	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/internal/supervisor"
	"github.com/Thermoquad/flightcore/internal/transport"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// SendFunc encodes and transmits a packet on the task's own link.
type SendFunc func(p packetcomm.Packet) error

// Handler may intercept an outbound packet before it is transmitted.
// Handle returns true when it consumed the packet.
type Handler interface {
	Handle(ctx context.Context, p packetcomm.Packet, send SendFunc) bool
}

// Gate holds the outbound drain while it reports true.
type Gate interface {
	Settling(now time.Time) bool
}

// Config describes one channel task.
type Config struct {
	Channel  packetcomm.ChannelID
	Name     string
	Interval time.Duration
	Dial     func() (transport.Transport, error)
}

// Stats are the task's counters.
type Stats struct {
	FramesIn     uint64
	FramesOut    uint64
	DecodeErrors uint64
	IOErrors     uint64
	HeldTicks    uint64
	Link         string
}

// Task owns one queue and one transport.
type Task struct {
	cfg      Config
	inbound  *queue.Queue
	outbound *queue.Queue
	clk      clock.Clock
	quantum  func() time.Duration
	handler  Handler
	gate     Gate
	log      logging.Logger

	tr      transport.Transport
	decoder *packetcomm.Decoder
	lastErr string

	framesIn     atomic.Uint64
	framesOut    atomic.Uint64
	decodeErrors atomic.Uint64
	ioErrors     atomic.Uint64
	heldTicks    atomic.Uint64

	linkMu sync.Mutex
	link   string
}

// New creates a task. quantum supplies the scheduler quantum; the loop
// never yields for less than it.
func New(cfg Config, inbound, outbound *queue.Queue, clk clock.Clock, quantum func() time.Duration) *Task {
	name := cfg.Name
	if name == "" {
		name = cfg.Channel.String()
		cfg.Name = name
	}
	return &Task{
		cfg:      cfg,
		inbound:  inbound,
		outbound: outbound,
		clk:      clk,
		quantum:  quantum,
		log:      logging.New(name),
	}
}

// WithHandler installs an outbound interceptor.
func (t *Task) WithHandler(h Handler) *Task {
	t.handler = h
	return t
}

// WithGate installs a drain gate.
func (t *Task) WithGate(g Gate) *Task {
	t.gate = g
	return t
}

// Channel returns the channel this task owns.
func (t *Task) Channel() packetcomm.ChannelID { return t.cfg.Channel }

// Outbound returns the task's queue.
func (t *Task) Outbound() *queue.Queue { return t.outbound }

// Entry returns the supervisor entry that runs this task.
func (t *Task) Entry() supervisor.Entry {
	return supervisor.Entry{Channel: t.cfg.Channel, Name: t.cfg.Name, Run: t.Run}
}

// Run performs setup once, then polls, drains and yields until ctx is
// cancelled. Cancellation is observed at the top of the loop and inside
// every sleep.
func (t *Task) Run(ctx context.Context) {
	if err := t.setup(); err != nil {
		t.log.Warn("setup failed: %v", err)
		return
	}
	defer func() {
		if err := t.tr.Close(); err != nil {
			t.log.Debug("close: %v", err)
		}
		t.setLink("")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		t.poll()
		t.drainOne(ctx)
		if err := t.clk.Sleep(ctx, t.interval()); err != nil {
			return
		}
	}
}

func (t *Task) setup() error {
	tr, err := t.cfg.Dial()
	if err != nil {
		return err
	}
	t.tr = tr
	t.decoder = packetcomm.NewDecoder()
	t.setLink(tr.Describe())
	t.log.Info("link up: %s", tr.Describe())
	return nil
}

func (t *Task) interval() time.Duration {
	d := t.cfg.Interval
	if t.quantum != nil {
		if q := t.quantum(); q > d {
			d = q
		}
	}
	return d
}

// poll moves whatever bytes are available through the decoder and onto
// the inbound queue, one packet per decoded frame.
func (t *Task) poll() {
	data, err := t.tr.Receive()
	if err != nil {
		t.ioError("receive", err)
		return
	}
	if len(data) == 0 {
		return
	}

	packets, errs := t.decoder.Feed(data)
	for _, err := range errs {
		t.decodeErrors.Add(1)
		t.log.Debug("dropped frame: %v", err)
	}
	for _, p := range packets {
		t.framesIn.Add(1)
		t.inbound.Push(p)
	}
}

func (t *Task) drainOne(ctx context.Context) {
	if t.gate != nil && t.gate.Settling(t.clk.Now()) {
		if t.outbound.Len() > 0 {
			t.heldTicks.Add(1)
		}
		return
	}

	p, ok := t.outbound.TryPop()
	if !ok {
		return
	}
	if t.handler != nil && t.handler.Handle(ctx, p, t.send) {
		return
	}
	if err := t.send(p); err != nil {
		t.ioError("send", err)
	}
}

func (t *Task) send(p packetcomm.Packet) error {
	frame, err := packetcomm.Encode(p)
	if err != nil {
		t.log.Warn("cannot encode %s: %v", p.Type, err)
		return err
	}
	t.log.Debug("-> %s %s", p.Type, packetcomm.FormatHex(frame))
	if err := t.tr.Send(frame); err != nil {
		return err
	}
	t.framesOut.Add(1)
	t.lastErr = ""
	return nil
}

// ioError logs at warn once per distinct error, then at debug.
func (t *Task) ioError(op string, err error) {
	t.ioErrors.Add(1)
	msg := err.Error()
	if msg == t.lastErr {
		t.log.Debug("%s: %v", op, err)
		return
	}
	t.lastErr = msg
	t.log.Warn("%s: %v", op, err)
}

func (t *Task) setLink(s string) {
	t.linkMu.Lock()
	t.link = s
	t.linkMu.Unlock()
}

// Stats returns a snapshot of the counters.
func (t *Task) Stats() Stats {
	t.linkMu.Lock()
	link := t.link
	t.linkMu.Unlock()
	return Stats{
		FramesIn:     t.framesIn.Load(),
		FramesOut:    t.framesOut.Load(),
		DecodeErrors: t.decodeErrors.Load(),
		IOErrors:     t.ioErrors.Load(),
		HeldTicks:    t.heldTicks.Load(),
		Link:         link,
	}
}
