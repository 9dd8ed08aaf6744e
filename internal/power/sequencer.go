// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package power sequences the companion module's power line.
//
// The power state is never stored: every decision reads the readiness
// signal, the enable line and the bus voltage at the moment it is made.
// Powering on arms a settle deadline instead of blocking; callers consult
// Settling to hold work until the hardware has settled.
package power

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/flightcore/internal/clock"
	"github.com/Thermoquad/flightcore/internal/hal"
	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/internal/supervisor"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// Outcome is the result of a power-on request.
type Outcome int

const (
	AlreadyPowered Outcome = iota
	Enabled
	Insufficient
	StartFailed
	ShuttingDown
)

func (o Outcome) String() string {
	switch o {
	case AlreadyPowered:
		return "already powered"
	case Enabled:
		return "enabled"
	case Insufficient:
		return "insufficient voltage"
	case StartFailed:
		return "task start failed"
	case ShuttingDown:
		return "shutting down"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Registry is the part of the supervisor the sequencer drives.
type Registry interface {
	Start(entry supervisor.Entry, stackBudget int) (supervisor.TaskHandle, error)
	RequestSelfTermination(ch packetcomm.ChannelID) (supervisor.TaskHandle, error)
	Registered(ch packetcomm.ChannelID) bool
	Disabled(ch packetcomm.ChannelID) bool
}

// Config holds the thresholds, delays and wiring of the sequencer.
type Config struct {
	ThresholdVolts float64
	Settle         time.Duration
	Drain          time.Duration
	VoltageSensor  string
	EnablePin      hal.Pin
	ReadyPin       hal.Pin
	CompanionStack int
}

// DefaultConfig returns the flight defaults.
func DefaultConfig() Config {
	return Config{
		ThresholdVolts: 7.0,
		Settle:         5 * time.Second,
		Drain:          20 * time.Second,
		VoltageSensor:  "battery_board",
		EnablePin:      2,
		ReadyPin:       25,
		CompanionStack: 2048,
	}
}

// Stats counts sequencer decisions.
type Stats struct {
	Enables       uint64
	Insufficient  uint64
	StartFailures uint64
	PowerOffs     uint64
	LastVoltage   float64
}

// Status is a point-in-time view for the monitor.
type Status struct {
	Enabled         bool
	Ready           bool
	Settling        bool
	SettleRemaining time.Duration
	Stats           Stats
}

// phase marks a power transition in progress.
type phase int

const (
	idle phase = iota
	enabling
	stopping
)

// Sequencer gates the companion module's power.
//
// mu only guards the fields below it and is never held across a call into
// the board, a queue or the registry. A transition claims its phase under
// mu and then runs with no lock held.
type Sequencer struct {
	cfg        Config
	board      hal.Board
	reg        Registry
	clk        clock.Clock
	companion  supervisor.Entry
	companionQ *queue.Queue
	powerUnitQ *queue.Queue
	log        logging.Logger

	mu          sync.Mutex
	changed     *sync.Cond
	phase       phase
	pushing     int
	settleUntil time.Time
	stats       Stats
}

// New creates a sequencer. companion is the entry used to start the
// companion channel task; companionQ is that task's queue and powerUnitQ
// receives telemetry refresh queries.
func New(cfg Config, board hal.Board, reg Registry, clk clock.Clock, companion supervisor.Entry, companionQ, powerUnitQ *queue.Queue) *Sequencer {
	s := &Sequencer{
		cfg:        cfg,
		board:      board,
		reg:        reg,
		clk:        clk,
		companion:  companion,
		companionQ: companionQ,
		powerUnitQ: powerUnitQ,
		log:        logging.New("power"),
	}
	s.changed = sync.NewCond(&s.mu)
	return s
}

// EnsurePowered powers the companion module if it is not already up and
// the bus can carry it. Below the threshold it asks the power unit for a
// switch status refresh instead.
func (s *Sequencer) EnsurePowered() Outcome {
	if s.board.ReadDigital(s.cfg.ReadyPin) {
		return AlreadyPowered
	}
	return s.powerOn()
}

// PowerOn is the forced path: it does not wait for the readiness signal,
// but it still refuses to drive the line below the voltage threshold and
// never starts a second companion task.
func (s *Sequencer) PowerOn() Outcome {
	return s.powerOn()
}

func (s *Sequencer) powerOn() Outcome {
	if !s.claim(enabling) {
		return ShuttingDown
	}
	defer s.release()

	if s.board.ReadDigital(s.cfg.EnablePin) && s.reg.Registered(s.companion.Channel) {
		return AlreadyPowered
	}
	return s.enable()
}

// claim enters phase p if no other transition is running.
func (s *Sequencer) claim(p phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != idle {
		return false
	}
	s.phase = p
	return true
}

func (s *Sequencer) release() {
	s.mu.Lock()
	s.phase = idle
	s.changed.Broadcast()
	s.mu.Unlock()
}

func (s *Sequencer) enable() Outcome {
	if s.reg.Disabled(s.companion.Channel) {
		s.log.Debug("companion channel disabled, not powering on")
		return StartFailed
	}

	volts, err := s.board.ReadBusVoltage(s.cfg.VoltageSensor)
	if err != nil {
		s.log.Warn("cannot read bus voltage: %v", err)
		s.insufficient(0)
		return Insufficient
	}
	if volts < s.cfg.ThresholdVolts {
		s.log.Info("bus at %.2f V (need %.2f V), refreshing switch status", volts, s.cfg.ThresholdVolts)
		s.insufficient(volts)
		return Insufficient
	}

	s.log.Info("bus at %.2f V, turning on companion", volts)
	s.board.WriteDigital(s.cfg.EnablePin, true)
	_, startErr := s.reg.Start(s.companion, s.cfg.CompanionStack)

	s.mu.Lock()
	s.settleUntil = s.clk.Now().Add(s.cfg.Settle)
	s.stats.LastVoltage = volts
	s.stats.Enables++
	if startErr != nil {
		s.stats.StartFailures++
	}
	s.mu.Unlock()

	if startErr != nil {
		s.log.Error("failed to start companion task: %v", startErr)
		return StartFailed
	}
	s.log.Debug("settling for %v", s.cfg.Settle)
	return Enabled
}

func (s *Sequencer) insufficient(volts float64) {
	s.mu.Lock()
	s.stats.Insufficient++
	s.stats.LastVoltage = volts
	s.mu.Unlock()
	s.powerUnitQ.Push(packetcomm.NewSwitchStatusQuery(packetcomm.SwitchAll))
}

// Deliver queues p for the companion module. It refuses while a shutdown
// is discarding the companion queue.
func (s *Sequencer) Deliver(p packetcomm.Packet) bool {
	return s.deliver(p, false)
}

// DeliverShutdown queues a companion power-off request, but only while the
// companion task is running and no shutdown is already under way.
func (s *Sequencer) DeliverShutdown(p packetcomm.Packet) bool {
	return s.deliver(p, true)
}

func (s *Sequencer) deliver(p packetcomm.Packet, needTask bool) bool {
	s.mu.Lock()
	if s.phase == stopping {
		s.mu.Unlock()
		return false
	}
	s.pushing++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pushing--
		s.changed.Broadcast()
		s.mu.Unlock()
	}()

	if needTask && !s.reg.Registered(s.companion.Channel) {
		return false
	}
	s.companionQ.Push(p)
	return true
}

// Settling reports whether the settle window of the last power-on is still
// open at now.
func (s *Sequencer) Settling(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.settleUntil)
}

// PowerOff runs the shutdown sequence from the companion task: halt sent
// over the task's own link, drain delay, enable line low, companion queue
// discarded, task terminated. If ctx ends during the drain the line is left
// untouched and the context error is returned.
//
// Once the drain is over no packet can reach the companion queue until the
// task has been terminated.
func (s *Sequencer) PowerOff(ctx context.Context, send func(packetcomm.Packet) error) error {
	s.log.Info("halting companion, draining for %v", s.cfg.Drain)
	if err := send(packetcomm.NewHalt()); err != nil {
		s.log.Warn("failed to send halt: %v", err)
	}

	if err := s.clk.Sleep(ctx, s.cfg.Drain); err != nil {
		return fmt.Errorf("drain: %w", err)
	}

	s.mu.Lock()
	for s.phase != idle {
		s.changed.Wait()
	}
	s.phase = stopping
	for s.pushing > 0 {
		s.changed.Wait()
	}
	s.settleUntil = time.Time{}
	s.stats.PowerOffs++
	s.mu.Unlock()
	defer s.release()

	s.board.WriteDigital(s.cfg.EnablePin, false)
	if dropped := s.companionQ.Clear(); dropped > 0 {
		s.log.Debug("discarded %d queued companion packets", dropped)
	}

	handle, err := s.reg.RequestSelfTermination(s.companion.Channel)
	if err != nil {
		return fmt.Errorf("terminate companion task: %w", err)
	}
	s.log.Info("companion off, task %s terminating", handle)
	return nil
}

// EnableLevel returns the enable line level.
func (s *Sequencer) EnableLevel() bool {
	return s.board.ReadDigital(s.cfg.EnablePin)
}

// Status returns the current view.
func (s *Sequencer) Status() Status {
	now := s.clk.Now()
	st := Status{
		Enabled: s.board.ReadDigital(s.cfg.EnablePin),
		Ready:   s.board.ReadDigital(s.cfg.ReadyPin),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Stats = s.stats
	if now.Before(s.settleUntil) {
		st.Settling = true
		st.SettleRemaining = s.settleUntil.Sub(now)
	}
	return st
}
