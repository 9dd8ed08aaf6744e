// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/flightcore/internal/clock"
)

// SimBoard is an in-memory board used by the simulator and tests.
//
// When a ready link is configured, the ready pin follows the enable pin: it
// reads high once the enable pin has been high for the boot delay.
type SimBoard struct {
	clk clock.Clock

	mu       sync.Mutex
	pins     map[Pin]bool
	voltages map[string]float64
	writes   map[Pin]int

	linked    bool
	enablePin Pin
	readyPin  Pin
	bootDelay time.Duration
	enabledAt time.Time
}

// NewSimBoard creates a board with every pin low and no sensors.
func NewSimBoard(clk clock.Clock) *SimBoard {
	return &SimBoard{
		clk:      clk,
		pins:     make(map[Pin]bool),
		voltages: make(map[string]float64),
		writes:   make(map[Pin]int),
	}
}

// LinkReady makes the ready pin follow the enable pin after bootDelay.
func (b *SimBoard) LinkReady(enable, ready Pin, bootDelay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.linked = true
	b.enablePin = enable
	b.readyPin = ready
	b.bootDelay = bootDelay
}

// SetVoltage sets the reading of a voltage sensor.
func (b *SimBoard) SetVoltage(sensor string, volts float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voltages[sensor] = volts
}

// SetPin forces an input level.
func (b *SimBoard) SetPin(pin Pin, level bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins[pin] = level
}

// ReadDigital returns the pin level.
func (b *SimBoard) ReadDigital(pin Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.linked && pin == b.readyPin {
		if !b.pins[b.enablePin] {
			return false
		}
		return b.clk.Now().Sub(b.enabledAt) >= b.bootDelay
	}
	return b.pins[pin]
}

// WriteDigital drives an output pin.
func (b *SimBoard) WriteDigital(pin Pin, level bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.linked && pin == b.enablePin && level && !b.pins[pin] {
		b.enabledAt = b.clk.Now()
	}
	if b.pins[pin] != level {
		b.writes[pin]++
	}
	b.pins[pin] = level
}

// Transitions returns how many times pin changed level through WriteDigital.
func (b *SimBoard) Transitions(pin Pin) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[pin]
}

// ReadBusVoltage returns the configured voltage for sensor.
func (b *SimBoard) ReadBusVoltage(sensor string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.voltages[sensor]
	if !ok {
		return 0, fmt.Errorf("%s: %w", sensor, ErrUnknownSensor)
	}
	return v, nil
}
