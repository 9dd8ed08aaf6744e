// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hal is the hardware capability surface consumed by the flight core.
// Pin numbering and board wiring come from configuration.
package hal

import "errors"

// Pin is a board GPIO number.
type Pin uint8

// Board is the minimal hardware surface the core needs.
type Board interface {
	ReadDigital(pin Pin) bool
	WriteDigital(pin Pin, level bool)
	// ReadBusVoltage returns the bus voltage in volts measured by the named
	// current/voltage sensor.
	ReadBusVoltage(sensor string) (float64, error)
}

// ErrUnknownSensor is returned for a voltage sensor the board does not have.
var ErrUnknownSensor = errors.New("unknown voltage sensor")

//go:generate mockgen -destination mock_board.go -package hal -write_package_comment=false github.com/Thermoquad/flightcore/internal/hal Board
