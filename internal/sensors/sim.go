// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// ErrNotSetUp is returned by reads on a sensor whose setup did not succeed.
var ErrNotSetUp = errors.New("sensor not set up")

// ReadFunc produces the readings of a simulated sensor at elapsed.
type ReadFunc func(elapsed time.Duration) (map[string]float64, error)

// SimSensor is a simulated device that turns every successful read into a
// beacon on the inbound queue.
type SimSensor struct {
	name    string
	read    ReadFunc
	inbound *queue.Queue

	// SetupErr, when non-nil, is returned by Setup.
	SetupErr error
	setUp    bool
	reads    int
}

// NewSimSensor creates a simulated sensor.
func NewSimSensor(name string, inbound *queue.Queue, read ReadFunc) *SimSensor {
	return &SimSensor{name: name, read: read, inbound: inbound}
}

func (s *SimSensor) Name() string { return s.name }

func (s *SimSensor) Setup() error {
	if s.SetupErr != nil {
		return s.SetupErr
	}
	s.setUp = true
	return nil
}

func (s *SimSensor) Read(elapsed time.Duration) error {
	if !s.setUp {
		return fmt.Errorf("%s: %w", s.name, ErrNotSetUp)
	}
	readings, err := s.read(elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	p, err := packetcomm.NewBeacon(packetcomm.Beacon{
		Source:   s.name,
		UptimeMs: uint64(elapsed.Milliseconds()),
		Readings: readings,
	})
	if err != nil {
		return err
	}
	s.inbound.Push(p)
	s.reads++
	return nil
}

// Reads returns the number of beacons emitted.
func (s *SimSensor) Reads() int { return s.reads }

// Builtin returns the named simulated sensor, or false if there is none.
// The readings are smooth functions of elapsed time so consecutive beacons
// differ.
func Builtin(name string, inbound *queue.Queue) (*SimSensor, bool) {
	var fn ReadFunc
	switch name {
	case "imu":
		fn = func(elapsed time.Duration) (map[string]float64, error) {
			t := elapsed.Seconds()
			return map[string]float64{
				"gyro_x": 0.02 * math.Sin(t/30),
				"gyro_y": 0.02 * math.Cos(t/30),
				"gyro_z": 0.01,
			}, nil
		}
	case "magnetometer":
		fn = func(elapsed time.Duration) (map[string]float64, error) {
			t := elapsed.Seconds() * 2 * math.Pi / 5400
			return map[string]float64{
				"mag_x": 22.5 * math.Cos(t),
				"mag_y": 22.5 * math.Sin(t),
				"mag_z": -41.0,
			}, nil
		}
	case "sun":
		fn = func(elapsed time.Duration) (map[string]float64, error) {
			t := elapsed.Seconds() * 2 * math.Pi / 5400
			return map[string]float64{"lux": math.Max(0, 1200*math.Sin(t))}, nil
		}
	case "thermal":
		fn = func(elapsed time.Duration) (map[string]float64, error) {
			t := elapsed.Seconds() * 2 * math.Pi / 5400
			return map[string]float64{
				"obc_c":     21 + 4*math.Sin(t),
				"battery_c": 14 + 6*math.Sin(t),
			}, nil
		}
	default:
		return nil, false
	}
	return NewSimSensor(name, inbound, fn), true
}
