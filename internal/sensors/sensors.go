// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensors polls the on-board sensor suite. Sensors report by
// placing beacon packets on the shared inbound queue; the router forwards
// them to the ground.
package sensors

import (
	"time"

	"github.com/Thermoquad/flightcore/internal/logging"
)

// Sensor is one device in the suite.
type Sensor interface {
	Name() string
	Setup() error
	Read(elapsed time.Duration) error
}

// Suite is the ordered set of sensors polled together.
type Suite struct {
	sensors []Sensor
	ready   map[string]bool
	log     logging.Logger
}

// NewSuite creates a suite polling sensors in the given order.
func NewSuite(sensors ...Sensor) *Suite {
	return &Suite{
		sensors: sensors,
		ready:   make(map[string]bool, len(sensors)),
		log:     logging.New("sensors"),
	}
}

// Setup initializes every sensor. A sensor that fails setup is still
// polled; its read failures are logged like any other.
func (s *Suite) Setup() int {
	failed := 0
	for _, sn := range s.sensors {
		if err := sn.Setup(); err != nil {
			failed++
			s.log.Error("%s setup failed: %v", sn.Name(), err)
			continue
		}
		s.ready[sn.Name()] = true
		s.log.Debug("%s ready", sn.Name())
	}
	return failed
}

// Poll reads every sensor once. Failures are logged and never stop the poll.
func (s *Suite) Poll(elapsed time.Duration) {
	for _, sn := range s.sensors {
		if err := sn.Read(elapsed); err != nil {
			s.log.Warn("%s read failed: %v", sn.Name(), err)
		}
	}
}

// Ready reports whether the named sensor completed setup.
func (s *Suite) Ready(name string) bool { return s.ready[name] }

// Names lists the sensors in poll order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.sensors))
	for i, sn := range s.sensors {
		names[i] = sn.Name()
	}
	return names
}
