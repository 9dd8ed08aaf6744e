// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/flightcore/internal/clock"
)

func TestSimBoard_ReadyFollowsEnable(t *testing.T) {
	clk := clock.NewManual()
	b := NewSimBoard(clk)
	b.LinkReady(4, 5, 2*time.Second)

	assert.False(t, b.ReadDigital(5))

	b.WriteDigital(4, true)
	assert.False(t, b.ReadDigital(5), "ready before boot delay")

	clk.Advance(2 * time.Second)
	assert.True(t, b.ReadDigital(5))

	b.WriteDigital(4, false)
	assert.False(t, b.ReadDigital(5), "ready must drop with enable")
	assert.Equal(t, 2, b.Transitions(4))
}

func TestSimBoard_Voltage(t *testing.T) {
	b := NewSimBoard(clock.Real{})
	_, err := b.ReadBusVoltage("battery")
	assert.ErrorIs(t, err, ErrUnknownSensor)

	b.SetVoltage("battery", 7.4)
	v, err := b.ReadBusVoltage("battery")
	require.NoError(t, err)
	assert.InDelta(t, 7.4, v, 1e-9)
}

func TestSimBoard_RepeatedWriteIsNotATransition(t *testing.T) {
	b := NewSimBoard(clock.Real{})
	b.WriteDigital(9, true)
	b.WriteDigital(9, true)
	assert.Equal(t, 1, b.Transitions(9))
	assert.True(t, b.ReadDigital(9))
}
