// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

func TestSuite_PollEmitsBeacons(t *testing.T) {
	inbound := queue.New("inbound")
	imu, ok := Builtin("imu", inbound)
	require.True(t, ok)
	sun, ok := Builtin("sun", inbound)
	require.True(t, ok)

	suite := NewSuite(imu, sun)
	assert.Equal(t, 0, suite.Setup())
	assert.Equal(t, []string{"imu", "sun"}, suite.Names())

	suite.Poll(90 * time.Second)
	require.Equal(t, 2, inbound.Len())

	p, _ := inbound.TryPop()
	assert.Equal(t, packetcomm.TypeBeacon, p.Type)
	assert.Equal(t, packetcomm.NodeGround, p.Dest)
	assert.Equal(t, packetcomm.ChannelRadio, p.ChannelOut)

	b, err := packetcomm.ParseBeacon(p.Payload)
	require.NoError(t, err)
	assert.Equal(t, "imu", b.Source)
	assert.Equal(t, uint64(90000), b.UptimeMs)
	assert.Contains(t, b.Readings, "gyro_z")
}

func TestSuite_FailuresDoNotStopPoll(t *testing.T) {
	inbound := queue.New("inbound")
	broken := NewSimSensor("broken", inbound, func(time.Duration) (map[string]float64, error) {
		return nil, errors.New("i2c nack")
	})
	absent := NewSimSensor("absent", inbound, func(time.Duration) (map[string]float64, error) {
		return map[string]float64{"x": 1}, nil
	})
	absent.SetupErr = errors.New("no device")
	thermal, _ := Builtin("thermal", inbound)

	suite := NewSuite(broken, absent, thermal)
	assert.Equal(t, 1, suite.Setup())
	assert.False(t, suite.Ready("absent"))
	assert.True(t, suite.Ready("broken"))

	suite.Poll(time.Second)
	assert.Equal(t, 1, inbound.Len(), "only the healthy sensor reports")
	assert.Equal(t, 1, thermal.Reads())

	err := absent.Read(time.Second)
	assert.ErrorIs(t, err, ErrNotSetUp)
}

func TestBuiltin_Unknown(t *testing.T) {
	_, ok := Builtin("lidar", queue.New("inbound"))
	assert.False(t, ok)
}
