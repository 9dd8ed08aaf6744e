// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/flightcore/internal/hal"
	"github.com/Thermoquad/flightcore/internal/transport"
)

// noEnv points Load at an env file that does not exist so a developer's
// .env cannot leak into the tests.
func noEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("", noEnv(t))
	require.NoError(t, err)

	assert.Equal(t, 7.0, cfg.Power.ThresholdVolts)
	assert.Equal(t, 5*time.Second, cfg.Power.Settle)
	assert.Equal(t, 20*time.Second, cfg.Power.Drain)
	assert.True(t, cfg.Power.HoldRouterDuringSettle)
	assert.Equal(t, 10*time.Millisecond, cfg.Scheduler.Quantum)
	assert.Equal(t, transport.KindNull, cfg.Channels.Radio.Kind)

	pc := cfg.SequencerConfig()
	assert.Equal(t, hal.Pin(2), pc.EnablePin)
	assert.Equal(t, hal.Pin(25), pc.ReadyPin)
	assert.Equal(t, cfg.Channels.Companion.Stack, pc.CompanionStack)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "flight.yaml", `
scheduler:
  quantum: 20ms
  loop_interval: 50ms
power:
  threshold_volts: 7.4
  settle: 3s
  hold_router_during_settle: false
channels:
  radio:
    kind: websocket
    url: ws://ground.local/link
    username: admin
  power_unit:
    kind: serial
    port: /dev/ttyS1
    baud: 57600
beacon:
  deployment_mode: true
  interval: 10s
`)
	cfg, err := Load(path, noEnv(t))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Scheduler.Quantum)
	assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.LoopInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.PollInterval, "unset keys keep defaults")
	assert.Equal(t, 7.4, cfg.Power.ThresholdVolts)
	assert.Equal(t, 3*time.Second, cfg.Power.Settle)
	assert.False(t, cfg.Power.HoldRouterDuringSettle)
	assert.True(t, cfg.Beacon.DeploymentMode)

	spec := cfg.Channels.PowerUnit.TransportSpec()
	assert.Equal(t, transport.KindSerial, spec.Kind)
	assert.Equal(t, "/dev/ttyS1", spec.Port)
	assert.Equal(t, 57600, spec.Baud)
}

func TestLoad_ConfigFromEnvironment(t *testing.T) {
	path := writeFile(t, "flight.yaml", "power:\n  drain: 1s\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load("", noEnv(t))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Power.Drain)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "flight.yaml", `
channels:
  radio:
    kind: websocket
    url: wss://ground.local/link
`)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFile, "/tmp/flight.log")
	t.Setenv(EnvPowerThreshold, "6.5")
	t.Setenv(EnvDeploymentMode, "true")
	t.Setenv(EnvWSPassword, "hunter2")

	cfg, err := Load(path, noEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/flight.log", cfg.LogOptions().File)
	assert.Equal(t, 6.5, cfg.Power.ThresholdVolts)
	assert.True(t, cfg.Beacon.DeploymentMode)
	assert.Equal(t, "hunter2", cfg.Channels.Radio.TransportSpec().Password)
	assert.Empty(t, cfg.Channels.PowerUnit.Password, "password only applies to websocket links")
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "FLIGHTCORE_POWER_THRESHOLD=7.2\n")
	os.Unsetenv(EnvPowerThreshold)
	t.Cleanup(func() { os.Unsetenv(EnvPowerThreshold) })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7.2, cfg.Power.ThresholdVolts)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown key", yaml: "power:\n  treshold_volts: 7\n"},
		{name: "zero quantum", yaml: "scheduler:\n  quantum: 0s\n"},
		{name: "negative threshold", yaml: "power:\n  threshold_volts: -1\n"},
		{name: "same pins", yaml: "pins:\n  companion_enable: 4\n  companion_ready: 4\n"},
		{name: "serial without port", yaml: "channels:\n  radio:\n    kind: serial\n"},
		{name: "websocket bad url", yaml: "channels:\n  radio:\n    kind: websocket\n    url: http://x\n"},
		{name: "unknown kind", yaml: "channels:\n  radio:\n    kind: can\n"},
		{name: "stack pool exceeded", yaml: "scheduler:\n  stack_pool: 1024\n"},
		{name: "bad log level", yaml: "log:\n  level: loud\n"},
		{name: "bad threshold env", env: map[string]string{EnvPowerThreshold: "lots"}},
		{name: "bad deployment env", env: map[string]string{EnvDeploymentMode: "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "flight.yaml", tt.yaml)
			}
			_, err := Load(path, noEnv(t))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnv(t))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
