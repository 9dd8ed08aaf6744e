// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the flight core configuration: built-in defaults,
// an optional YAML file, a .env file and FLIGHTCORE_* environment
// overrides, in that order, followed by validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/flightcore/internal/hal"
	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/internal/power"
	"github.com/Thermoquad/flightcore/internal/transport"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// Environment variables read by Load.
const (
	EnvConfig         = "FLIGHTCORE_CONFIG"
	EnvLogLevel       = "FLIGHTCORE_LOG_LEVEL"
	EnvLogFile        = "FLIGHTCORE_LOG_FILE"
	EnvPowerThreshold = "FLIGHTCORE_POWER_THRESHOLD"
	EnvDeploymentMode = "FLIGHTCORE_DEPLOYMENT_MODE"
	EnvWSPassword     = "FLIGHTCORE_WS_PASSWORD"
)

// DefaultEnvFile is loaded when Load is given no env files.
const DefaultEnvFile = ".env"

// Config is the complete flight core configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Power     PowerConfig     `yaml:"power"`
	Pins      PinsConfig      `yaml:"pins"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Beacon    BeaconConfig    `yaml:"beacon"`
	Log       LogConfig       `yaml:"log"`
	Sim       SimConfig       `yaml:"sim"`
}

// SchedulerConfig holds task timing and budgets.
type SchedulerConfig struct {
	Quantum        time.Duration `yaml:"quantum"`
	PollInterval   time.Duration `yaml:"poll_interval"` // channel task loop
	LoopInterval   time.Duration `yaml:"loop_interval"` // router loop
	StackPool      int           `yaml:"stack_pool"`
	ExitTimeout    time.Duration `yaml:"exit_timeout"`
	MemoryInterval time.Duration `yaml:"memory_interval"` // 0 disables the report
}

// PowerConfig holds companion power sequencing settings.
type PowerConfig struct {
	ThresholdVolts         float64       `yaml:"threshold_volts"`
	Settle                 time.Duration `yaml:"settle"`
	Drain                  time.Duration `yaml:"drain"`
	VoltageSensor          string        `yaml:"voltage_sensor"`
	HoldRouterDuringSettle bool          `yaml:"hold_router_during_settle"`
}

// PinsConfig holds the companion control lines.
type PinsConfig struct {
	CompanionEnable uint8 `yaml:"companion_enable"`
	CompanionReady  uint8 `yaml:"companion_ready"`
}

// ChannelsConfig holds one link per channel.
type ChannelsConfig struct {
	Radio     ChannelConfig `yaml:"radio"`
	PowerUnit ChannelConfig `yaml:"power_unit"`
	Companion ChannelConfig `yaml:"companion"`
}

// ChannelConfig describes the transport behind one channel.
type ChannelConfig struct {
	Kind          string        `yaml:"kind"` // serial, websocket or null
	Port          string        `yaml:"port"`
	Baud          int           `yaml:"baud"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	URL           string        `yaml:"url"`
	Username      string        `yaml:"username"`
	SkipSSLVerify bool          `yaml:"skip_ssl_verify"`
	Stack         int           `yaml:"stack"`

	// Password is only ever taken from the environment.
	Password string `yaml:"-"`
}

// BeaconConfig controls the periodic deployment beacon.
type BeaconConfig struct {
	DeploymentMode bool          `yaml:"deployment_mode"`
	Interval       time.Duration `yaml:"interval"`
}

// LogConfig controls the log sinks.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// SimConfig drives the simulated board and sensors.
type SimConfig struct {
	BusVolts  float64       `yaml:"bus_volts"`
	BootDelay time.Duration `yaml:"boot_delay"`
	Sensors   []string      `yaml:"sensors"`
}

// Load builds the configuration. path may be empty, in which case
// FLIGHTCORE_CONFIG names the file, if set. Missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration: all channels on null links,
// flight timing and the simulated board at a healthy bus voltage.
func Default() *Config {
	pc := power.DefaultConfig()
	return &Config{
		Scheduler: SchedulerConfig{
			Quantum:        10 * time.Millisecond,
			PollInterval:   100 * time.Millisecond,
			LoopInterval:   100 * time.Millisecond,
			StackPool:      8192,
			ExitTimeout:    5 * time.Second,
			MemoryInterval: time.Minute,
		},
		Power: PowerConfig{
			ThresholdVolts:         pc.ThresholdVolts,
			Settle:                 pc.Settle,
			Drain:                  pc.Drain,
			VoltageSensor:          pc.VoltageSensor,
			HoldRouterDuringSettle: true,
		},
		Pins: PinsConfig{
			CompanionEnable: uint8(pc.EnablePin),
			CompanionReady:  uint8(pc.ReadyPin),
		},
		Channels: ChannelsConfig{
			Radio:     ChannelConfig{Kind: transport.KindNull, Baud: 115200, PollTimeout: 10 * time.Millisecond, Stack: 2048},
			PowerUnit: ChannelConfig{Kind: transport.KindNull, Baud: 115200, PollTimeout: 10 * time.Millisecond, Stack: 2048},
			Companion: ChannelConfig{Kind: transport.KindNull, Baud: 115200, PollTimeout: 10 * time.Millisecond, Stack: pc.CompanionStack},
		},
		Beacon: BeaconConfig{
			DeploymentMode: false,
			Interval:       30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Sim: SimConfig{
			BusVolts:  8.2,
			BootDelay: 2 * time.Second,
			Sensors:   []string{"imu", "magnetometer", "sun", "thermal"},
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv(EnvLogFile); file != "" {
		cfg.Log.File = file
	}
	if v := os.Getenv(EnvPowerThreshold); v != "" {
		volts, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvPowerThreshold, v, err)
		}
		cfg.Power.ThresholdVolts = volts
	}
	if v := os.Getenv(EnvDeploymentMode); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvDeploymentMode, v, err)
		}
		cfg.Beacon.DeploymentMode = on
	}
	if pw := os.Getenv(EnvWSPassword); pw != "" {
		for _, ch := range cfg.Channels.all() {
			if ch.Kind == transport.KindWebSocket {
				ch.Password = pw
			}
		}
	}
	return nil
}

// Validate checks ranges and cross-field consistency.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.Quantum <= 0 {
		return fmt.Errorf("scheduler.quantum must be positive, got %v", s.Quantum)
	}
	if s.PollInterval <= 0 || s.LoopInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive (poll %v, loop %v)", s.PollInterval, s.LoopInterval)
	}
	if s.ExitTimeout <= 0 {
		return fmt.Errorf("scheduler.exit_timeout must be positive, got %v", s.ExitTimeout)
	}
	if s.MemoryInterval < 0 {
		return fmt.Errorf("scheduler.memory_interval must not be negative, got %v", s.MemoryInterval)
	}

	if c.Power.ThresholdVolts <= 0 {
		return fmt.Errorf("power.threshold_volts must be positive, got %.2f", c.Power.ThresholdVolts)
	}
	if c.Power.Settle < 0 || c.Power.Drain < 0 {
		return fmt.Errorf("power delays must not be negative (settle %v, drain %v)", c.Power.Settle, c.Power.Drain)
	}
	if c.Power.VoltageSensor == "" {
		return fmt.Errorf("power.voltage_sensor is required")
	}
	if c.Pins.CompanionEnable == c.Pins.CompanionReady {
		return fmt.Errorf("pins.companion_enable and pins.companion_ready are both %d", c.Pins.CompanionEnable)
	}

	total := 0
	for _, ch := range packetcomm.Channels {
		cc := c.Channels.For(ch)
		if err := cc.validate(); err != nil {
			return fmt.Errorf("channels.%s: %w", ch, err)
		}
		total += cc.Stack
	}
	if total > s.StackPool {
		return fmt.Errorf("channel stacks need %d, scheduler.stack_pool is %d", total, s.StackPool)
	}

	if c.Beacon.DeploymentMode && c.Beacon.Interval <= 0 {
		return fmt.Errorf("beacon.interval must be positive in deployment mode")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *ChannelConfig) validate() error {
	switch c.Kind {
	case transport.KindNull:
	case transport.KindSerial:
		if c.Port == "" {
			return fmt.Errorf("serial link needs a port")
		}
		if c.Baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.Baud)
		}
	case transport.KindWebSocket:
		if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
			return fmt.Errorf("websocket url %q must start with ws:// or wss://", c.URL)
		}
	default:
		return fmt.Errorf("%q: %w", c.Kind, transport.ErrUnknownKind)
	}
	if c.Stack <= 0 {
		return fmt.Errorf("stack must be positive, got %d", c.Stack)
	}
	return nil
}

func (c *ChannelsConfig) all() []*ChannelConfig {
	return []*ChannelConfig{&c.Radio, &c.PowerUnit, &c.Companion}
}

// For returns the configuration of ch. Unknown channels get a null link.
func (c *ChannelsConfig) For(ch packetcomm.ChannelID) ChannelConfig {
	switch ch {
	case packetcomm.ChannelRadio:
		return c.Radio
	case packetcomm.ChannelPowerUnit:
		return c.PowerUnit
	case packetcomm.ChannelCompanion:
		return c.Companion
	default:
		return ChannelConfig{Kind: transport.KindNull}
	}
}

// TransportSpec converts the channel settings for transport.Open.
func (c ChannelConfig) TransportSpec() transport.Spec {
	return transport.Spec{
		Kind:          c.Kind,
		Port:          c.Port,
		Baud:          c.Baud,
		PollTimeout:   c.PollTimeout,
		URL:           c.URL,
		Username:      c.Username,
		Password:      c.Password,
		SkipSSLVerify: c.SkipSSLVerify,
	}
}

// SequencerConfig converts the power and pin settings for the sequencer.
func (c *Config) SequencerConfig() power.Config {
	return power.Config{
		ThresholdVolts: c.Power.ThresholdVolts,
		Settle:         c.Power.Settle,
		Drain:          c.Power.Drain,
		VoltageSensor:  c.Power.VoltageSensor,
		EnablePin:      hal.Pin(c.Pins.CompanionEnable),
		ReadyPin:       hal.Pin(c.Pins.CompanionReady),
		CompanionStack: c.Channels.Companion.Stack,
	}
}

// LogOptions converts the log settings for logging.Setup.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
