// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package flight assembles the flight core: queues, task supervisor, power
// sequencer, router and sensor suite, owned by one Core value.
package flight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/flightcore/internal/channel"
	"github.com/Thermoquad/flightcore/internal/clock"
	"github.com/Thermoquad/flightcore/internal/config"
	"github.com/Thermoquad/flightcore/internal/hal"
	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/internal/power"
	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/internal/router"
	"github.com/Thermoquad/flightcore/internal/sensors"
	"github.com/Thermoquad/flightcore/internal/supervisor"
	"github.com/Thermoquad/flightcore/internal/transport"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// DialFunc opens the link behind a channel.
type DialFunc func(ch packetcomm.ChannelID) (transport.Transport, error)

// Deps are the collaborators Core does not build itself. Zero values get
// the simulated board, the real clock, transports from the configuration,
// the configured simulated sensors and the host memory probe.
type Deps struct {
	Board   hal.Board
	Clock   clock.Clock
	Dial    DialFunc
	Sensors []sensors.Sensor
	Memory  MemoryProbe
}

// Core is the flight software context.
type Core struct {
	cfg   *config.Config
	clk   clock.Clock
	board hal.Board
	mem   MemoryProbe
	log   logging.Logger

	inbound *queue.Queue
	queues  map[packetcomm.ChannelID]*queue.Queue
	tasks   map[packetcomm.ChannelID]*channel.Task

	sup    *supervisor.Supervisor
	seq    *power.Sequencer
	router *router.Router
	suite  *sensors.Suite

	started    time.Time
	lastBeacon time.Time
	lastMemory time.Time

	mu        sync.Mutex
	memReport MemoryReport
}

// New builds a core from cfg. Nothing runs until Setup and Run.
func New(cfg *config.Config, deps Deps) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Core{
		cfg:     cfg,
		clk:     deps.Clock,
		board:   deps.Board,
		mem:     deps.Memory,
		log:     logging.New("main"),
		inbound: queue.New("inbound"),
		queues:  make(map[packetcomm.ChannelID]*queue.Queue, len(packetcomm.Channels)),
		tasks:   make(map[packetcomm.ChannelID]*channel.Task, len(packetcomm.Channels)),
	}
	if c.clk == nil {
		c.clk = clock.Real{}
	}
	if c.board == nil {
		c.board = newSimBoard(cfg, c.clk)
	}
	if c.mem == nil {
		c.mem = HostMemory
	}
	dial := deps.Dial
	if dial == nil {
		dial = func(ch packetcomm.ChannelID) (transport.Transport, error) {
			return transport.Open(cfg.Channels.For(ch).TransportSpec())
		}
	}

	c.sup = supervisor.New(supervisor.Options{
		StackPool:   cfg.Scheduler.StackPool,
		ExitTimeout: cfg.Scheduler.ExitTimeout,
	})

	for _, ch := range packetcomm.Channels {
		ch := ch // per-iteration copy: Dial closure captures ch (go 1.21 loop semantics)
		c.queues[ch] = queue.New(ch.String())
		c.tasks[ch] = channel.New(channel.Config{
			Channel:  ch,
			Interval: cfg.Scheduler.PollInterval,
			Dial:     func() (transport.Transport, error) { return dial(ch) },
		}, c.inbound, c.queues[ch], c.clk, c.sup.Quantum)
	}

	companion := c.tasks[packetcomm.ChannelCompanion]
	c.seq = power.New(cfg.SequencerConfig(), c.board, c.sup, c.clk,
		companion.Entry(), c.queues[packetcomm.ChannelCompanion], c.queues[packetcomm.ChannelPowerUnit])
	companion.WithHandler(channel.NewCompanionHandler(c.seq)).WithGate(c.seq)

	sensorList := deps.Sensors
	if sensorList == nil {
		for _, name := range cfg.Sim.Sensors {
			s, ok := sensors.Builtin(name, c.inbound)
			if !ok {
				return nil, fmt.Errorf("unknown simulated sensor %q", name)
			}
			sensorList = append(sensorList, s)
		}
	}
	c.suite = sensors.NewSuite(sensorList...)

	c.router = router.New(c.inbound, c.queues, c.seq, c.suite, c.clk,
		router.Options{HoldDuringSettle: cfg.Power.HoldRouterDuringSettle})

	return c, nil
}

func newSimBoard(cfg *config.Config, clk clock.Clock) *hal.SimBoard {
	b := hal.NewSimBoard(clk)
	b.SetVoltage(cfg.Power.VoltageSensor, cfg.Sim.BusVolts)
	b.LinkReady(hal.Pin(cfg.Pins.CompanionEnable), hal.Pin(cfg.Pins.CompanionReady), cfg.Sim.BootDelay)
	return b
}

// Setup initializes the sensors, sets the scheduler quantum and starts the
// radio and power unit tasks. A task that fails to start leaves its channel
// disabled; Setup carries on without it.
func (c *Core) Setup(ctx context.Context) error {
	if failed := c.suite.Setup(); failed > 0 {
		c.log.Warn("%d sensor(s) failed setup", failed)
	}

	if err := c.sup.SetQuantum(c.cfg.Scheduler.Quantum); err != nil {
		return fmt.Errorf("failed to set quantum: %w", err)
	}

	for _, ch := range []packetcomm.ChannelID{packetcomm.ChannelRadio, packetcomm.ChannelPowerUnit} {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.sup.Start(c.tasks[ch].Entry(), c.cfg.Channels.For(ch).Stack); err != nil {
			c.log.Error("failed to start %s task: %v", ch, err)
		}
	}

	now := c.clk.Now()
	c.started = now
	c.lastBeacon = now
	c.lastMemory = now
	c.log.Info("flight core setup complete")
	return nil
}

// Run is the main loop. Each pass beacons if deployed, routes one packet and
// yields for the loop interval. It returns once ctx is cancelled and every
// task has exited.
func (c *Core) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			break
		}
		c.Step()
		if err := c.clk.Sleep(ctx, c.cfg.Scheduler.LoopInterval); err != nil {
			break
		}
	}
	return c.Shutdown()
}

// Step runs one main loop pass without yielding.
func (c *Core) Step() {
	now := c.clk.Now()
	c.reportMemory(now)
	c.beaconIfDeployed(now)
	c.router.Tick()
}

func (c *Core) beaconIfDeployed(now time.Time) {
	if !c.cfg.Beacon.DeploymentMode || now.Sub(c.lastBeacon) < c.cfg.Beacon.Interval {
		return
	}
	c.log.Debug("deployment beacons sending")
	c.suite.Poll(now.Sub(c.started))
	c.queues[packetcomm.ChannelPowerUnit].Push(packetcomm.NewSwitchStatusQuery(packetcomm.SwitchAll))
	c.lastBeacon = now
}

// Shutdown stops every task, bounded by the configured exit timeout.
func (c *Core) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Scheduler.ExitTimeout)
	defer cancel()
	if err := c.sup.Shutdown(ctx); err != nil {
		c.log.Error("shutdown: %v", err)
		return err
	}
	c.log.Info("flight core stopped")
	return nil
}

// Inject queues p as if it had arrived on a channel.
func (c *Core) Inject(p packetcomm.Packet) {
	c.inbound.Push(p.Clone())
}

// Inbound returns the shared inbound queue.
func (c *Core) Inbound() *queue.Queue { return c.inbound }

// Queue returns the outbound queue of ch.
func (c *Core) Queue(ch packetcomm.ChannelID) *queue.Queue { return c.queues[ch] }

// Supervisor returns the task supervisor.
func (c *Core) Supervisor() *supervisor.Supervisor { return c.sup }

// Sequencer returns the power sequencer.
func (c *Core) Sequencer() *power.Sequencer { return c.seq }

// Router returns the packet router.
func (c *Core) Router() *router.Router { return c.router }
