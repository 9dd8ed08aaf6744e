// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/flightcore/internal/clock"
	"github.com/Thermoquad/flightcore/internal/hal"
	"github.com/Thermoquad/flightcore/internal/power"
	"github.com/Thermoquad/flightcore/internal/queue"
	"github.com/Thermoquad/flightcore/internal/supervisor"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

type fakePower struct {
	clk         *clock.Manual
	settle      time.Duration
	settleUntil time.Time
	enabled     bool
	running     bool // companion task registered
	companionQ  *queue.Queue
	ensures     int
	powerOns    int
}

func (f *fakePower) EnsurePowered() power.Outcome {
	f.ensures++
	if f.enabled {
		return power.AlreadyPowered
	}
	f.enabled = true
	f.settleUntil = f.clk.Now().Add(f.settle)
	return power.Enabled
}

func (f *fakePower) PowerOn() power.Outcome {
	f.powerOns++
	f.enabled = true
	f.settleUntil = f.clk.Now().Add(f.settle)
	return power.Enabled
}

func (f *fakePower) Settling(now time.Time) bool { return now.Before(f.settleUntil) }
func (f *fakePower) EnableLevel() bool          { return f.enabled }

func (f *fakePower) Deliver(p packetcomm.Packet) bool {
	f.companionQ.Push(p)
	return true
}

func (f *fakePower) DeliverShutdown(p packetcomm.Packet) bool {
	if !f.running {
		return false
	}
	f.companionQ.Push(p)
	return true
}

type fakePoller struct{ polls []time.Duration }

func (p *fakePoller) Poll(elapsed time.Duration) { p.polls = append(p.polls, elapsed) }

type fixture struct {
	r       *Router
	clk     *clock.Manual
	pwr     *fakePower
	sensors *fakePoller
	inbound *queue.Queue
	out     map[packetcomm.ChannelID]*queue.Queue
}

func newFixture(hold bool) *fixture {
	clk := clock.NewManual()
	f := &fixture{
		clk:     clk,
		sensors: &fakePoller{},
		inbound: queue.New("inbound"),
		out: map[packetcomm.ChannelID]*queue.Queue{
			packetcomm.ChannelRadio:     queue.New("radio"),
			packetcomm.ChannelPowerUnit: queue.New("power_unit"),
			packetcomm.ChannelCompanion: queue.New("companion"),
		},
	}
	f.pwr = &fakePower{clk: clk, settle: 5 * time.Second, companionQ: f.out[packetcomm.ChannelCompanion]}
	f.r = New(f.inbound, f.out, f.pwr, f.sensors, clk, Options{HoldDuringSettle: hold})
	return f
}

func (f *fixture) depths() [3]int {
	return [3]int{
		f.out[packetcomm.ChannelRadio].Len(),
		f.out[packetcomm.ChannelPowerUnit].Len(),
		f.out[packetcomm.ChannelCompanion].Len(),
	}
}

func (f *fixture) only(t *testing.T, ch packetcomm.ChannelID) packetcomm.Packet {
	t.Helper()
	total := 0
	for _, q := range f.out {
		total += q.Len()
	}
	require.Equal(t, 1, total, "expected exactly one outbound packet, depths %v", f.depths())
	p, ok := f.out[ch].TryPop()
	require.True(t, ok, "packet not on %s queue", ch)
	return p
}

func TestPingProducesPong(t *testing.T) {
	for _, origin := range []packetcomm.NodeID{packetcomm.NodeGround, 5, 0xFE} {
		f := newFixture(false)
		ping := packetcomm.Packet{Type: packetcomm.TypePing, Origin: origin, Dest: packetcomm.NodeLocal, Payload: []byte{1, 2}}
		f.inbound.Push(ping)
		require.True(t, f.r.Tick())

		pong := f.only(t, packetcomm.ChannelRadio)
		assert.Equal(t, packetcomm.TypePong, pong.Type)
		assert.Equal(t, packetcomm.NodeLocal, pong.Origin)
		assert.Equal(t, origin, pong.Dest)
		assert.Equal(t, []byte("Pong"), pong.Payload)
	}
}

func TestDispatchTable(t *testing.T) {
	companionPower := byte(packetcomm.SwitchCompanionPower)

	tests := []struct {
		name      string
		packet    packetcomm.Packet
		companion bool // companion task registered
		wantOn    *packetcomm.ChannelID
		verbatim  bool
		ensures   int
		powerOns  int
	}{
		{
			name:     "ground via radio",
			packet:   packetcomm.Packet{Type: packetcomm.TypeBeacon, Origin: packetcomm.NodeLocal, Dest: packetcomm.NodeGround, ChannelOut: packetcomm.ChannelRadio, Payload: []byte{9}},
			wantOn:   ptr(packetcomm.ChannelRadio),
			verbatim: true,
		},
		{
			name:   "ground via unwired channel is dropped",
			packet: packetcomm.Packet{Type: packetcomm.TypeBeacon, Dest: packetcomm.NodeGround, ChannelOut: packetcomm.ChannelPowerUnit},
		},
		{
			name:     "companion destination powers and forwards",
			packet:   packetcomm.Packet{Type: packetcomm.TypeEpsCommunicate, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeCompanion, Payload: []byte{1}},
			wantOn:   ptr(packetcomm.ChannelCompanion),
			verbatim: true,
			ensures:  1,
		},
		{
			name:     "eps communicate",
			packet:   packetcomm.Packet{Type: packetcomm.TypeEpsCommunicate, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeLocal, Payload: []byte{0xAA, 0xBB}},
			wantOn:   ptr(packetcomm.ChannelPowerUnit),
			verbatim: true,
		},
		{
			name:      "companion off while running",
			packet:    packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{companionPower, 0}},
			companion: true,
			wantOn:    ptr(packetcomm.ChannelCompanion),
			verbatim:  true,
		},
		{
			name:   "companion off while not running",
			packet: packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{companionPower, 0}},
		},
		{
			name:     "companion forced on",
			packet:   packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{companionPower, 1, 1}},
			powerOns: 1,
		},
		{
			name:    "companion on",
			packet:  packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{companionPower, 1}},
			ensures: 1,
		},
		{
			name:   "companion switch command too short",
			packet: packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{companionPower}},
		},
		{
			name:     "other switch name",
			packet:   packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.Switch12V), 0}},
			wantOn:   ptr(packetcomm.ChannelPowerUnit),
			verbatim: true,
		},
		{
			name:     "other switch status",
			packet:   packetcomm.Packet{Type: packetcomm.TypeEpsSwitchStatus, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.SwitchAll)}},
			wantOn:   ptr(packetcomm.ChannelPowerUnit),
			verbatim: true,
		},
		{
			name:   "empty switch status",
			packet: packetcomm.Packet{Type: packetcomm.TypeEpsSwitchStatus, Dest: packetcomm.NodeLocal},
		},
		{
			name:   "unhandled type at local",
			packet: packetcomm.Packet{Type: packetcomm.TypeEpsResponse, Dest: packetcomm.NodeLocal, Payload: []byte{1}},
		},
		{
			name:   "unknown destination",
			packet: packetcomm.Packet{Type: packetcomm.TypePing, Dest: 0x42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.pwr.running = tt.companion

			f.r.Dispatch(tt.packet)

			if tt.wantOn == nil {
				assert.Equal(t, [3]int{}, f.depths(), "expected nothing routed")
			} else {
				got := f.only(t, *tt.wantOn)
				if tt.verbatim {
					assert.True(t, got.Equal(tt.packet), "packet altered in transit: %+v", got)
				}
			}
			assert.Equal(t, tt.ensures, f.pwr.ensures, "EnsurePowered calls")
			assert.Equal(t, tt.powerOns, f.pwr.powerOns, "PowerOn calls")
		})
	}
}

func ptr(ch packetcomm.ChannelID) *packetcomm.ChannelID { return &ch }

func TestSwitchStatusForCompanionReportsEnableLevel(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		f := newFixture(false)
		f.pwr.enabled = enabled
		query := packetcomm.Packet{Type: packetcomm.TypeEpsSwitchStatus, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.SwitchCompanionPower)}}

		f.r.Dispatch(query)
		reply := f.only(t, packetcomm.ChannelRadio)

		assert.Equal(t, packetcomm.TypeEpsResponse, reply.Type)
		assert.Equal(t, packetcomm.NodeGround, reply.Dest)
		assert.Equal(t, packetcomm.NodeLocal, reply.Origin)
		want := byte(0)
		if enabled {
			want = 1
		}
		assert.Equal(t, []byte{want}, reply.Payload)
		assert.Equal(t, []byte{byte(packetcomm.SwitchCompanionPower)}, query.Payload, "query must not be reused as the reply")
	}
}

func TestSendBeaconPollsSensorsAndQueriesSwitches(t *testing.T) {
	f := newFixture(false)
	f.clk.Advance(90 * time.Second)

	f.r.Dispatch(packetcomm.Packet{Type: packetcomm.TypeObcSendBeacon, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeLocal})

	require.Len(t, f.sensors.polls, 1)
	assert.Equal(t, 90*time.Second, f.sensors.polls[0])

	q := f.only(t, packetcomm.ChannelPowerUnit)
	assert.Equal(t, packetcomm.TypeEpsSwitchStatus, q.Type)
	assert.Equal(t, []byte{byte(packetcomm.SwitchAll)}, q.Payload)
}

func TestTick_OnePacketPerTick(t *testing.T) {
	f := newFixture(false)
	for i := 0; i < 3; i++ {
		f.inbound.Push(packetcomm.Packet{Type: packetcomm.TypeEpsCommunicate, Dest: packetcomm.NodeLocal, Payload: []byte{byte(i)}})
	}

	for i := 0; i < 3; i++ {
		require.True(t, f.r.Tick())
		assert.Equal(t, 2-i, f.inbound.Len())
	}
	assert.False(t, f.r.Tick(), "empty inbound is a no-op tick")

	pu := f.out[packetcomm.ChannelPowerUnit]
	for i := 0; i < 3; i++ {
		p, _ := pu.TryPop()
		assert.Equal(t, byte(i), p.Payload[0], "FIFO through the router")
	}

	c := f.r.Stats().Snapshot()
	assert.Equal(t, uint64(4), c.Ticks)
	assert.Equal(t, uint64(1), c.IdleTicks)
	assert.Equal(t, uint64(3), c.ToPowerUnit)
}

func TestTick_HoldsWhileSettling(t *testing.T) {
	f := newFixture(true)
	f.inbound.Push(packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.SwitchCompanionPower), 1, 1}})
	f.inbound.Push(packetcomm.NewPing(packetcomm.NodeGround, packetcomm.NodeLocal, packetcomm.ChannelRadio))

	require.True(t, f.r.Tick())
	assert.Equal(t, 1, f.pwr.powerOns)

	for i := 0; i < 10; i++ {
		assert.False(t, f.r.Tick(), "router must hold while settling")
		f.clk.Advance(400 * time.Millisecond)
	}
	assert.Equal(t, 1, f.inbound.Len())

	f.clk.Advance(time.Second)
	require.True(t, f.r.Tick())
	assert.Equal(t, packetcomm.TypePong, f.only(t, packetcomm.ChannelRadio).Type)
	assert.Equal(t, uint64(10), f.r.Stats().Snapshot().HeldTicks)
}

func TestTick_NoHoldKeepsDispatching(t *testing.T) {
	f := newFixture(false)
	f.inbound.Push(packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.SwitchCompanionPower), 1, 1}})
	f.inbound.Push(packetcomm.NewPing(packetcomm.NodeGround, packetcomm.NodeLocal, packetcomm.ChannelRadio))

	require.True(t, f.r.Tick())
	require.True(t, f.r.Tick(), "unrelated packets flow during settle")
	assert.Equal(t, 1, f.out[packetcomm.ChannelRadio].Len())
}

// The forced power-on path against the real sequencer: the line goes high,
// the companion task is registered and dispatch pauses for the settle time.
func TestForcedPowerOnWithSequencer(t *testing.T) {
	clk := clock.NewManual()
	board := hal.NewSimBoard(clk)
	board.SetVoltage("battery_board", 8.0)

	sup := supervisor.New(supervisor.Options{StackPool: 8192, ExitTimeout: time.Second})
	defer sup.Shutdown(context.Background())

	inbound := queue.New("inbound")
	out := map[packetcomm.ChannelID]*queue.Queue{
		packetcomm.ChannelRadio:     queue.New("radio"),
		packetcomm.ChannelPowerUnit: queue.New("power_unit"),
		packetcomm.ChannelCompanion: queue.New("companion"),
	}
	cfg := power.DefaultConfig()
	companion := supervisor.Entry{Channel: packetcomm.ChannelCompanion, Name: "companion", Run: func(ctx context.Context) { <-ctx.Done() }}
	seq := power.New(cfg, board, sup, clk, companion, out[packetcomm.ChannelCompanion], out[packetcomm.ChannelPowerUnit])
	r := New(inbound, out, seq, nil, clk, Options{HoldDuringSettle: true})

	inbound.Push(packetcomm.Packet{Type: packetcomm.TypeEpsSwitchName, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeLocal, Payload: []byte{byte(packetcomm.SwitchCompanionPower), 1, 1}})
	inbound.Push(packetcomm.NewPing(packetcomm.NodeGround, packetcomm.NodeLocal, packetcomm.ChannelRadio))

	require.True(t, r.Tick())
	assert.True(t, board.ReadDigital(cfg.EnablePin))
	assert.True(t, sup.Registered(packetcomm.ChannelCompanion))

	clk.Advance(4 * time.Second)
	assert.False(t, r.Tick())
	clk.Advance(time.Second)
	assert.True(t, r.Tick())
	assert.Equal(t, 1, out[packetcomm.ChannelRadio].Len())
}

// terminationHook runs a callback just before the companion task is
// terminated, after the shutdown has discarded the companion queue.
type terminationHook struct {
	*supervisor.Supervisor
	before func()
}

func (h *terminationHook) RequestSelfTermination(ch packetcomm.ChannelID) (supervisor.TaskHandle, error) {
	if h.before != nil {
		h.before()
	}
	return h.Supervisor.RequestSelfTermination(ch)
}

func TestCompanionTrafficDuringShutdownIsDiscarded(t *testing.T) {
	clk := clock.NewManual()
	board := hal.NewSimBoard(clk)
	board.SetVoltage("battery_board", 8.0)

	sup := supervisor.New(supervisor.Options{StackPool: 8192, ExitTimeout: time.Second})
	defer sup.Shutdown(context.Background())
	reg := &terminationHook{Supervisor: sup}

	out := map[packetcomm.ChannelID]*queue.Queue{
		packetcomm.ChannelRadio:     queue.New("radio"),
		packetcomm.ChannelPowerUnit: queue.New("power_unit"),
		packetcomm.ChannelCompanion: queue.New("companion"),
	}
	cfg := power.DefaultConfig()
	companion := supervisor.Entry{Channel: packetcomm.ChannelCompanion, Name: "companion", Run: func(ctx context.Context) { <-ctx.Done() }}
	seq := power.New(cfg, board, reg, clk, companion, out[packetcomm.ChannelCompanion], out[packetcomm.ChannelPowerUnit])
	r := New(queue.New("inbound"), out, seq, nil, clk, Options{})

	require.Equal(t, power.Enabled, seq.EnsurePowered())

	off := packetcomm.NewSwitchCommand(packetcomm.NodeGround, packetcomm.SwitchCommand{Switch: packetcomm.SwitchCompanionPower, TurnOff: true})
	data := packetcomm.Packet{Type: packetcomm.TypeEpsCommunicate, Origin: packetcomm.NodeGround, Dest: packetcomm.NodeCompanion, Payload: []byte{1}}
	reg.before = func() {
		r.Dispatch(off)
		r.Dispatch(data)
	}

	done := make(chan error, 1)
	go func() { done <- seq.PowerOff(context.Background(), func(packetcomm.Packet) error { return nil }) }()
	require.True(t, clk.BlockUntil(1, time.Second))
	clk.Advance(cfg.Drain)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PowerOff did not finish")
	}

	assert.Equal(t, 0, out[packetcomm.ChannelCompanion].Len(), "companion queue must be empty after power off")
	assert.False(t, sup.Registered(packetcomm.ChannelCompanion))
	assert.Equal(t, uint64(2), r.Stats().Snapshot().Dropped)

	// The next power-on starts with a clean queue and no stale off-request
	reg.before = nil
	clk.Advance(cfg.Settle)
	require.Equal(t, power.Enabled, seq.EnsurePowered())
	assert.Equal(t, 0, out[packetcomm.ChannelCompanion].Len())
}

func TestStatisticsString(t *testing.T) {
	f := newFixture(false)
	f.r.Dispatch(packetcomm.Packet{Type: packetcomm.TypePing, Dest: 0x42})
	s := f.r.Stats().String()
	assert.Contains(t, s, "Dropped:")
	assert.Contains(t, s, "Packet Rate:")

	f.r.Stats().Reset()
	assert.Equal(t, uint64(0), f.r.Stats().Snapshot().Dropped)
}
