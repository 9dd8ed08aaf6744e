// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/flightcore/internal/config"
	"github.com/Thermoquad/flightcore/internal/flight"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// snapshotSource is the part of the flight core the monitor reads.
type snapshotSource interface {
	Snapshot() flight.Snapshot
	Inject(p packetcomm.Packet)
}

// Command log entry
type commandLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type monitorModel struct {
	core          snapshotSource
	cfg           *config.Config
	snap          flight.Snapshot
	tasks         table.Model
	input         textinput.Model
	commandLog    []commandLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

type monitorTickMsg time.Time

func initialMonitorModel(core snapshotSource, cfg *config.Config) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "ping | on | force | off | status | beacon"
	ti.CharLimit = 32
	ti.Width = 40
	ti.Focus()

	tasks := table.New(
		table.WithColumns([]table.Column{
			{Title: "Channel", Width: 12},
			{Title: "Handle", Width: 22},
			{Title: "Stack", Width: 6},
			{Title: "Queue", Width: 6},
			{Title: "In", Width: 8},
			{Title: "Out", Width: 8},
			{Title: "Errors", Width: 7},
			{Title: "Link", Width: 28},
		}),
		table.WithHeight(len(packetcomm.Channels)+1),
	)

	return monitorModel{
		core:          core,
		cfg:           cfg,
		snap:          core.Snapshot(),
		tasks:         tasks,
		input:         ti,
		commandLog:    make([]commandLogEntry, 0),
		maxLogEntries: 8,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		textinput.Blink,
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

//////////////////////////////////////////////////////////////
// Update
//////////////////////////////////////////////////////////////

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			cmd := m.runCommand(m.input.Value())
			m.input.SetValue("")
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.snap = m.core.Snapshot()
		m.tasks.SetRows(taskRows(m.snap))
		return m, monitorTickCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) runCommand(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case "q", "quit":
		m.quitting = true
		return tea.Quit
	}
	p, err := parseMonitorCommand(line)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return nil
	}
	m.core.Inject(p)
	m.addLogEntry(fmt.Sprintf("injected %s %s -> %s", p.Type, p.Origin, p.Dest), false)
	return nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.commandLog = append(m.commandLog, commandLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.commandLog) > m.maxLogEntries {
		m.commandLog = m.commandLog[len(m.commandLog)-m.maxLogEntries:]
	}
}

// parseMonitorCommand turns an operator command into the packet the ground
// segment would send for it.
func parseMonitorCommand(line string) (packetcomm.Packet, error) {
	companion := packetcomm.SwitchCompanionPower
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "ping":
		return packetcomm.NewPing(packetcomm.NodeGround, packetcomm.NodeLocal, packetcomm.ChannelRadio), nil
	case "on":
		return packetcomm.NewSwitchCommand(packetcomm.NodeGround, packetcomm.SwitchCommand{Switch: companion}), nil
	case "force":
		return packetcomm.NewSwitchCommand(packetcomm.NodeGround, packetcomm.SwitchCommand{Switch: companion, Force: true}), nil
	case "off":
		return packetcomm.NewSwitchCommand(packetcomm.NodeGround, packetcomm.SwitchCommand{Switch: companion, TurnOff: true}), nil
	case "status":
		return packetcomm.NewSwitchStatusQuery(companion), nil
	case "beacon":
		return packetcomm.Packet{
			Type:       packetcomm.TypeObcSendBeacon,
			Origin:     packetcomm.NodeGround,
			Dest:       packetcomm.NodeLocal,
			ChannelOut: packetcomm.ChannelRadio,
		}, nil
	default:
		return packetcomm.Packet{}, fmt.Errorf("unknown command %q", line)
	}
}

func taskRows(s flight.Snapshot) []table.Row {
	handles := make(map[packetcomm.ChannelID]string, len(s.Tasks))
	stacks := make(map[packetcomm.ChannelID]int, len(s.Tasks))
	for _, t := range s.Tasks {
		handles[t.Channel] = string(t.Handle)
		stacks[t.Channel] = t.Stack
	}
	disabled := make(map[packetcomm.ChannelID]bool, len(s.Disabled))
	for _, ch := range s.Disabled {
		disabled[ch] = true
	}

	rows := make([]table.Row, 0, len(packetcomm.Channels))
	for _, ch := range packetcomm.Channels {
		handle, ok := handles[ch]
		switch {
		case disabled[ch]:
			handle = "DISABLED"
		case !ok:
			handle = "-"
		}
		link := s.Links[ch]
		rows = append(rows, table.Row{
			ch.String(),
			handle,
			fmt.Sprintf("%d", stacks[ch]),
			fmt.Sprintf("%d", s.Queues[ch]),
			fmt.Sprintf("%d", link.FramesIn),
			fmt.Sprintf("%d", link.FramesOut),
			fmt.Sprintf("%d", link.DecodeErrors+link.IOErrors),
			link.Link,
		})
	}
	return rows
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	s := m.snap
	var b strings.Builder

	b.WriteString(titleStyle.Render("FLIGHTCORE - MONITOR"))
	b.WriteString("\n")
	mode := "Nominal"
	if s.DeploymentMode {
		mode = "Deployment"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("Uptime: %s | Mode: %s | Press Esc to quit",
		formatUptime(uint64(s.Uptime.Milliseconds())), mode)))
	b.WriteString("\n\n")

	// Power
	var power strings.Builder
	onOff := func(v bool) string {
		if v {
			return valueStyle.Render("HIGH")
		}
		return headerStyle.Render("LOW")
	}
	power.WriteString(fmt.Sprintf("%s %s   %s %s   ",
		labelStyle.Render("Enable:"), onOff(s.Power.Enabled),
		labelStyle.Render("Ready:"), onOff(s.Power.Ready)))
	if s.BusErr != nil {
		power.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Bus:"), errorStyle.Render(s.BusErr.Error())))
	} else {
		volts := fmt.Sprintf("%.2f V", s.BusVolts)
		if s.BusVolts < m.cfg.Power.ThresholdVolts {
			volts = warningStyle.Render(volts + " (below threshold)")
		} else {
			volts = valueStyle.Render(volts)
		}
		power.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Bus:"), volts))
	}
	if s.Power.Settling {
		power.WriteString("\n" + warningStyle.Render(fmt.Sprintf("Settling, %v remaining", s.Power.SettleRemaining.Round(100*time.Millisecond))))
	}
	power.WriteString(fmt.Sprintf("\n%s %d   %s %d   %s %d   %s %d",
		labelStyle.Render("Enables:"), s.Power.Stats.Enables,
		labelStyle.Render("Insufficient:"), s.Power.Stats.Insufficient,
		labelStyle.Render("Start failures:"), s.Power.Stats.StartFailures,
		labelStyle.Render("Power offs:"), s.Power.Stats.PowerOffs))
	b.WriteString(boxStyle.Render(power.String()))
	b.WriteString("\n")

	// Tasks
	b.WriteString(labelStyle.Render(fmt.Sprintf("Tasks (stack %d of %d)", s.Stack, m.cfg.Scheduler.StackPool)))
	b.WriteString("\n")
	b.WriteString(m.tasks.View())
	b.WriteString("\n\n")

	// Router
	r := s.Router
	var router strings.Builder
	router.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d   %s %d\n",
		labelStyle.Render("Inbound:"), s.Inbound,
		labelStyle.Render("Dispatched:"), r.Dispatched,
		labelStyle.Render("Held:"), r.HeldTicks,
		labelStyle.Render("Dropped:"), r.Dropped))
	router.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d   %s %d",
		labelStyle.Render("Radio:"), r.ToRadio,
		labelStyle.Render("Power unit:"), r.ToPowerUnit,
		labelStyle.Render("Companion:"), r.ToCompanion,
		labelStyle.Render("Pongs:"), r.Pongs))
	if s.Memory.Total > 0 {
		router.WriteString(fmt.Sprintf("\n%s %d of %d MiB",
			labelStyle.Render("Free memory:"), s.Memory.Available>>20, s.Memory.Total>>20))
	}
	b.WriteString(boxStyle.Render(router.String()))
	b.WriteString("\n\n")

	// Commands
	b.WriteString(labelStyle.Render("Command: "))
	b.WriteString(m.input.View())
	b.WriteString("\n")
	for _, e := range m.commandLog {
		line := fmt.Sprintf("%s %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isError {
			b.WriteString(errorStyle.Render(line))
		} else {
			b.WriteString(headerStyle.Render(line))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	plural := func(n uint64, unit string) {
		if n == 1 {
			parts = append(parts, "1 "+unit)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	if days > 0 {
		plural(days, "day")
	}
	if hours > 0 {
		plural(hours, "hour")
	}
	if minutes > 0 {
		plural(minutes, "minute")
	}
	if seconds > 0 || len(parts) == 0 {
		plural(seconds, "second")
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
