// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPacket formats a packet into a human-readable line (plus an
// indented payload line when there is something to show).
func FormatPacket(p Packet) string {
	result := fmt.Sprintf("%s (0x%02X) %s -> %s via %s len=%d\n",
		p.Type, uint32(p.Type), p.Origin, p.Dest, p.ChannelOut, len(p.Payload))

	if len(p.Payload) > 0 {
		result += FormatPayload(p.Type, p.Payload)
	}
	return result
}

// FormatPayload decodes the payload of known types and falls back to a hex
// dump otherwise.
func FormatPayload(t CommandID, payload []byte) string {
	switch t {
	case TypePong:
		return fmt.Sprintf("  Payload: %q\n", string(payload))

	case TypeEpsSwitchName:
		if cmd, err := ParseSwitchCommand(payload); err == nil {
			state := "ON"
			if cmd.TurnOff {
				state = "OFF"
			}
			return fmt.Sprintf("  Switch: %s, State: %s, Force: %v\n", cmd.Switch, state, cmd.Force)
		}

	case TypeEpsSwitchStatus:
		if sw, err := ParseSwitchQuery(payload); err == nil {
			return fmt.Sprintf("  Switch: %s\n", sw)
		}

	case TypeEpsResponse:
		if len(payload) == 1 {
			return fmt.Sprintf("  Enabled: %v\n", payload[0] != 0)
		}

	case TypeBeacon:
		if b, err := ParseBeacon(payload); err == nil {
			return formatBeacon(b)
		}
	}

	return "  Payload: " + FormatHex(payload) + "\n"
}

func formatBeacon(b Beacon) string {
	var s strings.Builder
	fmt.Fprintf(&s, "  Source: %s, Uptime: %d ms", b.Source, b.UptimeMs)
	if b.Failed {
		s.WriteString(", READ FAILED")
	}
	s.WriteString("\n")

	keys := make([]string, 0, len(b.Readings))
	for k := range b.Readings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&s, "    %s: %.3f\n", k, b.Readings[k])
	}
	return s.String()
}

// FormatHex renders bytes as a hex dump, 16 bytes per row.
func FormatHex(data []byte) string {
	var s strings.Builder
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			s.WriteString("\n           ")
		}
		fmt.Fprintf(&s, "%02X ", b)
	}
	return strings.TrimRight(s.String(), " ")
}
