// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import "fmt"

var commandNames = map[CommandID]string{
	TypeBeacon:          "BEACON",
	TypePong:            "PONG",
	TypeEpsResponse:     "EPS_RESPONSE",
	TypePing:            "PING",
	TypeObcHalt:         "OBC_HALT",
	TypeObcSendBeacon:   "OBC_SEND_BEACON",
	TypeEpsCommunicate:  "EPS_COMMUNICATE",
	TypeEpsSwitchName:   "EPS_SWITCH_NAME",
	TypeEpsSwitchStatus: "EPS_SWITCH_STATUS",
}

// Valid reports whether the type belongs to the closed command table.
func (c CommandID) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%X)", uint32(c))
}

func (n NodeID) String() string {
	switch n {
	case NodeGround:
		return "GROUND"
	case NodeLocal:
		return "LOCAL"
	case NodeCompanion:
		return "COMPANION"
	default:
		return fmt.Sprintf("NODE(%d)", uint8(n))
	}
}

// Valid reports whether the channel maps to a channel task.
func (c ChannelID) Valid() bool {
	return c <= ChannelCompanion
}

func (c ChannelID) String() string {
	switch c {
	case ChannelRadio:
		return "radio"
	case ChannelPowerUnit:
		return "power_unit"
	case ChannelCompanion:
		return "companion"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

var switchNames = []string{
	"NONE", "ALL", "3V3_1", "3V3_2", "5V_1", "5V_2", "5V_3", "5V_4", "12V",
	"VBATT", "WDT", "HBRIDGE1", "HBRIDGE2", "BURN", "BURN1", "BURN2", "COMPANION",
}

func (s SwitchID) String() string {
	if int(s) < len(switchNames) {
		return switchNames[s]
	}
	return fmt.Sprintf("SW(%d)", uint8(s))
}
