// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

// Packet builders. Every builder returns a new value with its own payload
// storage.

// PongPayload is the fixed body of a PONG reply.
var PongPayload = []byte("Pong")

// NewPing creates a PING packet addressed to dest.
func NewPing(origin, dest NodeID, out ChannelID) Packet {
	return Packet{Type: TypePing, Origin: origin, Dest: dest, ChannelOut: out}
}

// NewPong creates the reply to a PING.
func NewPong(ping Packet) Packet {
	return ping.Reply(TypePong, PongPayload)
}

// NewEpsResponse creates the reply to a companion EPS_SWITCH_STATUS query,
// carrying the enable line level as a single byte.
func NewEpsResponse(query Packet, enabled bool) Packet {
	level := byte(0)
	if enabled {
		level = 1
	}
	return query.Reply(TypeEpsResponse, []byte{level})
}

// NewSwitchStatusQuery creates an EPS_SWITCH_STATUS query for the power
// unit. The query originates from GROUND so the power unit's answer is
// routed to the radio.
func NewSwitchStatusQuery(sw SwitchID) Packet {
	return Packet{
		Type:       TypeEpsSwitchStatus,
		Origin:     NodeGround,
		Dest:       NodeLocal,
		ChannelOut: ChannelRadio,
		Payload:    []byte{byte(sw)},
	}
}

// NewSwitchCommand creates an EPS_SWITCH_NAME packet for the flight computer.
func NewSwitchCommand(origin NodeID, cmd SwitchCommand) Packet {
	return Packet{
		Type:       TypeEpsSwitchName,
		Origin:     origin,
		Dest:       NodeLocal,
		ChannelOut: ChannelRadio,
		Payload:    cmd.Bytes(),
	}
}

// NewHalt creates the OBC_HALT packet sent to the companion module before
// its power is removed.
func NewHalt() Packet {
	return Packet{
		Type:       TypeObcHalt,
		Origin:     NodeLocal,
		Dest:       NodeCompanion,
		ChannelOut: ChannelCompanion,
	}
}
