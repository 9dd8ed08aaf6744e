// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package packetcomm implements the packet envelope exchanged between the
// flight computer, the ground segment, the power distribution unit and the
// companion compute module.
//
// A frame is a fixed 7-byte header (type, origin, destination, output
// channel) followed by the payload. The whole frame is byte-stuffed and
// terminated by a single END byte, so a receiver can always resynchronize by
// scanning forward to the next END.
package packetcomm

// Framing bytes
const (
	EndByte    = 0xC0
	EscByte    = 0xDB
	EscEndByte = 0xDC // ESC ESC_END decodes to END
	EscEscByte = 0xDD // ESC ESC_ESC decodes to ESC
)

// Frame size limits (unstuffed)
const (
	HeaderSize     = 7 // type(4) + origin(1) + dest(1) + channel_out(1)
	MaxFrameSize   = 256
	MaxPayloadSize = MaxFrameSize - HeaderSize
)

// NodeID addresses a participant in the packet network. Values outside the
// named set are carried through untouched as packet origins.
type NodeID uint8

// Known nodes
const (
	NodeGround    NodeID = 0x01
	NodeLocal     NodeID = 0x02
	NodeCompanion NodeID = 0x03
)

// ChannelID names a communication endpoint owned by one channel task.
type ChannelID uint8

// Channels
const (
	ChannelRadio     ChannelID = 0x00
	ChannelPowerUnit ChannelID = 0x01
	ChannelCompanion ChannelID = 0x02
)

// Channels lists every channel in start order.
var Channels = []ChannelID{ChannelRadio, ChannelPowerUnit, ChannelCompanion}

// SwitchID identifies a power distribution line on the power unit.
type SwitchID uint8

// Power distribution lines
const (
	SwitchNone SwitchID = iota
	SwitchAll
	Switch3V3A
	Switch3V3B
	Switch5VA
	Switch5VB
	Switch5VC
	Switch5VD
	Switch12V
	SwitchVBatt
	SwitchWatchdog
	SwitchHBridgeA
	SwitchHBridgeB
	SwitchBurn
	SwitchBurnA
	SwitchBurnB
	SwitchCompanionPower
)

// CommandID is the packet type. The set is closed; anything else is
// unroutable and rejected by the decoder.
type CommandID uint32

// Data packets 0x10-0x3F
const (
	TypeBeacon      CommandID = 0x10
	TypePong        CommandID = 0x29
	TypeEpsResponse CommandID = 0x30
)

// Commands 0x80-0x9F
const (
	TypePing            CommandID = 0x81
	TypeObcHalt         CommandID = 0x82
	TypeObcSendBeacon   CommandID = 0x83
	TypeEpsCommunicate  CommandID = 0x90
	TypeEpsSwitchName   CommandID = 0x91
	TypeEpsSwitchStatus CommandID = 0x92
)

// Decoder states (internal)
const (
	stateFrame = iota
	stateEscape
	stateDiscard
)
