// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import "fmt"

// SwitchCommand is the decoded payload of an EPS_SWITCH_NAME packet.
//
// Wire layout: payload[0] switch id, payload[1] requested state (0 = off),
// payload[2] force flag (1 = power on without waiting for a readiness check).
type SwitchCommand struct {
	Switch  SwitchID
	TurnOff bool
	Force   bool
}

// ParseSwitchCommand decodes an EPS_SWITCH_NAME payload. The force byte is
// optional and defaults to false.
func ParseSwitchCommand(payload []byte) (SwitchCommand, error) {
	if len(payload) < 2 {
		return SwitchCommand{}, fmt.Errorf("switch command: %d bytes (need 2): %w", len(payload), ErrShortPayload)
	}
	cmd := SwitchCommand{
		Switch:  SwitchID(payload[0]),
		TurnOff: payload[1] == 0,
	}
	if len(payload) > 2 {
		cmd.Force = payload[2] == 1
	}
	return cmd, nil
}

// Bytes encodes the command back into its positional payload form.
func (c SwitchCommand) Bytes() []byte {
	state := byte(1)
	if c.TurnOff {
		state = 0
	}
	force := byte(0)
	if c.Force {
		force = 1
	}
	return []byte{byte(c.Switch), state, force}
}

// ParseSwitchQuery decodes an EPS_SWITCH_STATUS payload: a single switch id.
func ParseSwitchQuery(payload []byte) (SwitchID, error) {
	if len(payload) < 1 {
		return SwitchNone, fmt.Errorf("switch query: empty payload: %w", ErrShortPayload)
	}
	return SwitchID(payload[0]), nil
}
