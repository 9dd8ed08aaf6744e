// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Beacon is the telemetry summary carried by a BEACON packet. It is encoded
// as a CBOR map with integer keys to keep it inside one frame.
type Beacon struct {
	Source   string             `cbor:"0,keyasint"`
	UptimeMs uint64             `cbor:"1,keyasint"`
	Readings map[string]float64 `cbor:"2,keyasint,omitempty"`
	Failed   bool               `cbor:"3,keyasint,omitempty"`
}

// NewBeacon creates a BEACON packet destined for the ground over the radio.
func NewBeacon(b Beacon) (Packet, error) {
	payload, err := cbor.Marshal(b)
	if err != nil {
		return Packet{}, fmt.Errorf("failed to encode beacon: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return Packet{}, fmt.Errorf("beacon %s: %d bytes (max %d): %w", b.Source, len(payload), MaxPayloadSize, ErrPayloadTooLarge)
	}
	return Packet{
		Type:       TypeBeacon,
		Origin:     NodeLocal,
		Dest:       NodeGround,
		ChannelOut: ChannelRadio,
		Payload:    payload,
	}, nil
}

// ParseBeacon decodes the payload of a BEACON packet.
func ParseBeacon(payload []byte) (Beacon, error) {
	var b Beacon
	if len(payload) == 0 {
		return b, fmt.Errorf("beacon: %w", ErrShortPayload)
	}
	if err := cbor.Unmarshal(payload, &b); err != nil {
		return b, fmt.Errorf("failed to decode beacon: %w", err)
	}
	return b, nil
}
