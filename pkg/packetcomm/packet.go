// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

// Packet is the envelope routed between channels. Packets are passed by
// value; replies are always built as new packets, never by mutating the
// packet that triggered them.
type Packet struct {
	Type       CommandID
	Origin     NodeID
	Dest       NodeID
	ChannelOut ChannelID
	Payload    []byte
}

// Clone returns a copy that shares no storage with p.
func (p Packet) Clone() Packet {
	c := p
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	return c
}

// Reply builds a fresh packet addressed back to p's origin, sent from the
// local node over the same output channel.
func (p Packet) Reply(t CommandID, payload []byte) Packet {
	return Packet{
		Type:       t,
		Origin:     NodeLocal,
		Dest:       p.Origin,
		ChannelOut: p.ChannelOut,
		Payload:    append([]byte(nil), payload...),
	}
}

// Equal reports whether two packets carry the same header and payload.
func (p Packet) Equal(o Packet) bool {
	if p.Type != o.Type || p.Origin != o.Origin || p.Dest != o.Dest || p.ChannelOut != o.ChannelOut {
		return false
	}
	if len(p.Payload) != len(o.Payload) {
		return false
	}
	for i := range p.Payload {
		if p.Payload[i] != o.Payload[i] {
			return false
		}
	}
	return true
}
