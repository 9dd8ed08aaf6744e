// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import "encoding/binary"

// Decoder implements the streaming frame decoder state machine. It is fed one
// byte at a time and never needs a length field: END closes a frame, and any
// malformed frame is dropped up to and including the next END.
type Decoder struct {
	state  int
	buffer []byte
	raw    int // stuffed bytes seen since the last frame boundary
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateFrame,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset drops any partial frame and returns to the idle state
func (d *Decoder) Reset() {
	d.state = stateFrame
	d.buffer = d.buffer[:0]
	d.raw = 0
}

// Pending returns the number of stuffed bytes held since the last frame
// boundary.
func (d *Decoder) Pending() int {
	return d.raw
}

// DecodeByte processes a single byte through the decoder state machine.
// It returns ok=true with a packet when b completes a valid frame. A non-nil
// error means the current frame is discarded; the decoder resynchronizes on
// its own at the next END byte.
func (d *Decoder) DecodeByte(b byte) (p Packet, ok bool, err error) {
	if b == EndByte {
		return d.endFrame()
	}
	d.raw++

	switch d.state {
	case stateDiscard:
		return Packet{}, false, nil

	case stateEscape:
		switch b {
		case EscEndByte:
			b = EndByte
		case EscEscByte:
			b = EscByte
		default:
			d.state = stateDiscard
			return Packet{}, false, decodeErrorf(ErrBadEscape, "byte 0x%02X after ESC", b)
		}
		d.state = stateFrame

	case stateFrame:
		if b == EscByte {
			d.state = stateEscape
			return Packet{}, false, nil
		}
	}

	if len(d.buffer) >= MaxFrameSize {
		d.state = stateDiscard
		return Packet{}, false, decodeErrorf(ErrFrameTooLong, "more than %d bytes", MaxFrameSize)
	}
	d.buffer = append(d.buffer, b)
	return Packet{}, false, nil
}

func (d *Decoder) endFrame() (Packet, bool, error) {
	defer d.Reset()

	switch {
	case d.state == stateDiscard:
		// Error was already reported when the frame went bad.
		return Packet{}, false, nil
	case d.state == stateEscape:
		return Packet{}, false, decodeErrorf(ErrBadEscape, "END after ESC")
	case len(d.buffer) == 0:
		// Back-to-back END bytes delimit an empty frame; ignore it.
		return Packet{}, false, nil
	}

	p, err := parseFrame(d.buffer)
	if err != nil {
		return Packet{}, false, err
	}
	return p, true, nil
}

func parseFrame(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, decodeErrorf(ErrTruncated, "%d bytes (header is %d)", len(data), HeaderSize)
	}

	t := CommandID(binary.LittleEndian.Uint32(data[0:4]))
	if !t.Valid() {
		return Packet{}, decodeErrorf(ErrUnknownType, "type 0x%X", uint32(t))
	}

	p := Packet{
		Type:       t,
		Origin:     NodeID(data[4]),
		Dest:       NodeID(data[5]),
		ChannelOut: ChannelID(data[6]),
	}
	// Fresh storage: the decoder buffer is reused for the next frame.
	p.Payload = make([]byte, len(data)-HeaderSize)
	copy(p.Payload, data[HeaderSize:])
	return p, nil
}

// Feed decodes a chunk of bytes, returning every packet completed in it and
// every error encountered, in stream order.
func (d *Decoder) Feed(data []byte) ([]Packet, []error) {
	var packets []Packet
	var errs []error
	for _, b := range data {
		p, ok, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			packets = append(packets, p)
		}
	}
	return packets, errs
}

// Decode decodes exactly one frame. The trailing END byte is optional.
func Decode(frame []byte) (Packet, error) {
	if n := len(frame); n > 0 && frame[n-1] == EndByte {
		frame = frame[:n-1]
	}
	body, err := UnstuffBytes(frame)
	if err != nil {
		return Packet{}, &DecodeError{Reason: "unstuff", Err: err}
	}
	if len(body) > MaxFrameSize {
		return Packet{}, decodeErrorf(ErrFrameTooLong, "%d bytes", len(body))
	}
	return parseFrame(body)
}
