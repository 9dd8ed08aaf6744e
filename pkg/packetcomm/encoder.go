package packetcomm

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a packet to its wire format: header, payload, byte
// stuffing and the END terminator.
func Encode(p Packet) ([]byte, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("encode %s: %w", p.Type, ErrUnknownType)
	}
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encode %s: %d bytes (max %d): %w", p.Type, len(p.Payload), MaxPayloadSize, ErrPayloadTooLarge)
	}

	data := make([]byte, HeaderSize+len(p.Payload))
	binary.LittleEndian.PutUint32(data[0:4], uint32(p.Type))
	data[4] = byte(p.Origin)
	data[5] = byte(p.Dest)
	data[6] = byte(p.ChannelOut)
	copy(data[HeaderSize:], p.Payload)

	frame := stuffBytes(data)
	return append(frame, EndByte), nil
}

// MustEncode encodes a packet, panicking on error. Intended for packets
// built from known-good values.
func MustEncode(p Packet) []byte {
	data, err := Encode(p)
	if err != nil {
		panic(fmt.Sprintf("packetcomm: %v", err))
	}
	return data
}

// stuffBytes escapes END and ESC so the only bare END on the wire is the
// frame terminator.
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)+len(data)/8+2)

	for _, b := range data {
		switch b {
		case EndByte:
			result = append(result, EscByte, EscEndByte)
		case EscByte:
			result = append(result, EscByte, EscEscByte)
		default:
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from the body of a single frame (END
// terminator excluded).
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			switch b {
			case EscEndByte:
				result = append(result, EndByte)
			case EscEscByte:
				result = append(result, EscByte)
			default:
				return nil, fmt.Errorf("byte 0x%02X after ESC: %w", b, ErrBadEscape)
			}
			escapeNext = false
			continue
		}
		switch b {
		case EscByte:
			escapeNext = true
		case EndByte:
			return nil, fmt.Errorf("bare END inside frame: %w", ErrBadEscape)
		default:
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data: %w", ErrBadEscape)
	}

	return result, nil
}
