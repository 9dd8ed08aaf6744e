// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package packetcomm

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated       = errors.New("truncated frame")
	ErrBadEscape       = errors.New("invalid escape sequence")
	ErrUnknownType     = errors.New("unknown packet type")
	ErrFrameTooLong    = errors.New("frame exceeds maximum size")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrShortPayload    = errors.New("payload too short")
)

// DecodeError reports a frame that had to be discarded. The decoder has
// already skipped (or will skip) everything up to the next END byte.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErrorf(err error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Err: err}
}
