// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const serialReadSize = 256

// Serial wraps a UART.
type Serial struct {
	port serial.Port
	name string
	baud int
	buf  []byte
}

// OpenSerial opens a serial port at 8N1. A positive pollTimeout bounds every
// read, which is what makes Receive non-blocking; zero leaves reads blocking.
func OpenSerial(portName string, baudRate int, pollTimeout time.Duration) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if pollTimeout > 0 {
		if err := port.SetReadTimeout(pollTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
		}
	}

	return &Serial{port: port, name: portName, baud: baudRate, buf: make([]byte, serialReadSize)}, nil
}

func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// Send writes the whole frame.
func (s *Serial) Send(frame []byte) error {
	for len(frame) > 0 {
		n, err := s.port.Write(frame)
		if err != nil {
			return fmt.Errorf("serial write %s: %w", s.name, err)
		}
		frame = frame[n:]
	}
	return nil
}

// Receive performs one bounded read.
func (s *Serial) Receive() ([]byte, error) {
	n, err := s.port.Read(s.buf)
	if err != nil {
		return nil, fmt.Errorf("serial read %s: %w", s.name, err)
	}
	if n == 0 {
		return nil, nil
	}
	return append([]byte(nil), s.buf[:n]...), nil
}

// Describe implements Transport.
func (s *Serial) Describe() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.baud)
}
