// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/flightcore/internal/transport"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

var rawLogShowHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display flight packets as they arrive.

Each frame is shown with a timestamp, packet type, addressing and decoded
payload. Frames that fail to decode are reported and the decoder resumes at
the next frame boundary.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogShowHex, "hex", false, "Also print the raw bytes of every frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Flightcore - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := packetcomm.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A read error on a WebSocket link means the connection is
			// permanently closed - exit gracefully
			if errors.Is(err, transport.ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			packet, ok, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if !ok {
				continue
			}
			fmt.Print(packetcomm.FormatPacket(packet))
			if rawLogShowHex {
				fmt.Printf("  Raw: %s\n", packetcomm.FormatHex(packetcomm.MustEncode(packet)))
			}
		}
	}
}
