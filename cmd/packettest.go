// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid packet",
	Long: `Wait for a valid flight packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
packet. Bytes that do not form a valid frame are skipped; the decoder
resynchronizes at the next frame delimiter.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking a radio or power unit link before starting the core.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Flightcore - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	decoder := packetcomm.NewDecoder()
	buf := make([]byte, 128)

	// Channel for packet reception
	packetChan := make(chan packetcomm.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		badFrames := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				packet, ok, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					// Ignore decode errors, just count dropped frames
					badFrames++
					continue
				}
				if ok {
					if badFrames > 0 {
						fmt.Printf("(dropped %d invalid frames before sync)\n", badFrames)
					}
					packetChan <- packet
					return
				}
			}
		}
	}()

	// Wait for packet or timeout
	select {
	case packet := <-packetChan:
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Type: %s (0x%02X)\n", packet.Type, uint32(packet.Type))
		fmt.Printf("  Route: %s -> %s via %s\n", packet.Origin, packet.Dest, packet.ChannelOut)
		fmt.Printf("  Length: %d bytes\n", len(packet.Payload))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
