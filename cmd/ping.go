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
	pingTimeout int
	pingCount   int
	pingOrigin  uint8
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test a link by sending PING to the flight computer",
	Long: `Send PING packets to the flight computer and wait for PONG.

The flight computer answers every PING addressed to it with a PONG routed
back over the radio channel, so this checks the full receive, route and
transmit path on that link.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().Uint8Var(&pingOrigin, "origin", uint8(packetcomm.NodeGround), "Node id to send from")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Flightcore - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	origin := packetcomm.NodeID(pingOrigin)
	responses := make(chan packetcomm.Packet, 8)
	errChan := make(chan error, 1)

	// One reader for the whole run; non-PONG traffic (beacons etc.) is ignored
	go func() {
		decoder := packetcomm.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			packets, _ := decoder.Feed(buf[:n])
			for _, p := range packets {
				if p.Type == packetcomm.TypePong && p.Dest == origin {
					responses <- p
				}
			}
		}
	}()

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		wireBytes := packetcomm.MustEncode(packetcomm.NewPing(origin, packetcomm.NodeLocal, packetcomm.ChannelRadio))

		// Send ping
		startTime := time.Now()
		if _, err := conn.Write(wireBytes); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		// Wait for response or timeout
		select {
		case packet := <-responses:
			rtt := time.Since(startTime)
			fmt.Printf("%s from %s, payload=%q, rtt=%v\n", packet.Type, packet.Origin, packet.Payload, rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			i = pingCount

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
