// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/flightcore/internal/config"
	"github.com/Thermoquad/flightcore/internal/transport"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(config.EnvWSPassword); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket link based on flags.
// Reads on the returned connection block until data arrives.
func OpenConnection() (transport.Conn, string, error) {
	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := transport.DialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		// Serial mode
		conn, err := transport.OpenSerial(portName, baudRate, 0)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// resolvePasswords fills in WebSocket passwords the configuration could not
// supply, prompting once.
func resolvePasswords(cfg *config.Config) error {
	var prompted string
	for _, ch := range []*config.ChannelConfig{&cfg.Channels.Radio, &cfg.Channels.PowerUnit, &cfg.Channels.Companion} {
		if ch.Kind != transport.KindWebSocket || ch.Username == "" || ch.Password != "" {
			continue
		}
		if prompted == "" {
			pw, err := GetPassword()
			if err != nil {
				return err
			}
			prompted = pw
		}
		ch.Password = prompted
	}
	return nil
}
