// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Flightcore - satellite flight computer core
//
// Routes packets between the radio, the power unit and the companion
// module, and sequences the companion module's power.

package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/Thermoquad/flightcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
