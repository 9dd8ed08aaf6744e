// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/Thermoquad/flightcore/internal/config"
	"github.com/Thermoquad/flightcore/internal/flight"
	"github.com/Thermoquad/flightcore/internal/logging"
)

var (
	runConfigPath string
	runTUI        bool
	runLogLevel   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flight core",
	Long: `Start the flight core and run until interrupted.

Configuration is read from --config (or FLIGHTCORE_CONFIG), a .env file in
the working directory and FLIGHTCORE_* environment variables. Channel links
default to null transports and the board is simulated, so the core can be
exercised on a bench without hardware.

With --tui a live monitor shows the task registry, companion power state,
queue depths and router statistics, and accepts commands (ping, on, force,
off, status, beacon) that are injected as if received from the ground.
Logs then go only to the configured log file.`,
	RunE: runFlight,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "YAML configuration file")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live monitor")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

func runFlight(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	if runLogLevel != "" {
		cfg.Log.Level = runLogLevel
	}
	if err := resolvePasswords(cfg); err != nil {
		return err
	}

	logOpts := cfg.LogOptions()
	if runTUI {
		logOpts.Console = io.Discard
	}
	closeLog, err := logging.Setup(logOpts)
	if err != nil {
		return err
	}
	atexit.Register(func() { _ = closeLog() })

	core, err := flight.New(cfg, flight.Deps{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := core.Setup(ctx); err != nil {
		return err
	}

	if !runTUI {
		pterm.Info.Println(fmt.Sprintf("Flightcore - v%s", rootCmd.Version))
		pterm.Println()
		return core.Run(ctx)
	}

	done := make(chan error, 1)
	go func() { done <- core.Run(ctx) }()

	p := tea.NewProgram(initialMonitorModel(core, cfg))
	if _, err := p.Run(); err != nil {
		stop()
		<-done
		return fmt.Errorf("monitor: %w", err)
	}

	stop()
	return <-done
}
