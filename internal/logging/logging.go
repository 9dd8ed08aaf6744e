// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging is the leveled, component-tagged logger shared by every
// subsystem. Console output goes through pterm; an optional rotating file
// sink is written as JSON lines through lumberjack.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the sinks.
type Options struct {
	Level string // debug, info, warn, error

	// Console receives human-readable output. Nil means stderr; use
	// io.Discard to silence the console (the TUI owns the terminal).
	Console io.Writer

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu    sync.RWMutex
	sinks = []*pterm.Logger{defaultConsole(os.Stderr, pterm.LogLevelInfo)}
)

func defaultConsole(w io.Writer, level pterm.LogLevel) *pterm.Logger {
	return pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(level).
		WithTime(true).
		WithTimeFormat("02 Jan 15:04:05.000").
		WithMaxWidth(1000)
}

// ParseLevel maps a level name to a pterm level.
func ParseLevel(name string) (pterm.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return pterm.LogLevelDebug, nil
	case "info", "":
		return pterm.LogLevelInfo, nil
	case "warn", "warning":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	default:
		return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup replaces the sinks. The returned function closes the file sink.
func Setup(opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	next := []*pterm.Logger{defaultConsole(console, level)}
	closer := func() error { return nil }

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		file := pterm.DefaultLogger.
			WithWriter(lj).
			WithLevel(level).
			WithFormatter(pterm.LogFormatterJSON).
			WithTime(true)
		next = append(next, file)
		closer = lj.Close
	}

	mu.Lock()
	sinks = next
	mu.Unlock()
	return closer, nil
}

// Logger tags every message with a component name.
type Logger struct {
	component string
}

// New returns a logger for component.
func New(component string) Logger {
	return Logger{component: component}
}

// Component returns the tag.
func (l Logger) Component() string { return l.component }

func (l Logger) Debug(format string, args ...any) { l.emit(pterm.LogLevelDebug, format, args) }
func (l Logger) Info(format string, args ...any)  { l.emit(pterm.LogLevelInfo, format, args) }
func (l Logger) Warn(format string, args ...any)  { l.emit(pterm.LogLevelWarn, format, args) }
func (l Logger) Error(format string, args ...any) { l.emit(pterm.LogLevelError, format, args) }

func (l Logger) emit(level pterm.LogLevel, format string, args []any) {
	msg := fmt.Sprintf(format, args...)

	mu.RLock()
	defer mu.RUnlock()
	for _, s := range sinks {
		tag := s.Args("component", l.component)
		switch level {
		case pterm.LogLevelDebug:
			s.Debug(msg, tag)
		case pterm.LogLevelInfo:
			s.Info(msg, tag)
		case pterm.LogLevelWarn:
			s.Warn(msg, tag)
		default:
			s.Error(msg, tag)
		}
	}
}
