// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package supervisor

import "errors"

var (
	ErrChannelDisabled   = errors.New("channel disabled after a failed start")
	ErrAlreadyRegistered = errors.New("channel already has a running task")
	ErrStackBudget       = errors.New("stack budget exhausted")
	ErrNoRunnable        = errors.New("task entry has no runnable")
	ErrNotRegistered     = errors.New("channel has no registered task")
	ErrQuantumSet        = errors.New("time quantum already configured")
	ErrExitTimeout       = errors.New("previous task did not exit in time")
)
