// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_SleepWakesOnAdvance(t *testing.T) {
	c := NewManualAt(time.Unix(1000, 0))
	done := make(chan error, 1)
	go func() { done <- c.Sleep(context.Background(), 5*time.Second) }()

	require.True(t, c.BlockUntil(1, time.Second))

	c.Advance(4 * time.Second)
	select {
	case <-done:
		t.Fatal("sleeper woke before its deadline")
	case <-time.After(20 * time.Millisecond):
	}

	c.Advance(time.Second)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sleeper did not wake at its deadline")
	}
	assert.Equal(t, 0, c.Waiters())
	assert.Equal(t, 5*time.Second, c.Since(time.Unix(1000, 0)))
}

func TestManual_SleepCancelled(t *testing.T) {
	c := NewManual()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Sleep(ctx, time.Hour) }()

	require.True(t, c.BlockUntil(1, time.Second))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled sleep did not return")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestReal_Sleep(t *testing.T) {
	var c Real
	start := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}
