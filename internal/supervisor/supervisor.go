// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package supervisor starts channel tasks, keeps the (handle, channel)
// registry and terminates a task when it asks to stop.
//
// Each task runs in its own goroutine under a cancellable context. Ending a
// task means cancelling that context and then waiting for the goroutine to
// confirm its exit; a boolean "stop" flag is never trusted on its own.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// TaskHandle identifies one started task.
type TaskHandle string

// Entry is what the supervisor needs to start a task.
type Entry struct {
	Channel packetcomm.ChannelID
	Name    string
	Run     func(ctx context.Context)
}

// Info is a registry snapshot row.
type Info struct {
	Handle  TaskHandle
	Channel packetcomm.ChannelID
	Name    string
	Stack   int
	Started time.Time
}

type task struct {
	Info
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Supervisor.
type Options struct {
	// StackPool is the total stack budget shared by all tasks.
	StackPool int
	// ExitTimeout bounds how long Start waits for the previous task of
	// the same channel to exit.
	ExitTimeout time.Duration
}

// Supervisor owns the task registry.
type Supervisor struct {
	opts Options
	log  logging.Logger

	root       context.Context
	cancelRoot context.CancelFunc

	mu         sync.Mutex
	registry   map[packetcomm.ChannelID]*task
	live       map[TaskHandle]*task
	disabled   map[packetcomm.ChannelID]error
	stackUsed  int
	quantum    time.Duration
	quantumSet bool
}

// New creates a supervisor with an empty registry.
func New(opts Options) *Supervisor {
	if opts.ExitTimeout <= 0 {
		opts.ExitTimeout = 5 * time.Second
	}
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		opts:       opts,
		log:        logging.New("supervisor"),
		root:       root,
		cancelRoot: cancel,
		registry:   make(map[packetcomm.ChannelID]*task),
		live:       make(map[TaskHandle]*task),
		disabled:   make(map[packetcomm.ChannelID]error),
	}
}

// SetQuantum configures the shared scheduling quantum. It can only be set
// once per session.
func (s *Supervisor) SetQuantum(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quantumSet {
		return ErrQuantumSet
	}
	if d <= 0 {
		return fmt.Errorf("invalid quantum %v", d)
	}
	s.quantum = d
	s.quantumSet = true
	return nil
}

// Quantum returns the configured quantum, or zero before SetQuantum.
func (s *Supervisor) Quantum() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantum
}

// Start launches entry with the given stack budget and registers it. Any
// failure leaves the channel unregistered and disabled for the rest of the
// session; there is no retry.
func (s *Supervisor) Start(entry Entry, stackBudget int) (TaskHandle, error) {
	s.mu.Lock()
	if err, ok := s.disabled[entry.Channel]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%s: %w (%v)", entry.Channel, ErrChannelDisabled, err)
	}
	if t, ok := s.registry[entry.Channel]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%s (%s): %w", entry.Channel, t.Handle, ErrAlreadyRegistered)
	}
	prev := s.exitingLocked(entry.Channel)
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.done:
		case <-time.After(s.opts.ExitTimeout):
			return "", s.fail(entry.Channel, fmt.Errorf("%s (%s): %w", entry.Channel, prev.Handle, ErrExitTimeout))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.registry[entry.Channel]; ok {
		return "", fmt.Errorf("%s (%s): %w", entry.Channel, t.Handle, ErrAlreadyRegistered)
	}
	if entry.Run == nil {
		return "", s.failLocked(entry.Channel, fmt.Errorf("%s: %w", entry.Channel, ErrNoRunnable))
	}
	if stackBudget <= 0 || s.stackUsed+stackBudget > s.opts.StackPool {
		return "", s.failLocked(entry.Channel, fmt.Errorf("%s: need %d, %d of %d in use: %w",
			entry.Channel, stackBudget, s.stackUsed, s.opts.StackPool, ErrStackBudget))
	}

	ctx, cancel := context.WithCancel(s.root)
	t := &task{
		Info: Info{
			Handle:  TaskHandle(xid.New().String()),
			Channel: entry.Channel,
			Name:    entry.Name,
			Stack:   stackBudget,
			Started: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.registry[entry.Channel] = t
	s.live[t.Handle] = t
	s.stackUsed += stackBudget

	go s.run(ctx, t, entry.Run)

	s.log.Info("started %s task %s on %s (stack %d)", t.Name, t.Handle, t.Channel, stackBudget)
	return t.Handle, nil
}

func (s *Supervisor) run(ctx context.Context, t *task, fn func(context.Context)) {
	defer close(t.done)
	defer s.exited(t)
	fn(ctx)
}

// exited runs when the task goroutine returns, whatever the reason.
func (s *Supervisor) exited(t *task) {
	t.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.registry[t.Channel]; ok && cur == t {
		delete(s.registry, t.Channel)
	}
	delete(s.live, t.Handle)
	s.stackUsed -= t.Stack
	s.log.Debug("%s task %s exited", t.Name, t.Handle)
}

// exitingLocked returns a terminated task of ch that has not yet exited.
func (s *Supervisor) exitingLocked(ch packetcomm.ChannelID) *task {
	for _, t := range s.live {
		if t.Channel == ch {
			return t
		}
	}
	return nil
}

func (s *Supervisor) fail(ch packetcomm.ChannelID, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(ch, err)
}

func (s *Supervisor) failLocked(ch packetcomm.ChannelID, err error) error {
	s.disabled[ch] = err
	s.log.Error("failed to start %s task, channel disabled: %v", ch, err)
	return err
}

// RequestSelfTermination is called on behalf of the task owning ch. It
// removes the registry entry and cancels the task; the task observes the
// cancellation at its next suspension point.
func (s *Supervisor) RequestSelfTermination(ch packetcomm.ChannelID) (TaskHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.registry[ch]
	if !ok {
		return "", fmt.Errorf("%s: %w", ch, ErrNotRegistered)
	}
	delete(s.registry, ch)
	t.cancel()
	s.log.Info("terminating %s task %s", t.Name, t.Handle)
	return t.Handle, nil
}

// Await blocks until the task behind handle has exited or ctx is done.
// Unknown handles belong to tasks that have already exited.
func (s *Supervisor) Await(ctx context.Context, handle TaskHandle) error {
	s.mu.Lock()
	t, ok := s.live[handle]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("awaiting %s: %w", handle, ctx.Err())
	}
}

// Running reports whether the task behind handle has not yet exited.
func (s *Supervisor) Running(handle TaskHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[handle]
	return ok
}

// Shutdown cancels every task and waits for all of them to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancelRoot()

	s.mu.Lock()
	pending := make([]*task, 0, len(s.live))
	for _, t := range s.live {
		pending = append(pending, t)
	}
	s.registry = make(map[packetcomm.ChannelID]*task)
	s.mu.Unlock()

	for _, t := range pending {
		select {
		case <-t.done:
		case <-ctx.Done():
			return fmt.Errorf("shutdown: %s task %s still running: %w", t.Name, t.Handle, ctx.Err())
		}
	}
	return nil
}

// Registered reports whether ch has a registry entry.
func (s *Supervisor) Registered(ch packetcomm.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registry[ch]
	return ok
}

// Handle returns the registered handle of ch.
func (s *Supervisor) Handle(ch packetcomm.ChannelID) (TaskHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.registry[ch]
	if !ok {
		return "", false
	}
	return t.Handle, true
}

// Disabled reports whether ch failed to start this session.
func (s *Supervisor) Disabled(ch packetcomm.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.disabled[ch]
	return ok
}

// Entries returns the registry ordered by channel.
func (s *Supervisor) Entries() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.registry))
	for _, t := range s.registry {
		out = append(out, t.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// StackInUse returns the stack budget held by live tasks.
func (s *Supervisor) StackInUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stackUsed
}
