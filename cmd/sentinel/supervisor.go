// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AleutianAI/SentinelLocal/pkg/logging"
	"github.com/AleutianAI/SentinelLocal/pkg/ux"
)

// containerStopper is the slice of the runtime manager the supervisor
// needs; narrowed so tests can substitute a fake.
type containerStopper interface {
	Stop(ctx context.Context, names ...string) error
}

// shutdownTimeout bounds the interrupt-path stop. Retrying or waiting
// indefinitely inside a signal handler risks hanging the terminal.
const shutdownTimeout = 30 * time.Second

// osExit is a variable so tests can intercept process exit.
var osExit = os.Exit

// Supervisor owns the window between Start being issued and the
// process exiting. It tracks the containers started in this session
// and guarantees they are stopped if the operator interrupts the
// tool, so an abrupt exit never orphans containers it launched.
//
// Containers from previous invocations are deliberately not tracked:
// services persist across tool invocations by design, and only a
// session's own containers are torn down on its interrupt.
type Supervisor struct {
	stopper containerStopper
	log     *logging.Logger

	mu      sync.Mutex
	tracked []string

	// stopping ensures the interrupt handler and the main exit path
	// cannot both invoke Stop. Best effort per the concurrency
	// model: the two paths coordinate only through this flag.
	stopping atomic.Bool

	// suspended diverts the interrupt handler while a child process
	// owns the terminal. The signal still reaches the child (same
	// foreground process group); sentinel itself swallows it.
	suspended atomic.Bool

	signals chan os.Signal
}

// NewSupervisor creates a Supervisor over the given stopper.
func NewSupervisor(stopper containerStopper, log *logging.Logger) *Supervisor {
	return &Supervisor{
		stopper: stopper,
		log:     log,
		signals: make(chan os.Signal, 1),
	}
}

// Track records containers started in this session so the interrupt
// path can tear them down.
func (s *Supervisor) Track(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if !s.isTrackedLocked(name) {
			s.tracked = append(s.tracked, name)
		}
	}
}

// Untrack forgets containers that were stopped through the menu, so
// a later interrupt does not re-stop them.
func (s *Supervisor) Untrack(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.tracked[:0]
	for _, t := range s.tracked {
		drop := false
		for _, name := range names {
			if t == name {
				drop = true
				break
			}
		}
		if !drop {
			remaining = append(remaining, t)
		}
	}
	s.tracked = remaining
}

func (s *Supervisor) isTrackedLocked(name string) bool {
	for _, t := range s.tracked {
		if t == name {
			return true
		}
	}
	return false
}

// Tracked returns a copy of the currently tracked container names.
func (s *Supervisor) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tracked...)
}

// Arm installs the SIGINT/SIGTERM handler. On signal the tracked
// containers are stopped and the process exits: zero if the stop
// succeeded (or nothing was tracked), non-zero if the stop itself
// failed. Signals arriving while suspended are dropped.
func (s *Supervisor) Arm() {
	signal.Notify(s.signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range s.signals {
			if s.suspended.Load() {
				s.log.Debug("interrupt passed to foreground child", "signal", sig.String())
				continue
			}
			s.log.Info("interrupt received, stopping services", "signal", sig.String())
			code := 0
			if err := s.Shutdown(context.Background()); err != nil {
				ux.Errorf("shutdown failed, containers may still be running: %v", err)
				code = 1
			}
			osExit(code)
		}
	}()
}

// WithSuspended runs fn with interrupt handling suspended. Used around
// interactive children (log following, shells, editors): CTRL-C then
// kills the child and returns control here instead of tearing down the
// session's containers.
func (s *Supervisor) WithSuspended(fn func() error) error {
	s.suspended.Store(true)
	defer s.suspended.Store(false)
	return fn()
}

// Shutdown stops every tracked container at most once. A second call,
// whether from the interrupt handler or the main exit path, is a
// no-op. Failures are logged and returned; there is no retry.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.stopping.CompareAndSwap(false, true) {
		return nil
	}
	tracked := s.Tracked()
	if len(tracked) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.stopper.Stop(ctx, tracked...); err != nil {
		s.log.Error("failed to stop services during shutdown", "error", err)
		return err
	}
	s.log.Info("services stopped", "containers", tracked)
	return nil
}
