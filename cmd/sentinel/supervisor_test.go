// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/AleutianAI/SentinelLocal/pkg/logging"
)

// fakeStopper records Stop invocations for supervisor tests.
type fakeStopper struct {
	err error

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeStopper) Stop(ctx context.Context, names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), names...))
	return f.err
}

func (f *fakeStopper) stopCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true, Service: "test"})
}

func TestTrackDeduplicates(t *testing.T) {
	s := NewSupervisor(&fakeStopper{}, quietLogger())

	s.Track(suricataContainer)
	s.Track(suricataContainer, eveboxContainer)

	tracked := s.Tracked()
	if len(tracked) != 2 {
		t.Errorf("tracked = %v, want 2 unique entries", tracked)
	}
}

func TestUntrack(t *testing.T) {
	s := NewSupervisor(&fakeStopper{}, quietLogger())
	s.Track(suricataContainer, eveboxContainer)

	s.Untrack(eveboxContainer)

	tracked := s.Tracked()
	if !slices.Equal(tracked, []string{suricataContainer}) {
		t.Errorf("tracked = %v, want [%s]", tracked, suricataContainer)
	}
}

func TestShutdownStopsTracked(t *testing.T) {
	stopper := &fakeStopper{}
	s := NewSupervisor(stopper, quietLogger())
	s.Track(suricataContainer, eveboxContainer)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	calls := stopper.stopCalls()
	if len(calls) != 1 {
		t.Fatalf("Stop called %d times, want 1", len(calls))
	}
	if len(calls[0]) != 2 {
		t.Errorf("Stop names = %v, want both containers", calls[0])
	}
}

// Shutdown must be idempotent: the interrupt handler and the main exit
// path can race, and the containers must only be stopped once.
func TestShutdownRunsOnce(t *testing.T) {
	stopper := &fakeStopper{}
	s := NewSupervisor(stopper, quietLogger())
	s.Track(suricataContainer)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	if calls := stopper.stopCalls(); len(calls) != 1 {
		t.Errorf("Stop called %d times across two Shutdowns, want 1", len(calls))
	}
}

func TestShutdownNothingTracked(t *testing.T) {
	stopper := &fakeStopper{}
	s := NewSupervisor(stopper, quietLogger())

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls := stopper.stopCalls(); len(calls) != 0 {
		t.Errorf("Stop called %d times with nothing tracked, want 0", len(calls))
	}
}

func TestShutdownReturnsStopError(t *testing.T) {
	stopper := &fakeStopper{err: errors.New("engine unreachable")}
	s := NewSupervisor(stopper, quietLogger())
	s.Track(suricataContainer)

	if err := s.Shutdown(context.Background()); err == nil {
		t.Error("Shutdown() swallowed the stop error")
	}
}

// While a foreground child owns the terminal, an interrupt must kill
// only the child: the tool keeps running and the session's containers
// stay up. Only after interrupt handling resumes does a signal tear
// the session down.
func TestSuspendedInterruptDoesNotTearDown(t *testing.T) {
	exited := make(chan int, 1)
	oldExit := osExit
	osExit = func(code int) { exited <- code }
	defer func() { osExit = oldExit }()

	stopper := &fakeStopper{}
	s := NewSupervisor(stopper, quietLogger())
	s.Track(suricataContainer)
	s.Arm()

	err := s.WithSuspended(func() error {
		s.signals <- syscall.SIGINT
		// Give the handler time to (wrongly) act on the signal.
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case code := <-exited:
		t.Fatalf("process exited with %d during suspended interrupt", code)
	default:
	}
	if calls := stopper.stopCalls(); len(calls) != 0 {
		t.Fatalf("containers stopped during suspended interrupt: %v", calls)
	}

	// Resumed: the next signal tears down as usual.
	s.signals <- syscall.SIGTERM
	select {
	case code := <-exited:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("signal handler did not exit after resume")
	}
	if calls := stopper.stopCalls(); len(calls) != 1 {
		t.Errorf("Stop called %d times, want 1", len(calls))
	}
}

func TestSignalExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		stopErr  error
		wantCode int
	}{
		{"clean stop exits zero", nil, 0},
		{"failed stop exits non-zero", errors.New("engine unreachable"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exited := make(chan int, 1)
			oldExit := osExit
			osExit = func(code int) { exited <- code }
			defer func() { osExit = oldExit }()

			stopper := &fakeStopper{err: tt.stopErr}
			s := NewSupervisor(stopper, quietLogger())
			s.Track(suricataContainer)
			s.Arm()

			// Deliver the signal directly rather than to the whole
			// process group, which would take the test runner with it.
			s.signals <- syscall.SIGTERM

			select {
			case code := <-exited:
				if code != tt.wantCode {
					t.Errorf("exit code = %d, want %d", code, tt.wantCode)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("signal handler did not exit")
			}

			if calls := stopper.stopCalls(); len(calls) != 1 {
				t.Errorf("Stop called %d times, want 1", len(calls))
			}
		})
	}
}
