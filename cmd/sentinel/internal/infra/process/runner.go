// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package process abstracts external process execution behind an
// interface so container engine invocations can be mocked in tests.
//
// All exec.Command calls in the runtime adapter go through Runner.
// Direct calls to exec.Command are not testable because they execute
// real processes; the Runner interface lets tests capture and verify
// command invocations and simulate failures without a container
// engine installed.
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/util"
)

// Runner executes external commands.
//
// Implementations must be safe for concurrent use. All methods accept
// a context.Context; long-running commands are killed when the context
// is cancelled.
type Runner interface {
	// Run executes a command and returns its stdout. On a non-zero
	// exit the returned error is a *util.CommandError carrying the
	// trimmed stderr and exit code.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Interactive executes a command with the parent's stdin, stdout
	// and stderr attached. Used for shells, log following and image
	// pulls where the engine's own progress output should reach the
	// terminal.
	Interactive(ctx context.Context, name string, args ...string) error
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner that executes real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its stdout.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, util.NewCommandError(
			name+" "+strings.Join(args, " "),
			exitCode,
			strings.TrimSpace(stderr.String()),
			err,
		)
	}

	return stdout.Bytes(), nil
}

// Interactive executes a command attached to the parent's terminal.
func (r *ExecRunner) Interactive(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return util.NewCommandError(
			name+" "+strings.Join(args, " "),
			exitCode,
			"",
			err,
		)
	}
	return nil
}

// MockRunner is a test double for Runner.
//
// Configure the mock by setting function fields before use. If a
// function field is nil and the corresponding method is called, it
// panics. Calls records every invocation for verification.
//
//	mock := &process.MockRunner{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "docker" && args[0] == "version" {
//	            return []byte(`{"Server":{"Version":"27.0.1"}}`), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockRunner struct {
	RunFunc         func(ctx context.Context, name string, args ...string) ([]byte, error)
	InteractiveFunc func(ctx context.Context, name string, args ...string) error

	// Calls records all method invocations for verification.
	Calls []Call

	mu sync.Mutex
}

// Call records a single Runner invocation.
type Call struct {
	Method string
	Name   string
	Args   []string
}

// Run delegates to RunFunc and records the call.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record("Run", name, args)
	if m.RunFunc == nil {
		panic("MockRunner.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// Interactive delegates to InteractiveFunc and records the call.
func (m *MockRunner) Interactive(ctx context.Context, name string, args ...string) error {
	m.record("Interactive", name, args)
	if m.InteractiveFunc == nil {
		panic("MockRunner.InteractiveFunc not set")
	}
	return m.InteractiveFunc(ctx, name, args...)
}

func (m *MockRunner) record(method, name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Method: method, Name: name, Args: args})
}

// GetCalls returns a copy of all recorded calls.
func (m *MockRunner) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Call, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance checks.
var (
	_ Runner = (*ExecRunner)(nil)
	_ Runner = (*MockRunner)(nil)
)
