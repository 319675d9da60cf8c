// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/process"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/util"
)

// DefaultStopTimeout is how long a container gets to exit after the
// engine's graceful stop before it is force-removed.
const DefaultStopTimeout = 10 * time.Second

// RunSpec describes a single container launch. The flags in Args sit
// between "run -d --name <name>" and the image; Command is passed to
// the container entrypoint after the image.
type RunSpec struct {
	Name    string
	Image   string
	Args    []string
	Command []string
}

// Manager executes container lifecycle operations against the engine
// selected at startup. Operations are uniform across Docker and
// Podman; engine differences are resolved through the Engine
// interface.
//
// Start and Stop are blocking calls to the external engine and may
// take several seconds. Manager is safe for concurrent use.
type Manager struct {
	engine      Engine
	proc        process.Runner
	stopTimeout time.Duration
}

// NewManager creates a Manager for the given engine.
func NewManager(engine Engine, proc process.Runner) *Manager {
	return &Manager{
		engine:      engine,
		proc:        proc,
		stopTimeout: DefaultStopTimeout,
	}
}

// Engine returns the engine this manager drives.
func (m *Manager) Engine() Engine {
	return m.engine
}

// run invokes the engine program with captured output.
func (m *Manager) run(ctx context.Context, args ...string) ([]byte, error) {
	return m.proc.Run(ctx, m.engine.Program(), args...)
}

// Start launches a container per the spec and returns once the engine
// reports it created. Failures carry the engine's stderr so the
// operator can diagnose without reading logs.
func (m *Manager) Start(ctx context.Context, spec RunSpec) error {
	args := []string{"run", "-d", "--name", spec.Name}
	args = append(args, spec.Args...)
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	if _, err := m.run(ctx, args...); err != nil {
		return fmt.Errorf("start %s: %w", spec.Name, err)
	}
	return nil
}

// Stop gracefully stops and removes the named containers, one at a
// time in the given order. Callers rely on the ordering: the log
// viewer is passed before the engine so it never outlives the log
// volume it reads. Containers that are already stopped or do not
// exist are a no-op, not an error, so Stop is safe to call
// repeatedly.
func (m *Manager) Stop(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := m.stopOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) stopOne(ctx context.Context, name string) error {
	seconds := strconv.Itoa(int(m.stopTimeout / time.Second))
	if _, err := m.run(ctx, "stop", "-t", seconds, name); err != nil {
		if !isNotFound(err) {
			// Graceful stop failed; fall through and force-remove.
			if _, rmErr := m.run(ctx, "rm", "-f", name); rmErr != nil && !isNotFound(rmErr) {
				return fmt.Errorf("stop %s: %w", name, rmErr)
			}
			return nil
		}
		return nil
	}
	if _, err := m.run(ctx, "rm", "-f", name); err != nil && !isNotFound(err) {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// isNotFound reports whether err is the engine telling us the
// container does not exist. Both Docker and Podman phrase this as
// "no such container" on stderr.
func isNotFound(err error) bool {
	var cmdErr *util.CommandError
	if errors.As(err, &cmdErr) {
		return strings.Contains(strings.ToLower(cmdErr.Stderr), "no such container")
	}
	return false
}

// Running reports whether the named container exists and is running.
func (m *Manager) Running(ctx context.Context, name string) bool {
	out, err := m.run(ctx, "inspect", name)
	if err != nil {
		return false
	}
	var containers []struct {
		State struct {
			Running bool `json:"Running"`
		} `json:"State"`
	}
	if err := json.Unmarshal(out, &containers); err != nil || len(containers) == 0 {
		return false
	}
	return containers[0].State.Running
}

// Status returns the live running state per container name, probing
// in parallel. Used to render the menu.
func (m *Manager) Status(ctx context.Context, names ...string) map[string]bool {
	status := make([]bool, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			status[i] = m.Running(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]bool, len(names))
	for i, name := range names {
		result[name] = status[i]
	}
	return result
}

// ImageExists reports whether the image is present locally.
func (m *Manager) ImageExists(ctx context.Context, image string) bool {
	_, err := m.run(ctx, "image", "inspect", image)
	return err == nil
}

// RunOnce runs a command in a throwaway container of the given image
// and returns its output. Used to extract files shipped inside an
// image, like the suricata-update rule templates.
func (m *Manager) RunOnce(ctx context.Context, image string, command ...string) ([]byte, error) {
	args := append([]string{"run", "--rm", image}, command...)
	return m.run(ctx, args...)
}

// Pull fetches an image, streaming the engine's progress output to
// the terminal.
func (m *Manager) Pull(ctx context.Context, image string) error {
	if err := m.proc.Interactive(ctx, m.engine.Program(), "pull", image); err != nil {
		return fmt.Errorf("pull %s: %w", image, err)
	}
	return nil
}

// LastLogLine returns the most recent log line from a container, or
// empty if unavailable. Suricata logs to stderr, so stderr is
// preferred when both streams have output.
func (m *Manager) LastLogLine(ctx context.Context, name string) string {
	out, err := m.run(ctx, "logs", "--tail=1", name)
	if err != nil {
		var cmdErr *util.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasStderr() && !isNotFound(err) {
			return cmdErr.Stderr
		}
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Logs streams container logs to the terminal. With follow set this
// blocks until the context is cancelled or the user interrupts.
func (m *Manager) Logs(ctx context.Context, name string, tail int, follow bool) error {
	args := []string{"logs", fmt.Sprintf("--tail=%d", tail)}
	if follow {
		args = append(args, "--follow")
	}
	args = append(args, name)
	return m.proc.Interactive(ctx, m.engine.Program(), args...)
}

// Exec runs a command inside a running container, detached from the
// terminal. Output is captured and returned.
func (m *Manager) Exec(ctx context.Context, name string, command ...string) ([]byte, error) {
	args := append([]string{"exec", name}, command...)
	return m.run(ctx, args...)
}

// ExecInteractive runs a command inside a running container with the
// terminal attached. Extra env entries are passed as -e flags; used
// for the container shells where PS1 is set.
func (m *Manager) ExecInteractive(ctx context.Context, name string, env []string, command ...string) error {
	args := []string{"exec", "-it"}
	for _, e := range env {
		args = append(args, "-e", e)
	}
	args = append(args, name)
	args = append(args, command...)
	return m.proc.Interactive(ctx, m.engine.Program(), args...)
}
