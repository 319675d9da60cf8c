// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package runtime adapts the sentinel CLI to whichever container
// engine is installed on the host.
//
// The two supported engines, Docker and Podman, share a command
// surface (run, stop, rm, inspect, logs) but differ in version
// probing, privilege requirements and restart-policy support. Those
// differences live behind the Engine interface so call sites never
// branch on the engine type; Detect selects one implementation at
// startup and everything downstream is uniform.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/process"
)

var (
	// ErrNoRuntime is returned when neither Docker nor Podman is
	// available on the host. Fatal at startup.
	ErrNoRuntime = errors.New("no container runtime found: Docker or Podman must be installed")
)

// Engine describes the capabilities of a container engine. The parts
// of the command surface that Docker and Podman share are handled by
// Manager; Engine covers only what differs between them.
type Engine interface {
	// Name returns the engine identifier ("docker" or "podman").
	Name() string

	// Program returns the executable invoked for every operation.
	Program() string

	// Probe checks that the engine is installed and answering.
	// Returns the reported version on success.
	Probe(ctx context.Context, proc process.Runner) (string, error)

	// RequiresPrivilege reports whether containers must run with
	// --privileged on this host.
	RequiresPrivilege() bool

	// SupportsRestartPolicy reports whether the engine honors
	// --restart=unless-stopped for start-on-boot behavior.
	SupportsRestartPolicy() bool
}

// Detect probes the host for an available container engine, preferring
// Docker and falling back to Podman. With preferPodman set, Docker is
// skipped entirely. Returns ErrNoRuntime if neither engine answers.
func Detect(ctx context.Context, proc process.Runner, preferPodman bool) (Engine, error) {
	if !preferPodman {
		docker := &dockerEngine{}
		if _, err := docker.Probe(ctx, proc); err == nil {
			return docker, nil
		}
	}
	podman := &podmanEngine{}
	if _, err := podman.Probe(ctx, proc); err == nil {
		return podman, nil
	}
	return nil, ErrNoRuntime
}

// osReleasePath is a variable so tests can point it at a fixture.
var osReleasePath = "/etc/os-release"

// hostIsRaspberryPiOS reports whether /etc/os-release identifies the
// host as Raspberry Pi OS. Docker needs --privileged there.
func hostIsRaspberryPiOS() bool {
	data, err := os.ReadFile(osReleasePath)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "ID", "NAME", "PRETTY_NAME":
			if strings.Contains(strings.ToLower(strings.Trim(value, `"`)), "rasp") {
				return true
			}
		}
	}
	return false
}

// dockerEngine implements Engine for Docker.
type dockerEngine struct{}

func (e *dockerEngine) Name() string    { return "docker" }
func (e *dockerEngine) Program() string { return "docker" }

// Probe runs "docker version" and extracts the server version. A
// reachable client with no daemon is treated as not available since
// every later operation needs the daemon.
func (e *dockerEngine) Probe(ctx context.Context, proc process.Runner) (string, error) {
	out, err := proc.Run(ctx, e.Program(), "version", "--format", "{{json .}}")
	if err != nil {
		return "", fmt.Errorf("docker not available: %w", err)
	}
	var info struct {
		Server struct {
			Version string `json:"Version"`
		} `json:"Server"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return "", fmt.Errorf("docker version output unparseable: %w", err)
	}
	if info.Server.Version == "" {
		return "", errors.New("docker daemon not running")
	}
	return info.Server.Version, nil
}

func (e *dockerEngine) RequiresPrivilege() bool {
	return hostIsRaspberryPiOS()
}

func (e *dockerEngine) SupportsRestartPolicy() bool { return true }

// podmanEngine implements Engine for Podman.
type podmanEngine struct{}

func (e *podmanEngine) Name() string    { return "podman" }
func (e *podmanEngine) Program() string { return "podman" }

// Probe runs "podman version". Podman is daemonless, so the client
// version is enough.
func (e *podmanEngine) Probe(ctx context.Context, proc process.Runner) (string, error) {
	out, err := proc.Run(ctx, e.Program(), "version", "--format", "{{json .}}")
	if err != nil {
		return "", fmt.Errorf("podman not available: %w", err)
	}
	var info struct {
		Client struct {
			Version string `json:"Version"`
		} `json:"Client"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return "", fmt.Errorf("podman version output unparseable: %w", err)
	}
	if info.Client.Version == "" {
		return "", errors.New("podman reported no client version")
	}
	return info.Client.Version, nil
}

// RequiresPrivilege is always false for Podman.
func (e *podmanEngine) RequiresPrivilege() bool { return false }

// SupportsRestartPolicy is false: restart policies need a daemon to
// restart the container, which Podman does not have.
func (e *podmanEngine) SupportsRestartPolicy() bool { return false }

// Compile-time interface compliance checks.
var (
	_ Engine = (*dockerEngine)(nil)
	_ Engine = (*podmanEngine)(nil)
)
