// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/runtime"
)

const (
	suricataContainer = "sentinel-suricata"
	eveboxContainer   = "sentinel-evebox"

	defaultSuricataImage = "docker.io/jasonish/suricata:latest"
	defaultEveBoxImage   = "docker.io/jasonish/evebox:master"

	// sessionLabel is attached to every container this process
	// starts; the value is the appContext session ID.
	sessionLabel = "sentinel.session"

	// eveboxPort is the EveBox web UI port, published on loopback
	// unless external access is enabled.
	eveboxPort = 5636
)

// managedContainers is the fixed set of containers sentinel
// supervises, in stop order (viewer before engine).
var managedContainers = []string{eveboxContainer, suricataContainer}

// localtimePath is a variable so tests can disable the host timezone
// mount.
var localtimePath = "/etc/localtime"

// suricataSpec builds the container launch spec for the IDS engine.
//
// Suricata needs host networking to see the monitored interface, and
// raw capture capabilities. The etc/run/lib volumes are engine-named
// volumes (state that survives restarts but is not operator-facing);
// the log volume lives under the data directory so EveBox and the
// operator can reach eve.json.
func (app *appContext) suricataSpec() (runtime.RunSpec, error) {
	logDir, err := ensureDataSubdir(app.cfg.DataDirectory, suricataContainer+"--log")
	if err != nil {
		return runtime.RunSpec{}, err
	}

	args := []string{
		"--net=host",
		"--label=" + sessionLabel + "=" + app.sessionID,
		"--cap-add=sys_nice",
		"--cap-add=net_admin",
		"--cap-add=net_raw",
	}
	if app.mgr.Engine().RequiresPrivilege() {
		args = append(args, "--privileged")
	}
	if _, err := os.Stat(localtimePath); err == nil {
		args = append(args, "--volume="+localtimePath+":/etc/localtime:ro")
	}
	args = append(args,
		"--volume="+suricataContainer+"--etc:/etc/suricata",
		"--volume="+suricataContainer+"--run:/run/suricata",
		"--volume="+suricataContainer+"--lib:/var/lib/suricata",
		"--volume="+logDir+":/var/log/suricata",
	)

	// Local rule tuning files are mounted when present so
	// suricata-update picks them up.
	for _, name := range []string{"enable.conf", "disable.conf"} {
		if path, err := filepath.Abs(name); err == nil {
			if _, err := os.Stat(path); err == nil {
				args = append(args, fmt.Sprintf("--volume=%s:/etc/suricata/%s", path, name))
			}
		}
	}

	if app.cfg.StartOnBoot && app.mgr.Engine().SupportsRestartPolicy() {
		args = append(args, "--restart=unless-stopped")
	}

	command := []string{"-k", "none", "-i", app.cfg.Interface}
	if app.cfg.BPFFilter != "" {
		command = append(command, app.cfg.BPFFilter)
	}

	return runtime.RunSpec{
		Name:    suricataContainer,
		Image:   app.suricataImage(),
		Args:    args,
		Command: command,
	}, nil
}

// eveboxSpec builds the container launch spec for the log viewer. It
// shares the Suricata log volume read path and keeps its sqlite event
// database under the data directory.
func (app *appContext) eveboxSpec() (runtime.RunSpec, error) {
	logDir, err := ensureDataSubdir(app.cfg.DataDirectory, suricataContainer+"--log")
	if err != nil {
		return runtime.RunSpec{}, err
	}
	dataDir, err := ensureDataSubdir(app.cfg.DataDirectory, eveboxContainer+"--data")
	if err != nil {
		return runtime.RunSpec{}, err
	}

	publish := fmt.Sprintf("--publish=127.0.0.1:%d:%d", eveboxPort, eveboxPort)
	if app.cfg.EveBox.AllowExternal {
		publish = fmt.Sprintf("--publish=0.0.0.0:%d:%d", eveboxPort, eveboxPort)
	}

	args := []string{
		publish,
		"--label=" + sessionLabel + "=" + app.sessionID,
	}
	if app.mgr.Engine().RequiresPrivilege() {
		args = append(args, "--privileged")
	}
	if _, err := os.Stat(localtimePath); err == nil {
		args = append(args, "--volume="+localtimePath+":/etc/localtime:ro")
	}
	args = append(args,
		"--volume="+logDir+":/var/log/suricata",
		"--volume="+dataDir+":/data",
	)
	if app.cfg.StartOnBoot && app.mgr.Engine().SupportsRestartPolicy() {
		args = append(args, "--restart=unless-stopped")
	}

	return runtime.RunSpec{
		Name:  eveboxContainer,
		Image: app.eveboxImage(),
		Args:  args,
		Command: []string{
			"evebox", "-D", "/data", "server",
			"--input", "/var/log/suricata/eve.json",
			"--datastore", "sqlite",
		},
	}, nil
}

// ensureDataSubdir creates a bind-mount source under the data
// directory. Podman refuses to create missing bind sources, so they
// are made here before the run.
func ensureDataSubdir(dataDir, name string) (string, error) {
	path := filepath.Join(dataDir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o2750); err != nil {
			return "", fmt.Errorf("create volume directory %s: %w", path, err)
		}
	}
	return path, nil
}
