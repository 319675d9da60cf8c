// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/config"
	"github.com/AleutianAI/SentinelLocal/pkg/ux"
)

// startAll launches the IDS engine and, when enabled, the log viewer.
// Refused with config.ErrIncomplete until the configuration
// validates. Started containers are tracked by the supervisor for
// interrupt cleanup.
func startAll(ctx context.Context, app *appContext, sup *Supervisor) error {
	if err := config.Validate(app.cfg); err != nil {
		return err
	}
	if err := startSuricata(ctx, app, sup); err != nil {
		return err
	}
	if app.cfg.EveBox.Enabled {
		if err := startEveBox(ctx, app, sup); err != nil {
			return err
		}
	}
	return nil
}

func startSuricata(ctx context.Context, app *appContext, sup *Supervisor) error {
	if app.mgr.Running(ctx, suricataContainer) {
		app.log.Info("suricata already running")
		sup.Track(suricataContainer)
		return nil
	}
	spec, err := app.suricataSpec()
	if err != nil {
		return err
	}

	app.log.Info("starting suricata", "image", spec.Image, "interface", app.cfg.Interface)
	if err := app.mgr.Start(ctx, spec); err != nil {
		return err
	}
	sup.Track(suricataContainer)

	// crond drives logrotate inside the Suricata container.
	if _, err := app.mgr.Exec(ctx, suricataContainer, "crond"); err != nil {
		app.log.Warn("could not start cron in suricata container, log rotation disabled", "error", err)
	}
	return nil
}

func startEveBox(ctx context.Context, app *appContext, sup *Supervisor) error {
	if app.mgr.Running(ctx, eveboxContainer) {
		app.log.Info("evebox already running")
		sup.Track(eveboxContainer)
		return nil
	}
	spec, err := app.eveboxSpec()
	if err != nil {
		return err
	}

	app.log.Info("starting evebox", "image", spec.Image)
	if err := app.mgr.Start(ctx, spec); err != nil {
		return err
	}
	sup.Track(eveboxContainer)
	return nil
}

// stopAll stops both managed containers, viewer first. Idempotent:
// stopping services that are not running is a no-op.
func stopAll(ctx context.Context, app *appContext, sup *Supervisor) error {
	app.log.Info("stopping services")
	if err := app.mgr.Stop(ctx, managedContainers...); err != nil {
		return err
	}
	sup.Untrack(managedContainers...)
	return nil
}

func stopEveBox(ctx context.Context, app *appContext, sup *Supervisor) error {
	if err := app.mgr.Stop(ctx, eveboxContainer); err != nil {
		return err
	}
	sup.Untrack(eveboxContainer)
	return nil
}

func restartAll(ctx context.Context, app *appContext, sup *Supervisor) error {
	if err := stopAll(ctx, app, sup); err != nil {
		app.log.Error("stop during restart failed", "error", err)
	}
	return startAll(ctx, app, sup)
}

// updateRules runs suricata-update inside the running Suricata
// container with the terminal attached so its progress is visible.
func updateRules(ctx context.Context, app *appContext) error {
	if !app.mgr.Running(ctx, suricataContainer) {
		return fmt.Errorf("suricata is not running, start it before updating rules")
	}
	if err := app.mgr.ExecInteractive(ctx, suricataContainer, nil, "suricata-update"); err != nil {
		return fmt.Errorf("rule update did not complete: %w", err)
	}
	return nil
}

// rotateLogs forces logrotate inside the Suricata container.
func rotateLogs(ctx context.Context, app *appContext) error {
	if !app.mgr.Running(ctx, suricataContainer) {
		return fmt.Errorf("suricata is not running")
	}
	return app.mgr.ExecInteractive(ctx, suricataContainer, nil,
		"logrotate", "-vf", "/etc/logrotate.conf")
}

// updateImages pulls the latest images for both services. Running
// containers keep their current image until restarted.
func updateImages(ctx context.Context, app *appContext) error {
	for _, image := range []string{app.suricataImage(), app.eveboxImage()} {
		fmt.Println()
		ux.Status("pulling", image)
		if err := app.mgr.Pull(ctx, image); err != nil {
			return err
		}
	}
	return nil
}

// shell opens an interactive shell in the given container with a
// prompt identifying it.
func shell(ctx context.Context, app *appContext, container, sh string) error {
	ps1 := fmt.Sprintf(`PS1=[\u@%s \W]\$ `, container)
	return app.mgr.ExecInteractive(ctx, container, []string{ps1}, sh)
}

// serviceStatus renders the running/stopped state for the status
// command and the menu header. The bool reports whether the IDS
// engine is running.
func serviceStatus(ctx context.Context, app *appContext) bool {
	status := app.mgr.Status(ctx, suricataContainer, eveboxContainer)

	if status[suricataContainer] {
		ux.StatusGood("suricata", "running")
	} else {
		ux.Status("suricata", "not running")
	}
	if line := app.mgr.LastLogLine(ctx, suricataContainer); line != "" {
		ux.Status("suricata", line)
	}

	switch {
	case !app.cfg.EveBox.Enabled:
		ux.Status("evebox", "not enabled")
	case status[eveboxContainer]:
		ux.StatusGood("evebox", "running")
		if app.cfg.EveBox.AllowExternal {
			ux.Status("evebox", fmt.Sprintf("listening on 0.0.0.0:%d", eveboxPort))
		} else {
			ux.Status("evebox", fmt.Sprintf("http://127.0.0.1:%d", eveboxPort))
		}
	default:
		ux.Status("evebox", "not running")
	}

	return status[suricataContainer]
}
