// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/google/uuid"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/config"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/process"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/runtime"
	"github.com/AleutianAI/SentinelLocal/pkg/logging"
)

// appContext carries everything a command or menu action needs: the
// loaded configuration, the runtime manager for the detected engine,
// and the session identity used to label containers started by this
// process.
type appContext struct {
	cfg     config.Config
	cfgPath string
	mgr     *runtime.Manager
	proc    process.Runner
	log     *logging.Logger

	// interactive is true when the menu loop owns the terminal;
	// actions then pause for ENTER after errors instead of exiting.
	interactive bool

	// sessionID labels containers started in this invocation so the
	// supervisor can tell its own containers from ones left running
	// by a previous run.
	sessionID string
}

func newAppContext(cfg config.Config, cfgPath string, mgr *runtime.Manager, proc process.Runner, log *logging.Logger) *appContext {
	return &appContext{
		cfg:       cfg,
		cfgPath:   cfgPath,
		mgr:       mgr,
		proc:      proc,
		log:       log,
		sessionID: uuid.NewString(),
	}
}

// saveConfig persists the current configuration, logging rather than
// propagating failures: a failed save must not abort a menu action
// that already applied.
func (app *appContext) saveConfig() {
	if err := config.Save(app.cfgPath, app.cfg); err != nil {
		app.log.Error("failed to save configuration", "path", app.cfgPath, "error", err)
	}
}

// suricataImage returns the configured or default Suricata image.
func (app *appContext) suricataImage() string {
	if app.cfg.Suricata.Image != "" {
		return app.cfg.Suricata.Image
	}
	return defaultSuricataImage
}

// eveboxImage returns the configured or default EveBox image.
func (app *appContext) eveboxImage() string {
	if app.cfg.EveBox.Image != "" {
		return app.cfg.EveBox.Image
	}
	return defaultEveBoxImage
}
