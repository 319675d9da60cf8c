// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/config"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/hostnet"
	"github.com/AleutianAI/SentinelLocal/pkg/ux"
)

// screen enumerates the menu's states. The menu is a small finite
// state machine: each iteration of the loop renders one screen,
// processes exactly one operator action, and yields the next screen.
// No action overlaps another; edits are validated, applied and
// persisted before the next input is read.
type screen int

const (
	screenMain screen = iota
	screenConfigure
	screenLogs
	screenExit
)

// Main menu action tags.
const (
	actionStart       = "start"
	actionStop        = "stop"
	actionRestart     = "restart"
	actionUpdateRules = "update-rules"
	actionShell       = "shell"
	actionRotate      = "rotate"
	actionUpdate      = "update"
	actionConfigure   = "configure"
	actionLogs        = "logs"
	actionQuit        = "quit"
)

// nextScreen maps a main-menu action to the screen that follows it.
// Actions that run in place stay on the main screen.
func nextScreen(action string) screen {
	switch action {
	case actionConfigure:
		return screenConfigure
	case actionLogs:
		return screenLogs
	case actionQuit:
		return screenExit
	default:
		return screenMain
	}
}

// quitNeedsConfirm reports whether quitting should ask first: services
// keep running after a normal quit, which surprises operators who
// expect quit to stop the sensor.
func quitNeedsConfirm(action string, engineRunning bool) bool {
	return action == actionQuit && engineRunning
}

// runMenu drives the interactive control loop until the operator
// quits. Managed services are left running on a normal quit; only the
// interrupt path tears them down.
func runMenu(ctx context.Context, app *appContext, sup *Supervisor) error {
	current := screenMain
	for current != screenExit {
		switch current {
		case screenMain:
			current = mainScreen(ctx, app, sup)
		case screenConfigure:
			current = configureScreen(ctx, app, sup)
		case screenLogs:
			current = logsScreen(ctx, app, sup)
		}
	}
	return nil
}

func mainScreen(ctx context.Context, app *appContext, sup *Supervisor) screen {
	fmt.Println()
	ux.Title(fmt.Sprintf("SentinelLocal - Main Menu (%s, v%s)", app.mgr.Engine().Name(), version))

	if !app.mgr.ImageExists(ctx, app.suricataImage()) {
		ux.Warn("Suricata container image not present, run Update to fetch it.")
	}
	if app.cfg.Interface == "" {
		ux.Warn("No interface selected, choose Configure.")
	} else if !hostnet.Exists(app.cfg.Interface) {
		ux.Warn(fmt.Sprintf("Configured interface %q not found on this host, choose Configure.", app.cfg.Interface))
	}

	suricataRunning := serviceStatus(ctx, app)
	fmt.Println()

	var action string
	err := huh.NewSelect[string]().
		Title("Select menu option").
		Options(
			huh.NewOption("Start", actionStart),
			huh.NewOption("Stop", actionStop),
			huh.NewOption("Restart", actionRestart),
			huh.NewOption("Update Rules", actionUpdateRules),
			huh.NewOption("Suricata Shell", actionShell),
			huh.NewOption("Force Log Rotation", actionRotate),
			huh.NewOption("Update", actionUpdate),
			huh.NewOption("Configure", actionConfigure),
			huh.NewOption("Logs", actionLogs),
			huh.NewOption("Quit", actionQuit),
		).
		Value(&action).
		Run()
	if err != nil {
		// Prompt aborted; treat as quit intent.
		action = actionQuit
	}

	if quitNeedsConfirm(action, suricataRunning) {
		if !confirm("Services are still running and will keep running after quit. Quit anyway?") {
			return screenMain
		}
	}

	switch action {
	case actionStart:
		runBlocking("Starting services...", func() error {
			return startAll(ctx, app, sup)
		})
	case actionStop:
		runBlocking("Stopping services...", func() error {
			return stopAll(ctx, app, sup)
		})
	case actionRestart:
		runBlocking("Restarting services...", func() error {
			return restartAll(ctx, app, sup)
		})
	case actionUpdateRules:
		if err := sup.WithSuspended(func() error {
			return updateRules(ctx, app)
		}); err != nil {
			menuError(err)
		}
		pause()
	case actionShell:
		if err := sup.WithSuspended(func() error {
			return shell(ctx, app, suricataContainer, "/bin/bash")
		}); err != nil {
			menuError(err)
			pause()
		}
	case actionRotate:
		if err := sup.WithSuspended(func() error {
			return rotateLogs(ctx, app)
		}); err != nil {
			menuError(err)
		}
		pause()
	case actionUpdate:
		if err := sup.WithSuspended(func() error {
			return updateImages(ctx, app)
		}); err != nil {
			menuError(err)
			pause()
		}
	}

	return nextScreen(action)
}

func configureScreen(ctx context.Context, app *appContext, sup *Supervisor) screen {
	fmt.Println()
	ux.Title("SentinelLocal - Configure")

	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	eveboxLabel := "Enable EveBox"
	if app.cfg.EveBox.Enabled {
		eveboxLabel = "Disable EveBox"
	}
	externalLabel := "EveBox: Allow External Access (currently disabled)"
	if app.cfg.EveBox.AllowExternal {
		externalLabel = "EveBox: Disable External Access (currently enabled)"
	}

	var action string
	err := huh.NewSelect[string]().
		Title("Select configuration option").
		Options(
			huh.NewOption(fmt.Sprintf("Interface [%s]", orDefault(app.cfg.Interface, "none")), "interface"),
			huh.NewOption(fmt.Sprintf("Data Directory [%s]", orDefault(app.cfg.DataDirectory, "none")), "data-directory"),
			huh.NewOption(eveboxLabel, "evebox"),
			huh.NewOption(externalLabel, "evebox-external"),
			huh.NewOption(fmt.Sprintf("BPF Filter [%s]", orDefault(app.cfg.BPFFilter, "not set")), "bpf"),
			huh.NewOption(fmt.Sprintf("Start on Boot [%v]", app.cfg.StartOnBoot), "start-on-boot"),
			huh.NewOption(fmt.Sprintf("Suricata Image [%s]", app.suricataImage()), "suricata-image"),
			huh.NewOption(fmt.Sprintf("EveBox Image [%s]", app.eveboxImage()), "evebox-image"),
			huh.NewOption("Edit enable.conf", "enable-conf"),
			huh.NewOption("Edit disable.conf", "disable-conf"),
			huh.NewOption("Return", "return"),
		).
		Value(&action).
		Run()
	if err != nil || action == "return" {
		return screenMain
	}

	applyConfigureAction(ctx, app, sup, action)
	return screenConfigure
}

// applyConfigureAction dispatches one configure-screen selection.
// Split from configureScreen so the edits can be exercised without a
// terminal.
func applyConfigureAction(ctx context.Context, app *appContext, sup *Supervisor, action string) {
	switch action {
	case "interface":
		setInterface(app)
	case "data-directory":
		setDataDirectory(app)
	case "evebox":
		toggleEveBox(ctx, app, sup)
	case "evebox-external":
		toggleEveBoxExternal(ctx, app, sup)
	case "bpf":
		setBPFFilter(app)
	case "start-on-boot":
		toggleStartOnBoot(app)
	case "suricata-image":
		setImage(app, "Suricata image (empty to use the default)", &app.cfg.Suricata.Image)
	case "evebox-image":
		setImage(app, "EveBox image (empty to use the default)", &app.cfg.EveBox.Image)
	case "enable-conf":
		editRuleFile(ctx, app, sup, "enable.conf")
	case "disable-conf":
		editRuleFile(ctx, app, sup, "disable.conf")
	}
}

// setInterface presents the live non-loopback host interfaces and
// requires a selection; there is no free-text entry so a typo cannot
// end up in the configuration.
func setInterface(app *appContext) {
	candidates, err := hostnet.Candidates()
	if err != nil {
		menuError(err)
		pause()
		return
	}
	if len(candidates) == 0 {
		menuError(errors.New("no usable network interfaces found"))
		pause()
		return
	}

	options := make([]huh.Option[string], 0, len(candidates))
	for _, ifc := range candidates {
		options = append(options, huh.NewOption(hostnet.Label(ifc), ifc.Name))
	}

	var selected string
	if err := huh.NewSelect[string]().
		Title("Select capture interface").
		Options(options...).
		Value(&selected).
		Run(); err != nil || selected == "" {
		return
	}
	app.cfg.Interface = selected
	app.saveConfig()
}

// setDataDirectory accepts a path and re-validates writability before
// committing. An empty entry clears the setting.
func setDataDirectory(app *appContext) {
	dir := app.cfg.DataDirectory
	if err := huh.NewInput().
		Title("Data directory (empty to clear)").
		Value(&dir).
		Run(); err != nil {
		return
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		app.cfg.DataDirectory = ""
		app.saveConfig()
		return
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		menuError(fmt.Errorf("bad directory: %w", err))
		pause()
		return
	}
	if err := config.CheckDataDir(abs); err != nil {
		menuError(err)
		pause()
		return
	}
	app.cfg.DataDirectory = abs
	app.saveConfig()
}

func toggleEveBox(ctx context.Context, app *appContext, sup *Supervisor) {
	if app.cfg.EveBox.Enabled {
		app.cfg.EveBox.Enabled = false
		app.saveConfig()
		if app.mgr.Running(ctx, eveboxContainer) {
			if err := stopEveBox(ctx, app, sup); err != nil {
				menuError(err)
				pause()
			}
		}
		return
	}

	if !confirm("EveBox runs without authentication. Enable anyway?") {
		return
	}
	app.cfg.EveBox.Enabled = true
	app.saveConfig()

	// Bring EveBox up immediately if the engine is already capturing.
	if app.mgr.Running(ctx, suricataContainer) && !app.mgr.Running(ctx, eveboxContainer) {
		if err := startEveBox(ctx, app, sup); err != nil {
			menuError(err)
			pause()
		}
	}
}

func toggleEveBoxExternal(ctx context.Context, app *appContext, sup *Supervisor) {
	app.cfg.EveBox.AllowExternal = !app.cfg.EveBox.AllowExternal
	app.saveConfig()

	// The publish binding is fixed at container creation, so a
	// running EveBox must be restarted to apply the change.
	if app.mgr.Running(ctx, eveboxContainer) {
		app.log.Info("restarting evebox to apply access change")
		if err := stopEveBox(ctx, app, sup); err != nil {
			menuError(err)
			pause()
			return
		}
		if err := startEveBox(ctx, app, sup); err != nil {
			menuError(err)
			pause()
		}
	}
}

func setBPFFilter(app *appContext) {
	filter := app.cfg.BPFFilter
	if err := huh.NewInput().
		Title("BPF filter (empty to clear)").
		Value(&filter).
		Run(); err != nil {
		return
	}
	app.cfg.BPFFilter = strings.TrimSpace(filter)
	app.saveConfig()
}

// setImage edits a container image override. An empty entry clears
// the override so the built-in default applies again.
func setImage(app *appContext, title string, image *string) {
	value := *image
	if err := huh.NewInput().
		Title(title).
		Value(&value).
		Run(); err != nil {
		return
	}
	*image = strings.TrimSpace(value)
	app.saveConfig()
}

// ruleTemplateDir is where the Suricata image ships the
// suricata-update starter configs.
const ruleTemplateDir = "/usr/lib/suricata/python/suricata/update/configs"

// editRuleFile opens a rule-tuning file (enable.conf or disable.conf)
// in the operator's editor. A missing file can be seeded from the
// template inside the Suricata image; the result is picked up at the
// next start through the conditional mounts in the launch spec.
func editRuleFile(ctx context.Context, app *appContext, sup *Supervisor, filename string) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if confirm(fmt.Sprintf("%s does not exist. Start with the template from the Suricata image?", filename)) {
			if err := copyRuleTemplate(ctx, app, filename); err != nil {
				menuError(fmt.Errorf("copy %s template: %w", filename, err))
				pause()
				return
			}
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "nano"
	}
	if err := sup.WithSuspended(func() error {
		return app.proc.Interactive(ctx, editor, filename)
	}); err != nil {
		menuError(fmt.Errorf("edit %s with %s: %w", filename, editor, err))
		pause()
	}
}

// copyRuleTemplate extracts the named suricata-update template from a
// throwaway container of the configured Suricata image.
func copyRuleTemplate(ctx context.Context, app *appContext, filename string) error {
	out, err := app.mgr.RunOnce(ctx, app.suricataImage(), "cat", ruleTemplateDir+"/"+filename)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, out, 0o644)
}

func toggleStartOnBoot(app *appContext) {
	if !app.mgr.Engine().SupportsRestartPolicy() {
		menuError(fmt.Errorf("start on boot is not supported with %s", app.mgr.Engine().Name()))
		pause()
		return
	}
	app.cfg.StartOnBoot = !app.cfg.StartOnBoot
	app.saveConfig()
}

func logsScreen(ctx context.Context, app *appContext, sup *Supervisor) screen {
	fmt.Println()
	ux.Title("SentinelLocal - Logs")

	var action string
	err := huh.NewSelect[string]().
		Title("Select menu option").
		Options(
			huh.NewOption("Last 20 lines of Suricata log", "suricata-tail"),
			huh.NewOption("Last 20 lines of EveBox log", "evebox-tail"),
			huh.NewOption("Follow Suricata log", "suricata-follow"),
			huh.NewOption("Follow EveBox log", "evebox-follow"),
			huh.NewOption("EveBox Shell", "evebox-shell"),
			huh.NewOption("Return", "return"),
		).
		Value(&action).
		Run()
	if err != nil || action == "return" {
		return screenMain
	}

	switch action {
	case "suricata-follow", "evebox-follow":
		fmt.Println("Hit CTRL-C to stop following.")
	}
	err = logsAction(ctx, app, sup, action)
	switch action {
	case "suricata-tail", "evebox-tail":
		if err != nil {
			menuError(err)
		}
		pause()
	default:
		// Follows and the shell end at the operator's hand; the
		// child's exit status is not an error worth reporting.
	}
	return screenLogs
}

// logsAction dispatches one logs-screen selection. Following and the
// shell hand the terminal to the engine client, so interrupt handling
// is suspended for their duration: CTRL-C ends the child and lands
// back in this menu.
func logsAction(ctx context.Context, app *appContext, sup *Supervisor, action string) error {
	switch action {
	case "suricata-tail":
		return app.mgr.Logs(ctx, suricataContainer, 20, false)
	case "evebox-tail":
		return app.mgr.Logs(ctx, eveboxContainer, 20, false)
	case "suricata-follow":
		return sup.WithSuspended(func() error {
			return app.mgr.Logs(ctx, suricataContainer, 20, true)
		})
	case "evebox-follow":
		return sup.WithSuspended(func() error {
			return app.mgr.Logs(ctx, eveboxContainer, 20, true)
		})
	case "evebox-shell":
		return sup.WithSuspended(func() error {
			return shell(ctx, app, eveboxContainer, "/bin/sh")
		})
	}
	return nil
}

// runBlocking executes a blocking engine operation behind a spinner.
// The menu loop suspends for the duration; only the process-level
// interrupt handler can cut it short.
func runBlocking(message string, fn func() error) {
	spinner := ux.NewSpinner(message)
	spinner.Start()
	err := fn()
	spinner.Stop()
	if err != nil {
		menuError(err)
		pause()
	}
}

// menuError surfaces an error in the menu without aborting the loop;
// every recoverable failure path funnels through here.
func menuError(err error) {
	ux.Errorf("ERROR: %v", err)
}

func confirm(title string) bool {
	var ok bool
	if err := huh.NewConfirm().Title(title).Value(&ok).Run(); err != nil {
		return false
	}
	return ok
}

// pause waits for ENTER so engine output stays on screen before the
// menu redraws.
func pause() {
	fmt.Print("Press ENTER to continue: ")
	reader := bufio.NewReader(os.Stdin)
	_, _ = reader.ReadString('\n')
}
