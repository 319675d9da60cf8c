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
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/process"
)

func TestNextScreen(t *testing.T) {
	tests := []struct {
		action string
		want   screen
	}{
		{actionConfigure, screenConfigure},
		{actionLogs, screenLogs},
		{actionQuit, screenExit},
		{actionStart, screenMain},
		{actionStop, screenMain},
		{actionRestart, screenMain},
		{actionUpdateRules, screenMain},
		{actionShell, screenMain},
		{actionRotate, screenMain},
		{actionUpdate, screenMain},
	}
	for _, tt := range tests {
		if got := nextScreen(tt.action); got != tt.want {
			t.Errorf("nextScreen(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestQuitNeedsConfirm(t *testing.T) {
	tests := []struct {
		action  string
		running bool
		want    bool
	}{
		{actionQuit, true, true},
		{actionQuit, false, false},
		{actionStart, true, false},
		{actionConfigure, true, false},
	}
	for _, tt := range tests {
		if got := quitNeedsConfirm(tt.action, tt.running); got != tt.want {
			t.Errorf("quitNeedsConfirm(%q, %v) = %v, want %v", tt.action, tt.running, got, tt.want)
		}
	}
}

func TestLogsActionDispatch(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		wantArgs []string
	}{
		{
			"suricata tail",
			"suricata-tail",
			[]string{"logs", "--tail=20", suricataContainer},
		},
		{
			"evebox tail",
			"evebox-tail",
			[]string{"logs", "--tail=20", eveboxContainer},
		},
		{
			"suricata follow",
			"suricata-follow",
			[]string{"logs", "--tail=20", "--follow", suricataContainer},
		},
		{
			"evebox shell",
			"evebox-shell",
			[]string{"exec", "-it", "-e", `PS1=[\u@` + eveboxContainer + ` \W]\$ `, eveboxContainer, "/bin/sh"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &process.MockRunner{
				InteractiveFunc: func(ctx context.Context, name string, args ...string) error {
					return nil
				},
			}
			app := newTestApp(t, &fakeEngine{name: "docker"}, proc)
			sup := NewSupervisor(app.mgr, app.log)

			if err := logsAction(context.Background(), app, sup, tt.action); err != nil {
				t.Fatalf("logsAction(%q) failed: %v", tt.action, err)
			}

			calls := proc.GetCalls()
			if len(calls) != 1 {
				t.Fatalf("%d engine calls, want 1", len(calls))
			}
			if !slices.Equal(calls[0].Args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", calls[0].Args, tt.wantArgs)
			}
		})
	}
}

// Toggling external access on a running EveBox restarts it, and the
// replacement container publishes on all interfaces.
func TestToggleEveBoxExternalRestartsRunningViewer(t *testing.T) {
	var mu sync.Mutex
	running := map[string]bool{eveboxContainer: true}
	proc := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			switch args[0] {
			case "inspect":
				if running[args[1]] {
					return []byte(`[{"State":{"Running":true}}]`), nil
				}
				return nil, notRunningError()
			case "stop":
				running[args[len(args)-1]] = false
				return nil, nil
			case "rm":
				return nil, nil
			case "run":
				running[args[3]] = true
				return []byte("abc123\n"), nil
			}
			return nil, nil
		},
	}
	app := newTestApp(t, &fakeEngine{name: "docker"}, proc)
	app.cfg.EveBox.Enabled = true
	sup := NewSupervisor(app.mgr, app.log)

	applyConfigureAction(context.Background(), app, sup, "evebox-external")

	if !app.cfg.EveBox.AllowExternal {
		t.Fatal("AllowExternal not toggled")
	}

	var lastRun []string
	for _, call := range proc.GetCalls() {
		if call.Method == "Run" && call.Args[0] == "run" {
			lastRun = call.Args
		}
	}
	if lastRun == nil {
		t.Fatal("running evebox was not restarted")
	}
	if !slices.ContainsFunc(lastRun, func(arg string) bool {
		return strings.HasPrefix(arg, "--publish=0.0.0.0:")
	}) {
		t.Errorf("restarted evebox not published externally: %v", lastRun)
	}
}

// A stopped EveBox only gets its setting flipped; nothing is started.
func TestToggleEveBoxExternalStoppedViewer(t *testing.T) {
	proc := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, notRunningError()
		},
	}
	app := newTestApp(t, &fakeEngine{name: "docker"}, proc)
	sup := NewSupervisor(app.mgr, app.log)

	applyConfigureAction(context.Background(), app, sup, "evebox-external")

	if !app.cfg.EveBox.AllowExternal {
		t.Fatal("AllowExternal not toggled")
	}
	for _, call := range proc.GetCalls() {
		if call.Args[0] == "run" {
			t.Errorf("container started for a stopped viewer: %v", call.Args)
		}
	}
}

func TestToggleStartOnBoot(t *testing.T) {
	tests := []struct {
		name          string
		restartPolicy bool
		want          bool
	}{
		{"supported engine toggles", true, true},
		{"unsupported engine rejects", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &process.MockRunner{
				RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
					return nil, notRunningError()
				},
			}
			app := newTestApp(t, &fakeEngine{name: "x", restartPolicy: tt.restartPolicy}, proc)
			sup := NewSupervisor(app.mgr, app.log)

			applyConfigureAction(context.Background(), app, sup, "start-on-boot")

			if app.cfg.StartOnBoot != tt.want {
				t.Errorf("StartOnBoot = %v, want %v", app.cfg.StartOnBoot, tt.want)
			}
		})
	}
}

// Disabling EveBox through the configure screen also stops a running
// viewer.
func TestDisableEveBoxStopsRunningViewer(t *testing.T) {
	var mu sync.Mutex
	running := map[string]bool{eveboxContainer: true}
	proc := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			switch args[0] {
			case "inspect":
				if running[args[1]] {
					return []byte(`[{"State":{"Running":true}}]`), nil
				}
				return nil, notRunningError()
			case "stop":
				running[args[len(args)-1]] = false
				return nil, nil
			}
			return nil, nil
		},
	}
	app := newTestApp(t, &fakeEngine{name: "docker"}, proc)
	app.cfg.EveBox.Enabled = true
	sup := NewSupervisor(app.mgr, app.log)
	sup.Track(eveboxContainer)

	applyConfigureAction(context.Background(), app, sup, "evebox")

	if app.cfg.EveBox.Enabled {
		t.Fatal("EveBox still enabled")
	}
	if running[eveboxContainer] {
		t.Error("running viewer was not stopped")
	}
	if slices.Contains(sup.Tracked(), eveboxContainer) {
		t.Error("stopped viewer still tracked")
	}
}

func TestCopyRuleTemplate(t *testing.T) {
	t.Chdir(t.TempDir())

	proc := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("# suricata-update enable.conf template\n"), nil
		},
	}
	app := newTestApp(t, &fakeEngine{name: "docker"}, proc)

	if err := copyRuleTemplate(context.Background(), app, "enable.conf"); err != nil {
		t.Fatalf("copyRuleTemplate() failed: %v", err)
	}

	data, err := os.ReadFile("enable.conf")
	if err != nil {
		t.Fatalf("template file not written: %v", err)
	}
	if !strings.Contains(string(data), "enable.conf template") {
		t.Errorf("template contents = %q", data)
	}

	calls := proc.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("%d engine calls, want 1", len(calls))
	}
	want := []string{"run", "--rm", defaultSuricataImage, "cat", ruleTemplateDir + "/enable.conf"}
	if !slices.Equal(calls[0].Args, want) {
		t.Errorf("args = %v, want %v", calls[0].Args, want)
	}
}
