// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/util"
)

func TestExecRunnerRunCapturesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	r := NewExecRunner()

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestExecRunnerRunFailureCarriesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("Run() on failing command succeeded, want error")
	}

	var cmdErr *util.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *util.CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "broken" {
		t.Errorf("Stderr = %q, want %q", cmdErr.Stderr, "broken")
	}
}

func TestExecRunnerRunMissingExecutable(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "sentinel-no-such-binary")
	if err == nil {
		t.Fatal("Run() on missing executable succeeded, want error")
	}

	var cmdErr *util.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *util.CommandError", err)
	}
	if cmdErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for missing executable", cmdErr.ExitCode)
	}
}

func TestMockRunnerRecordsCalls(t *testing.T) {
	mock := &MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("ok"), nil
		},
		InteractiveFunc: func(ctx context.Context, name string, args ...string) error {
			return nil
		},
	}

	if _, err := mock.Run(context.Background(), "docker", "version"); err != nil {
		t.Fatal(err)
	}
	if err := mock.Interactive(context.Background(), "docker", "pull", "img"); err != nil {
		t.Fatal(err)
	}

	calls := mock.GetCalls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if calls[0].Method != "Run" || calls[0].Name != "docker" || calls[0].Args[0] != "version" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].Method != "Interactive" || calls[1].Args[1] != "img" {
		t.Errorf("second call = %+v", calls[1])
	}

	mock.Reset()
	if got := len(mock.GetCalls()); got != 0 {
		t.Errorf("calls after Reset = %d, want 0", got)
	}
}

func TestMockRunnerGetCallsReturnsCopy(t *testing.T) {
	mock := &MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}
	mock.Run(context.Background(), "podman", "ps")

	calls := mock.GetCalls()
	calls[0].Name = "mutated"

	if mock.GetCalls()[0].Name != "podman" {
		t.Error("GetCalls() exposed internal slice")
	}
}
