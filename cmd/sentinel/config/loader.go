// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config persists the sentinel configuration as versioned
// YAML under ~/.sentinel.
//
// Saves are atomic (write-temp-then-rename) so a crash mid-write
// never corrupts the previously valid file. The file is only ever
// written by a single interactive sentinel process; concurrent
// invocations are a documented unsupported use and no file locking
// is attempted.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrCorrupt is returned by Load when the config file exists but
	// cannot be parsed. Callers fall back to defaults and prompt the
	// operator to reconfigure rather than crashing.
	ErrCorrupt = errors.New("configuration file is corrupt")

	// ErrIncomplete is returned by Validate when the interface or
	// data directory is unset or unusable. Recoverable: it blocks
	// Start only.
	ErrIncomplete = errors.New("configuration incomplete")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration at path. A missing file is not an
// error: the defaults are returned so first runs work without any
// setup. A present but unparseable file returns ErrCorrupt.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if cfg.Meta.Version == "" {
		cfg.Meta.Version = CurrentConfigVersion
	}
	return cfg, nil
}

// Save writes the configuration atomically: marshal to a temp file in
// the target directory, fsync, then rename over the old file. The
// parent directory is created on first save.
func Save(path string, cfg Config) error {
	cfg.Meta.Version = CurrentConfigVersion

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}

	// Temp file must be on the same filesystem as the target for the
	// rename to be atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is complete enough to start
// the managed services: interface and data directory set, and the
// data directory present and writable. The directory is created if
// missing so a fresh path typed into the menu just works.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		missing := []string{}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				switch fe.Field() {
				case "Interface":
					missing = append(missing, "interface")
				case "DataDirectory":
					missing = append(missing, "data directory")
				}
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v not set", ErrIncomplete, missing)
		}
		return fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	if err := CheckDataDir(cfg.DataDirectory); err != nil {
		return fmt.Errorf("%w: %v", ErrIncomplete, err)
	}
	return nil
}

// CheckDataDir verifies that dir is an absolute, writable directory,
// creating it if missing. Used by Validate and by the menu when the
// operator edits the data directory, so a bad path is rejected before
// it is committed.
func CheckDataDir(dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("data directory %q is not absolute", dir)
	}
	if err := ensureWritableDir(dir); err != nil {
		return fmt.Errorf("data directory %s: %w", dir, err)
	}
	return nil
}

// ensureWritableDir creates dir if needed and verifies we can create
// files in it. Stat alone is not enough: mode bits lie on root
// squashed NFS and similar mounts, so probe with a real create.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o2750); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".sentinel-probe-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
