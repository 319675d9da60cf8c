// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

// CurrentConfigVersion is written to meta.version on save. Bump when
// the on-disk schema changes incompatibly.
const CurrentConfigVersion = "1"

// Config is the persisted sentinel configuration. The interface and
// data directory must be set before the managed services may start;
// everything else has a usable default.
type Config struct {
	Meta MetaConfig `yaml:"meta"`

	// Interface is the host network interface Suricata monitors.
	Interface string `yaml:"interface,omitempty" validate:"required"`

	// DataDirectory is the absolute host path bind-mounted into the
	// containers for logs and the EveBox event database.
	DataDirectory string `yaml:"data-directory,omitempty" validate:"required"`

	// BPFFilter is an optional capture filter passed to Suricata.
	BPFFilter string `yaml:"bpf-filter,omitempty"`

	// StartOnBoot applies a restart policy so containers come back
	// after a host reboot. Docker only.
	StartOnBoot bool `yaml:"start-on-boot"`

	Suricata SuricataConfig `yaml:"suricata"`
	EveBox   EveBoxConfig   `yaml:"evebox"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type SuricataConfig struct {
	// Image overrides the default Suricata container image.
	Image string `yaml:"image,omitempty"`
}

type EveBoxConfig struct {
	// Enabled toggles the EveBox log-viewer container.
	Enabled bool `yaml:"enabled"`

	// AllowExternal binds the EveBox web UI to 0.0.0.0 instead of
	// loopback. EveBox runs without authentication, so this is off
	// by default.
	AllowExternal bool `yaml:"allow-external"`

	// Image overrides the default EveBox container image.
	Image string `yaml:"image,omitempty"`
}

// DefaultConfig returns the configuration used on first run. The
// interface is left unset on purpose: picking a capture interface for
// the operator would silently monitor the wrong network.
func DefaultConfig() Config {
	return Config{
		Meta: MetaConfig{Version: CurrentConfigVersion},
	}
}

// DefaultPath returns the standard config location,
// ~/.sentinel/sentinel.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sentinel", "sentinel.yaml"), nil
}
