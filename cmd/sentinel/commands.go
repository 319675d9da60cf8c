// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/config"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/process"
	"github.com/AleutianAI/SentinelLocal/cmd/sentinel/internal/infra/runtime"
	"github.com/AleutianAI/SentinelLocal/pkg/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagPodman     bool
	flagVerbose    bool
	flagConfigPath string
	flagFollow     bool

	app *appContext
	sup *Supervisor

	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "Run a containerized Suricata and EveBox sensor",
		Long: `Sentinel installs, configures and supervises a Suricata IDS engine
and an optional EveBox log viewer as containers, using whichever of
Docker or Podman is available on the host. Run with no arguments for
the interactive menu.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runRoot,
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the managed services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startAll(cmd.Context(), app, sup)
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the managed services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopAll(cmd.Context(), app, sup)
		},
	}

	restartCmd = &cobra.Command{
		Use:   "restart",
		Short: "Restart the managed services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return restartAll(cmd.Context(), app, sup)
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show service status; exits non-zero if the IDS engine is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !serviceStatus(cmd.Context(), app) {
				return errors.New("suricata is not running")
			}
			return nil
		},
	}

	updateRulesCmd = &cobra.Command{
		Use:   "update-rules",
		Short: "Run suricata-update inside the running Suricata container",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateRules(cmd.Context(), app)
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Pull the latest Suricata and EveBox container images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateImages(cmd.Context(), app)
		},
	}

	logsCmd = &cobra.Command{
		Use:       "logs [suricata|evebox]",
		Short:     "Show logs from a managed service",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"suricata", "evebox"},
		RunE: func(cmd *cobra.Command, args []string) error {
			container := suricataContainer
			if len(args) == 1 && args[0] == "evebox" {
				container = eveboxContainer
			}
			return app.mgr.Logs(cmd.Context(), container, 20, flagFollow)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagPodman, "podman", false,
		"Use Podman even if Docker is available")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"Path to the configuration file (default ~/.sentinel/sentinel.yaml)")

	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "Follow log output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(updateRulesCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(logsCmd)
}

// setup loads configuration, detects the container engine and builds
// the shared application context. A missing engine is fatal here,
// before any container operation is attempted.
func setup(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if flagVerbose {
		level = logging.LevelDebug
	}
	log := logging.New(logging.Config{Level: level, Service: "cli"})

	cfgPath := flagConfigPath
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, config.ErrCorrupt) {
			// Recoverable: continue with defaults and let the
			// operator reconfigure rather than crashing.
			log.Warn("configuration file is corrupt, starting with defaults", "path", cfgPath, "error", err)
		} else {
			return err
		}
	}

	proc := process.NewExecRunner()
	engine, err := runtime.Detect(cmd.Context(), proc, flagPodman)
	if err != nil {
		return fmt.Errorf("%w (install one and retry)", err)
	}
	log.Info("found container runtime", "engine", engine.Name())

	if engine.Name() == "podman" && os.Geteuid() != 0 {
		log.Warn("podman usually requires running sentinel as root")
	}

	mgr := runtime.NewManager(engine, proc)
	app = newAppContext(cfg, cfgPath, mgr, proc, log)
	sup = NewSupervisor(mgr, log)
	sup.Arm()
	return nil
}

// runRoot enters the interactive menu when attached to a terminal,
// otherwise prints usage so scripted callers get a deliberate
// subcommand surface instead of a hanging prompt.
func runRoot(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return cmd.Help()
	}
	app.interactive = true
	return runMenu(cmd.Context(), app, sup)
}
