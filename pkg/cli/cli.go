// Zaparoo Runners
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runners.
//
// Zaparoo Runners is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runners is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runners.  If not, see <http://www.gnu.org/licenses/>.

// Package cli wires the runner subsystem to command line flags.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-runners/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/ZaparooProject/zaparoo-runners/pkg/config/migrate"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	List      *string
	Install   *string
	Add       *string
	SetRunner *string
	Launch    *string
	Games     *bool
	Version   *bool
	Verbose   *bool
}

// SetupFlags defines all CLI flags.
func SetupFlags() *Flags {
	return &Flags{
		List: flag.String(
			"list",
			"",
			"list available versions of a runner family (wine, proton)",
		),
		Install: flag.String(
			"install",
			"",
			"install a runner version, as <family>:<version>",
		),
		Games: flag.Bool(
			"games",
			false,
			"list games in the library",
		),
		Add: flag.String(
			"add",
			"",
			"add a Windows executable to the library",
		),
		SetRunner: flag.String(
			"set-runner",
			"",
			"select a game's runner, as <game>=<family>[:<version>]",
		),
		Launch: flag.String(
			"launch",
			"",
			"launch a game by ID or name",
		),
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Verbose: flag.Bool(
			"verbose",
			false,
			"also write logs to stderr",
		),
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses flags and handles the ones that need no setup. Add any custom
// flags before running this.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("Zaparoo Runners v%s\n", config.AppVersion)
		os.Exit(0)
	}
}

// LogWriters returns the extra log outputs selected by flags.
func (f *Flags) LogWriters() []io.Writer {
	if f.Verbose != nil && *f.Verbose {
		return []io.Writer{os.Stderr}
	}
	return nil
}

// Post runs the action selected by flags against the app. It returns
// false when no action flag was passed.
func (f *Flags) Post(ctx context.Context, app *App) (bool, error) {
	switch {
	case isFlagPassed("list"):
		return true, app.ListVersions(ctx, *f.List)
	case isFlagPassed("install"):
		if *f.Install == "" {
			return true, errors.New("install flag requires a value")
		}
		return true, app.Install(ctx, *f.Install)
	case *f.Games:
		return true, app.ListGames()
	case isFlagPassed("add"):
		if *f.Add == "" {
			return true, errors.New("add flag requires a value")
		}
		return true, app.AddGame(*f.Add)
	case isFlagPassed("set-runner"):
		return true, app.SetRunner(*f.SetRunner)
	case isFlagPassed("launch"):
		if *f.Launch == "" {
			return true, errors.New("launch flag requires a value")
		}
		return true, app.LaunchGame(ctx, *f.Launch)
	default:
		return false, nil
	}
}

// Setup creates the app directories, starts logging, imports legacy
// settings, loads the config and starts error reporting when enabled.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	paths helpers.Paths,
	defaultConfig config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	// Ensure directories exist before logging initialization
	err := paths.EnsureDirectories()
	if err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	err = helpers.InitLogging(paths.TempDir, writers)
	if err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	legacyPath := filepath.Join(paths.DataDir, config.LegacySettings)
	tomlPath := filepath.Join(paths.ConfigDir, config.CfgFile)
	if migrate.Required(legacyPath, tomlPath) {
		if err := migrate.Migrate(legacyPath, tomlPath); err != nil {
			log.Error().Err(err).Msg("failed to migrate legacy settings")
		}
	}

	cfg, err := config.NewConfig(paths.ConfigDir, defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Initialize error reporting (opt-in)
	if err := telemetry.Init(cfg, cfg.DataDir(paths.DataDir)); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
