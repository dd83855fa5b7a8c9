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

//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-runners/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-runners/pkg/cli"
	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()
	flags.Pre()

	if os.Geteuid() == 0 {
		return errors.New("zaparoo runners cannot be run as root")
	}

	paths := helpers.DefaultPaths()
	cfg, err := cli.Setup(paths, config.BaseDefaults, flags.LogWriters())
	if err != nil {
		return err
	}
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, paths.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("error starting runners")
		return fmt.Errorf("error starting runners: %w", err)
	}
	defer app.Close()

	handled, err := flags.Post(ctx, app)
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		return err
	}
	if !handled {
		flag.Usage()
	}
	return nil
}
