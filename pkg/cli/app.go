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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runners/pkg/launcher"
	"github.com/ZaparooProject/zaparoo-runners/pkg/library"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners/catalog"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners/installer"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners/tasks"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrVersionNotFound is returned when a requested version is not in the
// family's release feed.
var ErrVersionNotFound = errors.New("version not found")

// App holds the runner subsystem for one CLI invocation.
type App struct {
	fs          afero.Fs
	out         io.Writer
	exec        command.Executor
	catalog     tasks.Catalog
	layout      *runners.Layout
	library     *library.Store
	coordinator *tasks.Coordinator
	launcher    *launcher.Launcher
	dataDir     string
}

type AppOption func(*App)

// WithFs replaces the filesystem used for runners, prefixes and the
// library.
func WithFs(fs afero.Fs) AppOption {
	return func(a *App) {
		a.fs = fs
	}
}

// WithOutput replaces where command output is printed.
func WithOutput(w io.Writer) AppOption {
	return func(a *App) {
		a.out = w
	}
}

// WithExecutor replaces the process starter used to launch games.
func WithExecutor(exec command.Executor) AppOption {
	return func(a *App) {
		a.exec = exec
	}
}

// WithCatalog replaces the release feed client.
func WithCatalog(cat tasks.Catalog) AppOption {
	return func(a *App) {
		a.catalog = cat
	}
}

// NewApp opens the library and creates the runner directories under the
// configured data dir. Background installs run until ctx ends.
func NewApp(ctx context.Context, cfg *config.Instance, dataDir string, opts ...AppOption) (*App, error) {
	a := &App{
		fs:      afero.NewOsFs(),
		out:     os.Stdout,
		exec:    &command.RealExecutor{},
		dataDir: cfg.DataDir(dataDir),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.catalog == nil {
		a.catalog = catalog.NewClientFromConfig(cfg)
	}

	a.layout = runners.NewLayout(a.fs, cfg.RunnersDir(a.dataDir), cfg.PrefixesDir(a.dataDir))
	if err := a.layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create runner directories: %w", err)
	}

	store, err := library.Open(a.fs, filepath.Join(a.dataDir, config.GamesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	a.library = store

	a.coordinator = tasks.NewCoordinator(ctx, installer.New(a.layout, nil), a.catalog, a.layout)
	a.launcher = launcher.New(a.layout, a.dataDir, a.exec)
	return a, nil
}

// Close waits for background work started by the app.
func (a *App) Close() {
	a.coordinator.Wait()
}

// ListVersions prints a family's versions, marking installed ones.
func (a *App) ListVersions(ctx context.Context, family string) error {
	fam, err := runners.ParseFamily(family)
	if err != nil {
		return err //nolint:wrapcheck // message names the family
	}
	if !fam.NeedsInstall() {
		_, _ = fmt.Fprintf(a.out, "%s uses the host %s binary\n", fam, runners.SystemExecutable)
		return nil
	}

	entries := <-a.coordinator.Fetch(ctx, fam)
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(a.out, "No %s versions available\n", fam)
		return nil
	}
	for _, e := range entries {
		marker := " "
		if e.Installed {
			marker = "*"
		}
		_, _ = fmt.Fprintf(a.out, "%s %s\n", marker, e.Name)
	}
	return nil
}

// parseTarget splits "<family>:<version>".
func parseTarget(s string) (runners.Family, string, error) {
	famStr, version, _ := strings.Cut(s, ":")
	fam, err := runners.ParseFamily(famStr)
	if err != nil {
		return "", "", err //nolint:wrapcheck // message names the family
	}
	version = strings.TrimSpace(version)
	if fam.NeedsInstall() && version == "" {
		return "", "", fmt.Errorf("%s requires a version", fam)
	}
	return fam, version, nil
}

// Install downloads a version named as "<family>:<version>" and prints
// its progress until it finishes.
func (a *App) Install(ctx context.Context, target string) error {
	fam, name, err := parseTarget(target)
	if err != nil {
		return err
	}
	if !fam.NeedsInstall() {
		return fmt.Errorf("%s runner cannot be installed", fam)
	}
	if a.layout.IsInstalled(fam, name) {
		_, _ = fmt.Fprintf(a.out, "%s %s is already installed\n", fam, name)
		return nil
	}

	var version runners.Version
	found := false
	for _, v := range a.catalog.ListVersions(ctx, fam) {
		if v.Name == name {
			version, found = v, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s %s", ErrVersionNotFound, fam, name)
	}

	task := a.coordinator.Install(fam, version)
	events, id := task.Subscribe(tasks.DefaultBufferSize)
	defer task.Unsubscribe(id)

	lastPercent := -1
	for e := range events {
		switch e.Kind {
		case runners.EventProgress:
			// one line per 10% is enough for a terminal
			if e.Percent/10 != lastPercent/10 || e.Percent == 100 {
				_, _ = fmt.Fprintf(a.out, "  %d%%\n", e.Percent)
			}
			lastPercent = e.Percent
		case runners.EventStatus, runners.EventCompleted:
			_, _ = fmt.Fprintln(a.out, e.Text)
		case runners.EventFailed:
			if e.Err != nil {
				return e.Err
			}
			return errors.New(e.Text)
		}
	}
	return nil
}

// ListGames prints every game in the library with its runner.
func (a *App) ListGames() error {
	games := a.library.List()
	if len(games) == 0 {
		_, _ = fmt.Fprintln(a.out, "No games in library")
		return nil
	}
	for _, g := range games {
		b := g.Binding()
		runner := b.Family.String()
		if b.Version != "" {
			runner += " " + b.Version
		}
		_, _ = fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", g.ID, g.Name, runner, g.Path)
	}
	return nil
}

// AddGame adds an executable to the library with default settings.
func (a *App) AddGame(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := a.fs.Stat(abs)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%s: %s", launcher.MsgPathNotFound, abs)
	}

	g, err := a.library.Add(library.NewGame(abs))
	if err != nil {
		return err //nolint:wrapcheck // validation errors are user facing
	}
	_, _ = fmt.Fprintf(a.out, "Added %s (%s)\n", g.Name, g.ID)
	return nil
}

// SetRunner changes a game's runner, given as
// "<game>=<family>[:<version>]". A version that is not installed is kept
// and falls back to the system runner until it is.
func (a *App) SetRunner(arg string) error {
	i := strings.LastIndex(arg, "=")
	if i <= 0 {
		return fmt.Errorf("invalid runner selection: %q", arg)
	}
	fam, version, err := parseTarget(arg[i+1:])
	if err != nil {
		return err
	}

	g, err := a.library.Get(arg[:i])
	if err != nil {
		return err //nolint:wrapcheck // not found names the game
	}
	g.SetBinding(runners.Binding{Family: fam, Version: version})
	if err := a.library.Update(g); err != nil {
		return err //nolint:wrapcheck // validation errors are user facing
	}

	b := g.Binding()
	if b.Family.NeedsInstall() {
		_, _ = fmt.Fprintf(a.out, "%s will use %s %s\n", g.Name, b.Family, b.Version)
		if !a.layout.IsInstalled(b.Family, b.Version) {
			_, _ = fmt.Fprintf(a.out, "%s %s is not installed, the system runner is used until it is\n",
				b.Family, b.Version)
		}
	} else {
		_, _ = fmt.Fprintf(a.out, "%s will use the system runner\n", g.Name)
	}
	return nil
}

// LaunchGame starts a game and prints its output until it exits. Ending
// ctx stops the game.
func (a *App) LaunchGame(ctx context.Context, ref string) error {
	g, err := a.library.Get(ref)
	if err != nil {
		return err //nolint:wrapcheck // not found names the game
	}

	res := a.launcher.Launch(ctx, &g, g.Path)
	if !res.Started {
		return errors.New(res.Message)
	}
	_, _ = fmt.Fprintf(a.out, "Launching %s with %s\n", g.Name, res.Runner.Path)

	session := res.Session
	output := session.Output()
	cancelled := ctx.Done()
	for {
		select {
		case line, ok := <-output:
			if !ok {
				output = nil
				continue
			}
			_, _ = fmt.Fprintln(a.out, line)
		case exit := <-session.Done():
			if output != nil {
				for line := range output {
					_, _ = fmt.Fprintln(a.out, line)
				}
			}
			_, _ = fmt.Fprintf(a.out, "%s exited with code %d after %s\n",
				g.Name, exit.Code, exit.Duration.Round(time.Second))
			return exit.Err
		case <-cancelled:
			cancelled = nil
			log.Info().Msgf("stopping %s", g.Name)
			if err := a.launcher.Stop(); err != nil {
				log.Error().Err(err).Msg("failed to stop game")
			}
		}
	}
}
