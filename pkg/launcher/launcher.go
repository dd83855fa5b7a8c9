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

// Package launcher starts games under their selected runner with a wine
// prefix and, for Proton builds, the Steam compatibility environment.
package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-runners/pkg/library"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	MsgStarted        = "Success"
	MsgPathNotFound   = "Executable path not found!"
	MsgAlreadyRunning = "A game is already running"
	msgSpawnFailed    = "Failed to start runner: %v"
	msgPrefixFailed   = "Failed to create prefix: %v"
)

// Result is the outcome of a launch request. Failures are reported here
// rather than as errors since they are shown to the user as is.
type Result struct {
	Session *Session
	Message string
	Runner  Resolution
	Started bool
}

// Launcher runs one game at a time.
type Launcher struct {
	layout  *runners.Layout
	exec    command.Executor
	clock   clockwork.Clock
	environ func() []string
	session *Session
	dataDir string
	mu      syncutil.Mutex
}

type Option func(*Launcher)

// WithClock replaces the clock used for stop timeouts and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Launcher) {
		l.clock = clock
	}
}

// WithEnviron replaces the source of the host environment.
func WithEnviron(environ func() []string) Option {
	return func(l *Launcher) {
		l.environ = environ
	}
}

// New creates a launcher. dataDir is exported to Proton as the Steam
// client install path and is made absolute.
func New(layout *runners.Layout, dataDir string, exec command.Executor, opts ...Option) *Launcher {
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	l := &Launcher{
		layout:  layout,
		dataDir: dataDir,
		exec:    exec,
		clock:   clockwork.NewRealClock(),
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Active returns the running session, if any.
func (l *Launcher) Active() (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil, false
	}
	return l.session, true
}

// State is the state of the current session, idle when there is none.
func (l *Launcher) State() State {
	s, ok := l.Active()
	if !ok {
		return StateIdle
	}
	return s.State()
}

// Launch starts the game at executablePath under the game's runner. The
// game's path field is not consulted so callers can launch a different
// file from the same record.
func (l *Launcher) Launch(ctx context.Context, game *library.Game, executablePath string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session != nil {
		return Result{Message: MsgAlreadyRunning}
	}

	exe, ok := l.findExecutable(executablePath)
	if !ok {
		log.Warn().Msgf("executable not found: %q", executablePath)
		return Result{Message: MsgPathNotFound}
	}

	binding := game.Binding()
	res := Resolve(l.layout, binding)

	prefix, err := l.layout.EnsurePrefix(game.Name)
	if err != nil {
		log.Error().Err(err).Msgf("failed to create prefix for %s", game.Name)
		return Result{Message: fmt.Sprintf(msgPrefixFailed, err), Runner: res}
	}

	env := BuildEnvironment(EnvironmentArgs{
		Host:       l.environ(),
		Binding:    binding,
		Resolution: res,
		DataDir:    l.dataDir,
		Prefix:     prefix,
		Extra:      game.Env,
	})

	session := newSession(game.Name, l.clock)
	log.Info().
		Str("game", game.Name).
		Str("runner", res.Path).
		Bool("fallback", res.Fallback).
		Str("prefix", prefix).
		Msg("launching game")

	proc, err := l.exec.Launch(ctx, command.Spec{
		Name: res.Path,
		Args: []string{exe},
		Dir:  filepath.Dir(exe),
		Env:  env.Slice(),
	})
	if err != nil {
		session.setState(StateIdle)
		log.Error().Err(err).Msgf("failed to start runner for %s", game.Name)
		return Result{Message: fmt.Sprintf(msgSpawnFailed, err), Runner: res}
	}

	l.session = session
	session.start(proc, func() { l.release(session) })

	return Result{
		Started: true,
		Message: MsgStarted,
		Session: session,
		Runner:  res,
	}
}

// Stop ends the running game, if any.
func (l *Launcher) Stop() error {
	s, ok := l.Active()
	if !ok {
		return nil
	}
	return s.Stop()
}

// release returns the launcher to idle once its session has exited.
func (l *Launcher) release(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == s {
		l.session = nil
	}
}

func (l *Launcher) findExecutable(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := l.layout.Fs().Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}
