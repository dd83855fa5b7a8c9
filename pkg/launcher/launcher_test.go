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

package launcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runners/pkg/library"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	testhelpers "github.com/ZaparooProject/zaparoo-runners/pkg/testing/helpers"
	"github.com/ZaparooProject/zaparoo-runners/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	dataDir  = "/data"
	gameExe  = "/games/hl/hl.exe"
	protonV  = "GE-Proton9-1"
	protonRt = "/data/runners/proton/GE-Proton9-1"
)

var hostEnv = []string{"HOME=/home/player", "LD_LIBRARY_PATH=/usr/lib", "PATH=/usr/bin"}

type fixture struct {
	fs      *testhelpers.FSHelper
	layout  *runners.Layout
	cmd     *mocks.MockCommandExecutor
	clock   *clockwork.FakeClock
	l       *Launcher
	spec    command.Spec
	spawned bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := testhelpers.NewMemoryFS()
	f := &fixture{
		fs:     fs,
		layout: fs.Layout(dataDir),
		cmd:    testhelpers.NewMockCommandExecutor(),
		clock:  clockwork.NewFakeClock(),
	}
	require.NoError(t, fs.CreateFile(gameExe, "MZ", 0o644))
	f.l = New(f.layout, dataDir, f.cmd,
		WithClock(f.clock),
		WithEnviron(func() []string { return hostEnv }),
	)
	return f
}

// expectLaunch makes the next Launch return proc (or err) and records the
// spec it was called with.
func (f *fixture) expectLaunch(proc *mocks.FakeProcess, err error) {
	var ret command.Process
	if proc != nil {
		ret = proc
	}
	f.cmd.On("Launch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.spec, _ = args.Get(1).(command.Spec)
			f.spawned = true
		}).
		Return(ret, err).
		Once()
}

func envMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, _ := strings.Cut(kv, "=")
		out[k] = v
	}
	return out
}

func protonGame() *library.Game {
	return &library.Game{
		Name:          "Half Life",
		Path:          gameExe,
		RunnerType:    "Proton",
		RunnerVersion: protonV,
	}
}

func finish(t *testing.T, s *Session, proc *mocks.FakeProcess, code int) Exit {
	t.Helper()
	proc.Exit(code)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exit, err := s.Wait(ctx)
	require.NoError(t, err)
	return exit
}

func TestLaunch_ProtonEnvironment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.fs.CreateRunner(f.layout, runners.FamilyProton, protonV, "files/bin/wine")
	require.NoError(t, err)

	proc := mocks.NewFakeProcess(4242)
	f.expectLaunch(proc, nil)

	res := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, res.Started)
	assert.Equal(t, "Success", res.Message)
	assert.Equal(t, protonRt+"/files/bin/wine", res.Runner.Path)
	assert.False(t, res.Runner.Fallback)

	assert.Equal(t, protonRt+"/files/bin/wine", f.spec.Name)
	assert.Equal(t, []string{gameExe}, f.spec.Args)
	assert.Equal(t, "/games/hl", f.spec.Dir)

	env := envMap(f.spec.Env)
	prefix := "/data/prefixes/Half_Life"
	assert.Equal(t, prefix, env["WINEPREFIX"])
	assert.Equal(t, protonRt+"/files/lib64:"+protonRt+"/files/lib:/usr/lib", env["LD_LIBRARY_PATH"])
	assert.Equal(t, dataDir, env["STEAM_COMPAT_CLIENT_INSTALL_PATH"])
	assert.Equal(t, prefix, env["STEAM_COMPAT_DATA_PATH"])
	assert.Equal(t, "1", env["PROTON_FORCE_LARGE_ADDRESS_AWARE"])
	assert.Equal(t, "1", env["PROTON_NO_ESYNC"])
	assert.Equal(t, "/home/player", env["HOME"])

	ok, err := afero.DirExists(f.fs.Fs, prefix)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, StateRunning, f.l.State())
	assert.Equal(t, 4242, res.Session.Pid())

	proc.Print("fixme:heap")
	proc.Print("err:module")
	assert.Equal(t, "fixme:heap", <-res.Session.Output())
	assert.Equal(t, "err:module", <-res.Session.Output())

	exit := finish(t, res.Session, proc, 0)
	assert.Equal(t, 0, exit.Code)
	require.NoError(t, exit.Err)
	assert.Equal(t, StateTerminated, res.Session.State())
	assert.Equal(t, StateIdle, f.l.State())

	_, open := <-res.Session.Output()
	assert.False(t, open)
}

func TestLaunch_MissingExecutable(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", "/games/missing.exe", "/games/hl"} {
		f := newFixture(t)
		res := f.l.Launch(context.Background(), protonGame(), path)

		assert.False(t, res.Started, path)
		assert.Equal(t, "Executable path not found!", res.Message)
		assert.Nil(t, res.Session)
		assert.False(t, f.spawned)
		f.cmd.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)

		ok, err := afero.DirExists(f.fs.Fs, "/data/prefixes/Half_Life")
		require.NoError(t, err)
		assert.False(t, ok, "no prefix for a failed launch")
	}
}

func TestLaunch_MissingVersionFallsBackToSystemWine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	game := protonGame()
	game.RunnerVersion = "GE-Proton-does-not-exist"
	res := f.l.Launch(context.Background(), game, gameExe)
	require.True(t, res.Started)

	assert.True(t, res.Runner.Fallback)
	assert.Equal(t, "wine", f.spec.Name)

	env := envMap(f.spec.Env)
	assert.Equal(t, "/data/prefixes/Half_Life", env["WINEPREFIX"])
	assert.Equal(t, "/usr/lib", env["LD_LIBRARY_PATH"])
	assert.NotContains(t, env, "STEAM_COMPAT_DATA_PATH")
	assert.NotContains(t, env, "PROTON_NO_ESYNC")

	finish(t, res.Session, proc, 0)
}

func TestLaunch_SystemRunner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	game := library.NewGame(gameExe)
	res := f.l.Launch(context.Background(), &game, gameExe)
	require.True(t, res.Started)
	assert.Equal(t, "wine", f.spec.Name)
	assert.False(t, res.Runner.Fallback)
	assert.Equal(t, "/data/prefixes/hl", envMap(f.spec.Env)["WINEPREFIX"])

	finish(t, res.Session, proc, 0)
}

func TestLaunch_ProtonWithoutFilesTreeSkipsSteamVars(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.fs.CreateRunner(f.layout, runners.FamilyProton, protonV, "bin/wine")
	require.NoError(t, err)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	res := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, res.Started)
	assert.Equal(t, protonRt+"/bin/wine", f.spec.Name)

	env := envMap(f.spec.Env)
	assert.Equal(t, "/usr/lib", env["LD_LIBRARY_PATH"])
	assert.NotContains(t, env, "STEAM_COMPAT_CLIENT_INSTALL_PATH")

	finish(t, res.Session, proc, 0)
}

func TestLaunch_GameEnvApplied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	game := protonGame()
	game.RunnerType = "Wine"
	game.Env = map[string]string{"DXVK_HUD": "fps", "WINEPREFIX": "/custom"}
	res := f.l.Launch(context.Background(), game, gameExe)
	require.True(t, res.Started)

	env := envMap(f.spec.Env)
	assert.Equal(t, "fps", env["DXVK_HUD"])
	assert.Equal(t, "/custom", env["WINEPREFIX"])

	finish(t, res.Session, proc, 0)
}

func TestLaunch_SpawnFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expectLaunch(nil, errors.New("exec format error"))

	res := f.l.Launch(context.Background(), protonGame(), gameExe)
	assert.False(t, res.Started)
	assert.Equal(t, "Failed to start runner: exec format error", res.Message)
	assert.Nil(t, res.Session)
	assert.Equal(t, StateIdle, f.l.State())

	proc := mocks.NewFakeProcess(2)
	f.expectLaunch(proc, nil)
	res = f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, res.Started)
	finish(t, res.Session, proc, 0)
}

func TestLaunch_RejectsSecondGame(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	first := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, first.Started)

	second := f.l.Launch(context.Background(), protonGame(), gameExe)
	assert.False(t, second.Started)
	assert.Equal(t, "A game is already running", second.Message)
	f.cmd.AssertNumberOfCalls(t, "Launch", 1)

	exit := finish(t, first.Session, proc, 3)
	assert.Equal(t, 3, exit.Code)

	again := mocks.NewFakeProcess(2)
	f.expectLaunch(again, nil)
	third := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, third.Started)
	finish(t, third.Session, again, 0)
}

func TestStop_GracefulTerminate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	f.expectLaunch(proc, nil)

	res := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, res.Started)

	require.NoError(t, f.l.Stop())
	exit, err := res.Session.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, exit.Code)
	assert.Equal(t, StateIdle, f.l.State())
}

func TestStop_EscalatesToKill(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	proc := mocks.NewFakeProcess(1)
	proc.IgnoreTerminate = true
	f.expectLaunch(proc, nil)

	res := f.l.Launch(context.Background(), protonGame(), gameExe)
	require.True(t, res.Started)

	stopped := make(chan error, 1)
	go func() {
		stopped <- res.Session.Stop()
	}()

	<-proc.Terminated()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	select {
	case <-res.Session.Done():
		t.Fatal("process should survive SIGTERM")
	default:
	}

	f.clock.Advance(SIGTERMTimeout)
	require.NoError(t, <-stopped)

	exit := <-res.Session.Done()
	assert.Equal(t, -1, exit.Code)
	assert.Equal(t, SIGTERMTimeout, exit.Duration)
}

func TestStop_NoSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.l.Stop())
}
