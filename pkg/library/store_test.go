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

package library

import (
	"testing"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gamesPath = "/data/games.json"

func openWith(t *testing.T, content string) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if content != "" {
		require.NoError(t, afero.WriteFile(fs, gamesPath, []byte(content), 0o644))
	}
	s, err := Open(fs, gamesPath)
	require.NoError(t, err)
	return s, fs
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, "")
	assert.Empty(t, s.List())
}

func TestOpen_Array(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, `[
		{"name": "Half-Life", "path": "/games/hl.exe", "runner_type": "Proton", "runner_version": "GE-Proton9-1"},
		{"name": "Notepad", "path": "/games/notepad.exe"}
	]`)

	games := s.List()
	require.Len(t, games, 2)
	assert.Equal(t, "Half-Life", games[0].Name)
	assert.Equal(t, "Notepad", games[1].Name)
	assert.NotEmpty(t, games[0].ID)
	assert.NotEqual(t, games[0].ID, games[1].ID)

	assert.Equal(t, runners.Binding{Family: runners.FamilyProton, Version: "GE-Proton9-1"}, games[0].Binding())
	assert.Equal(t, runners.DefaultBinding, games[1].Binding())
}

func TestOpen_LegacyObjectKeepsOrder(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, `{
		"z": {"name": "Zeta", "path": "/z.exe"},
		"a": {"name": "Alpha", "path": "/a.exe"},
		"m": {"name": "Mu", "path": "/m.exe"}
	}`)

	games := s.List()
	require.Len(t, games, 3)
	assert.Equal(t, []string{"Zeta", "Alpha", "Mu"}, []string{games[0].Name, games[1].Name, games[2].Name})
}

func TestOpen_CorruptIsEmpty(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"{not json", `"a string"`, `[{"name": 5}]`} {
		s, _ := openWith(t, content)
		assert.Empty(t, s.List(), content)
	}
}

func TestAdd_PersistsAndReloads(t *testing.T) {
	t.Parallel()

	s, fs := openWith(t, "")
	g := NewGame("/games/My Game.exe")
	g.Env = map[string]string{"DXVK_HUD": "1"}

	added, err := s.Add(g)
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "My Game", added.Name)
	assert.Equal(t, BannerLong, added.BannerType)
	assert.Equal(t, "1.0", added.Version)
	assert.Equal(t, "System", added.RunnerType)

	reloaded, err := Open(fs, gamesPath)
	require.NoError(t, err)
	games := reloaded.List()
	require.Len(t, games, 1)
	assert.Equal(t, added, games[0])
}

func TestAdd_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		game    Game
		message string
	}{
		{name: "missing name", game: Game{Path: "/a.exe"}, message: "name is required"},
		{name: "missing path", game: Game{Name: "A"}, message: "path is required"},
		{
			name:    "bad runner type",
			game:    Game{Name: "A", Path: "/a.exe", RunnerType: "Crossover"},
			message: `runner type "Crossover"`,
		},
		{
			name:    "bad version",
			game:    Game{Name: "A", Path: "/a.exe", RunnerType: "Wine", RunnerVersion: "../x"},
			message: "single path element",
		},
		{
			name:    "bad banner",
			game:    Game{Name: "A", Path: "/a.exe", BannerType: "square"},
			message: "one of: long wide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := openWith(t, "")
			_, err := s.Add(tt.game)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, s.List())
		})
	}
}

func TestGet_ByIDOrName(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, "")
	added, err := s.Add(NewGame("/games/Portal.exe"))
	require.NoError(t, err)

	byID, err := s.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Portal", byID.Name)

	byName, err := s.Get("portal")
	require.NoError(t, err)
	assert.Equal(t, added.ID, byName.ID)

	_, err = s.Get("nothing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_SetBinding(t *testing.T) {
	t.Parallel()

	s, fs := openWith(t, "")
	g, err := s.Add(NewGame("/games/Portal.exe"))
	require.NoError(t, err)

	g.SetBinding(runners.Binding{Family: runners.FamilyWine, Version: "wine-9.0-amd64"})
	require.NoError(t, s.Update(g))

	reloaded, err := Open(fs, gamesPath)
	require.NoError(t, err)
	got, err := reloaded.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wine", got.RunnerType)
	assert.Equal(t, "wine-9.0-amd64", got.RunnerVersion)

	got.SetBinding(runners.DefaultBinding)
	assert.Equal(t, "System", got.RunnerType)
	assert.Empty(t, got.RunnerVersion)

	err = s.Update(Game{ID: "missing", Name: "x", Path: "/x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, "")
	a, err := s.Add(NewGame("/a.exe"))
	require.NoError(t, err)
	b, err := s.Add(NewGame("/b.exe"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(a.ID))
	games := s.List()
	require.Len(t, games, 1)
	assert.Equal(t, b.ID, games[0].ID)

	require.ErrorIs(t, s.Remove(a.ID), ErrNotFound)
}

func TestList_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s, _ := openWith(t, "")
	g := NewGame("/a.exe")
	g.Env = map[string]string{"A": "1"}
	_, err := s.Add(g)
	require.NoError(t, err)

	games := s.List()
	games[0].Name = "changed"
	games[0].Env["A"] = "2"

	again := s.List()
	assert.Equal(t, "a", again[0].Name)
	assert.Equal(t, "1", again[0].Env["A"])
}
