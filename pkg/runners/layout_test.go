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

package runners

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	return NewLayout(afero.NewMemMapFs(), "/data/runners", "/data/prefixes")
}

func TestParseFamily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Family
		wantErr bool
	}{
		{input: "", want: FamilySystem},
		{input: "System", want: FamilySystem},
		{input: "wine", want: FamilyWine},
		{input: "Wine", want: FamilyWine},
		{input: " PROTON ", want: FamilyProton},
		{input: "lutris", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFamily(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBinding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultBinding, NewBinding("", "whatever"))
	assert.Equal(t, DefaultBinding, NewBinding("System", "ignored"))
	assert.Equal(t, DefaultBinding, NewBinding("bogus", "v1"))
	assert.Equal(t, Binding{Family: FamilyProton, Version: "GE-Proton9-1"},
		NewBinding("Proton", " GE-Proton9-1 "))
}

func TestIsInstalled_System(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	assert.True(t, l.IsInstalled(FamilySystem, ""))
	assert.True(t, l.IsInstalled(FamilySystem, "anything"))
}

func TestIsInstalled_TracksDirectory(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	assert.False(t, l.IsInstalled(FamilyWine, "10.0"))

	require.NoError(t, l.Fs().MkdirAll("/data/runners/wine/10.0", 0o755))
	assert.True(t, l.IsInstalled(FamilyWine, "10.0"))
	assert.False(t, l.IsInstalled(FamilyProton, "10.0"), "families are separate")

	require.NoError(t, l.Fs().RemoveAll("/data/runners/wine/10.0"))
	assert.False(t, l.IsInstalled(FamilyWine, "10.0"), "no stale cache after removal")
}

func TestIsInstalled_EmptyDirCounts(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	require.NoError(t, l.Fs().MkdirAll("/data/runners/proton/broken", 0o755))
	assert.True(t, l.IsInstalled(FamilyProton, "broken"))
}

func TestIsInstalled_RejectsTraversal(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	require.NoError(t, l.Fs().MkdirAll("/data/runners", 0o755))
	assert.False(t, l.IsInstalled(FamilyWine, ".."))
	assert.False(t, l.IsInstalled(FamilyWine, "../wine"))
	assert.False(t, l.IsInstalled(FamilyWine, ""))
}

func TestInstalled(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	names, err := l.Installed(FamilyWine)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, l.Fs().MkdirAll("/data/runners/wine/b", 0o755))
	require.NoError(t, l.Fs().MkdirAll("/data/runners/wine/a", 0o755))
	require.NoError(t, afero.WriteFile(l.Fs(), "/data/runners/wine/file.tar.xz", []byte("x"), 0o644))

	names, err = l.Installed(FamilyWine)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFindExecutable_ProbeOrder(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	root := "/data/runners/proton/GE-Proton9-1"
	for _, p := range []string{"bin/wine64", "bin/wine", "files/bin/wine"} {
		require.NoError(t, afero.WriteFile(l.Fs(), filepath.Join(root, p), nil, 0o755))
	}

	exe, gotRoot, ok := l.FindExecutable(FamilyProton, "GE-Proton9-1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "files", "bin", "wine"), exe)
	assert.Equal(t, root, gotRoot)

	require.NoError(t, l.Fs().Remove(filepath.Join(root, "files", "bin", "wine")))
	exe, _, ok = l.FindExecutable(FamilyProton, "GE-Proton9-1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "bin", "wine"), exe)

	require.NoError(t, l.Fs().Remove(filepath.Join(root, "bin", "wine")))
	exe, _, ok = l.FindExecutable(FamilyProton, "GE-Proton9-1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "bin", "wine64"), exe)
}

func TestFindExecutable_Missing(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	_, _, ok := l.FindExecutable(FamilyWine, "nonexistent-version")
	assert.False(t, ok)
	_, _, ok = l.FindExecutable(FamilySystem, "")
	assert.False(t, ok)
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Half_Life_2", SanitizeName("Half Life 2"))
	assert.Equal(t, "a_b", SanitizeName("a/b"))
	assert.Equal(t, "_", SanitizeName(".."))
	assert.Equal(t, "_", SanitizeName("   "))
}

func TestEnsurePrefix(t *testing.T) {
	t.Parallel()

	l := newTestLayout(t)
	dir, err := l.EnsurePrefix("My Game")
	require.NoError(t, err)
	assert.Equal(t, "/data/prefixes/My_Game", dir)

	info, err := l.Fs().Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	again, err := l.EnsurePrefix("My Game")
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

// TestPropertyIsInstalledIdempotent verifies repeated checks agree when nothing changes.
func TestPropertyIsInstalledIdempotent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		l := NewLayout(afero.NewMemMapFs(), "/r", "/p")
		name := rapid.StringMatching(`[a-zA-Z0-9_.\-]{1,20}`).Draw(t, "name")
		create := rapid.Bool().Draw(t, "create")
		fam := rapid.SampledFrom([]Family{FamilyWine, FamilyProton}).Draw(t, "family")

		if create && validPathElement(name) {
			if err := l.Fs().MkdirAll(filepath.Join("/r", fam.DirName(), name), 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
		}

		first := l.IsInstalled(fam, name)
		second := l.IsInstalled(fam, name)
		if first != second {
			t.Fatalf("IsInstalled changed without mutation: %v then %v", first, second)
		}
		if first != (create && validPathElement(name)) {
			t.Fatalf("IsInstalled(%q)=%v, created=%v", name, first, create)
		}
	})
}

// TestPropertySanitizeNameSingleElement verifies sanitized names never escape the prefixes root.
func TestPropertySanitizeNameSingleElement(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		s := SanitizeName(name)
		if !validPathElement(s) {
			t.Fatalf("SanitizeName(%q) = %q is not a single path element", name, s)
		}
		if filepath.Dir(filepath.Join("/p", s)) != "/p" {
			t.Fatalf("SanitizeName(%q) = %q escapes root", name, s)
		}
	})
}
