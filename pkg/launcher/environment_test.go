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
	"testing"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	testhelpers "github.com/ZaparooProject/zaparoo-runners/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvironment_KeepsOrderLastWins(t *testing.T) {
	t.Parallel()

	env := NewEnvironment([]string{"B=1", "A=2", "B=3", "broken", "=x", "EMPTY="})
	assert.Equal(t, []string{"B", "A", "EMPTY"}, env.Keys())
	assert.Equal(t, []string{"B=3", "A=2", "EMPTY="}, env.Slice())

	v, ok := env.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestPrependPath(t *testing.T) {
	t.Parallel()

	env := NewEnvironment(nil)
	env.PrependPath("LD_LIBRARY_PATH", "/a", "/b")
	assert.Equal(t, "/a:/b", env.Get("LD_LIBRARY_PATH"), "no trailing separator when unset")

	env.PrependPath("LD_LIBRARY_PATH", "/c")
	assert.Equal(t, "/c:/a:/b", env.Get("LD_LIBRARY_PATH"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	fs := testhelpers.NewMemoryFS()
	layout := fs.Layout("/data")
	_, err := fs.CreateRunner(layout, runners.FamilyWine, "wine-9.0", "bin/wine64")
	require.NoError(t, err)
	_, err = fs.CreateRunner(layout, runners.FamilyWine, "empty", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		binding runners.Binding
		want    Resolution
	}{
		{
			name:    "system",
			binding: runners.DefaultBinding,
			want:    Resolution{Path: "wine"},
		},
		{
			name:    "no version",
			binding: runners.Binding{Family: runners.FamilyWine},
			want:    Resolution{Path: "wine"},
		},
		{
			name:    "installed wine64",
			binding: runners.Binding{Family: runners.FamilyWine, Version: "wine-9.0"},
			want: Resolution{
				Path: "/data/runners/wine/wine-9.0/bin/wine64",
				Root: "/data/runners/wine/wine-9.0",
			},
		},
		{
			name:    "installed but no binary",
			binding: runners.Binding{Family: runners.FamilyWine, Version: "empty"},
			want:    Resolution{Path: "wine", Fallback: true},
		},
		{
			name:    "not installed",
			binding: runners.Binding{Family: runners.FamilyProton, Version: "GE-Proton1-1"},
			want:    Resolution{Path: "wine", Fallback: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Resolve(layout, tt.binding))
		})
	}
}
