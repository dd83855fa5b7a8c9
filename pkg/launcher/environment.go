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
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
)

const (
	EnvWinePrefix      = "WINEPREFIX"
	EnvLibraryPath     = "LD_LIBRARY_PATH"
	EnvSteamClientPath = "STEAM_COMPAT_CLIENT_INSTALL_PATH"
	EnvSteamDataPath   = "STEAM_COMPAT_DATA_PATH"
	EnvProtonLargeAddr = "PROTON_FORCE_LARGE_ADDRESS_AWARE"
	EnvProtonNoEsync   = "PROTON_NO_ESYNC"
)

// Environment is an ordered set of variables. Setting an existing key
// keeps its position.
type Environment struct {
	values map[string]string
	keys   []string
}

// NewEnvironment parses KEY=VALUE pairs, as returned by os.Environ. Later
// duplicates win.
func NewEnvironment(pairs []string) *Environment {
	env := &Environment{values: make(map[string]string, len(pairs))}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env.Set(k, v)
	}
	return env
}

func (e *Environment) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *Environment) Get(key string) string {
	return e.values[key]
}

func (e *Environment) Lookup(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// PrependPath puts dirs in front of a colon separated list variable.
func (e *Environment) PrependPath(key string, dirs ...string) {
	parts := append([]string{}, dirs...)
	if prev := e.values[key]; prev != "" {
		parts = append(parts, prev)
	}
	e.Set(key, strings.Join(parts, string(filepath.ListSeparator)))
}

func (e *Environment) Keys() []string {
	return append([]string{}, e.keys...)
}

// Slice returns KEY=VALUE pairs in insertion order.
func (e *Environment) Slice() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// EnvironmentArgs are the inputs to BuildEnvironment.
type EnvironmentArgs struct {
	Extra   map[string]string
	Binding runners.Binding
	// DataDir is the application data directory, used as the Steam client
	// install path for Proton.
	DataDir string
	// Prefix is the game's wine prefix directory.
	Prefix     string
	Host       []string
	Resolution Resolution
}

// BuildEnvironment derives a launch environment from the host environment.
// Proton builds also get the Steam compatibility variables and their
// bundled libraries. Per-game extra variables are applied last.
func BuildEnvironment(args EnvironmentArgs) *Environment {
	env := NewEnvironment(args.Host)
	env.Set(EnvWinePrefix, args.Prefix)

	if args.Binding.Family == runners.FamilyProton && args.Resolution.protonTree() {
		root := args.Resolution.Root
		env.PrependPath(
			EnvLibraryPath,
			filepath.Join(root, "files", "lib64"),
			filepath.Join(root, "files", "lib"),
		)
		env.Set(EnvSteamClientPath, args.DataDir)
		env.Set(EnvSteamDataPath, args.Prefix)
		env.Set(EnvProtonLargeAddr, "1")
		env.Set(EnvProtonNoEsync, "1")
	}

	for _, k := range slices.Sorted(maps.Keys(args.Extra)) {
		if k == "" {
			continue
		}
		env.Set(k, args.Extra[k])
	}
	return env
}
