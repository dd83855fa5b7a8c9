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

// Package runners describes compatibility runtimes (Wine and Proton builds)
// and where they live on disk.
package runners

import (
	"fmt"
	"strings"
)

// Family is the kind of runtime a game is bound to.
type Family string

const (
	// FamilySystem uses the host provided wine binary. Nothing to install.
	FamilySystem Family = "System"
	// FamilyWine is a standalone Wine build.
	FamilyWine Family = "Wine"
	// FamilyProton is a Proton (GE) build.
	FamilyProton Family = "Proton"
)

// Families lists every family in display order.
var Families = []Family{FamilySystem, FamilyWine, FamilyProton}

// ParseFamily maps a runner_type string from a game record to a Family.
// Matching is case-insensitive and an empty string means FamilySystem.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "system":
		return FamilySystem, nil
	case "wine":
		return FamilyWine, nil
	case "proton":
		return FamilyProton, nil
	default:
		return "", fmt.Errorf("unknown runner family: %q", s)
	}
}

func (f Family) String() string {
	return string(f)
}

// DirName is the directory name used under the runners root.
func (f Family) DirName() string {
	return strings.ToLower(string(f))
}

// NeedsInstall reports whether versions of this family must be downloaded.
func (f Family) NeedsInstall() bool {
	return f == FamilyWine || f == FamilyProton
}

// Version is a single downloadable release of a runner.
type Version struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Binding is the runner selection stored on a game record.
type Binding struct {
	Family  Family
	Version string
}

// DefaultBinding is used by games that never picked a runner.
var DefaultBinding = Binding{Family: FamilySystem}

// NewBinding builds a Binding from raw game record fields. Unknown families
// fall back to the system runner.
func NewBinding(runnerType, runnerVersion string) Binding {
	fam, err := ParseFamily(runnerType)
	if err != nil {
		return DefaultBinding
	}
	if fam == FamilySystem {
		return DefaultBinding
	}
	return Binding{Family: fam, Version: strings.TrimSpace(runnerVersion)}
}

// Key identifies an install target, used to coalesce concurrent installs.
type Key struct {
	Family  Family
	Version string
}

func (k Key) String() string {
	return k.Family.DirName() + "/" + k.Version
}
