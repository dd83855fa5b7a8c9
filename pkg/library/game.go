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

// Package library stores the user's game records in a flat JSON file.
package library

import (
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
)

const (
	BannerLong = "long"
	BannerWide = "wide"

	defaultGameVersion = "1.0"
)

// Game is one launchable Windows executable and the runner it uses.
type Game struct {
	// Env is extra environment applied last when launching.
	Env           map[string]string `json:"env,omitempty"`
	ID            string            `json:"id"`
	Name          string            `json:"name" validate:"required"`
	Path          string            `json:"path" validate:"required"`
	RunnerType    string            `json:"runner_type" validate:"runnertype"`
	RunnerVersion string            `json:"runner_version,omitempty" validate:"omitempty,pathelement"`
	Banner        string            `json:"banner"`
	BannerType    string            `json:"banner_type" validate:"omitempty,oneof=long wide"`
	Version       string            `json:"version"`
	Description   string            `json:"description"`
}

// NewGame creates a record for an executable with the same defaults a new
// entry has always had: named after the file, long banner, system runner.
func NewGame(path string) Game {
	base := filepath.Base(path)
	return Game{
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		Path:       path,
		BannerType: BannerLong,
		Version:    defaultGameVersion,
		RunnerType: runners.FamilySystem.String(),
	}
}

// Binding is the runner selection stored on the record.
func (g *Game) Binding() runners.Binding {
	return runners.NewBinding(g.RunnerType, g.RunnerVersion)
}

// SetBinding stores a runner selection. The system runner never keeps a
// version.
func (g *Game) SetBinding(b runners.Binding) {
	g.RunnerType = b.Family.String()
	if b.Family.NeedsInstall() {
		g.RunnerVersion = b.Version
	} else {
		g.RunnerVersion = ""
	}
}
