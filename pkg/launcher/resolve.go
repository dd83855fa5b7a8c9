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
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/rs/zerolog/log"
)

// Resolution is the runner binary chosen for a launch.
type Resolution struct {
	// Path is the executable, either absolute or a name looked up in PATH.
	Path string
	// Root is the installed version directory, empty for the system runner.
	Root string
	// Fallback is set when a versioned runner was requested but no binary
	// was found for it and the system runner is used instead.
	Fallback bool
}

// Resolve picks the runner executable for a binding. It never fails: a
// missing or broken install falls back to the system wine.
func Resolve(layout *runners.Layout, b runners.Binding) Resolution {
	if !b.Family.NeedsInstall() || b.Version == "" {
		return Resolution{Path: runners.SystemExecutable}
	}

	exe, root, ok := layout.FindExecutable(b.Family, b.Version)
	if !ok {
		log.Warn().Msgf(
			"no runner binary for %s %s, falling back to system %s",
			b.Family, b.Version, runners.SystemExecutable,
		)
		return Resolution{Path: runners.SystemExecutable, Fallback: true}
	}
	return Resolution{Path: exe, Root: root}
}

// protonTree reports whether the resolution points at a Proton style
// build, with its wine under files/.
func (r Resolution) protonTree() bool {
	if r.Root == "" {
		return false
	}
	files := filepath.Join(r.Root, "files") + string(filepath.Separator)
	return strings.HasPrefix(r.Path, files)
}
