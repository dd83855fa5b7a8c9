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

package installer

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const execBits os.FileMode = 0o111

// markExecutable adds owner, group and other execute bits to every regular
// file under root. Failures are per file and never abort the walk. Returns
// the number of files changed.
func markExecutable(fsys afero.Fs, root string) int {
	changed := 0
	walkErr := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Debug().Err(err).Msgf("cannot walk: %s", path)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		mode := info.Mode().Perm()
		if mode&execBits == execBits {
			return nil
		}
		if err := fsys.Chmod(path, mode|execBits); err != nil {
			log.Warn().Err(err).Msgf("cannot set executable bit: %s", path)
			return nil
		}
		changed++
		return nil
	})
	if walkErr != nil {
		log.Warn().Err(walkErr).Msgf("permission walk ended early: %s", root)
	}
	return changed
}
