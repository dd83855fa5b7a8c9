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

package helpers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/adrg/xdg"
)

// Paths are the per-user directories the application writes to.
type Paths struct {
	ConfigDir string
	DataDir   string
	TempDir   string
}

// DefaultPaths follows the XDG base directory spec unless a portable user
// dir exists next to the binary, which then holds config and data.
func DefaultPaths() Paths {
	p := Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		TempDir:   filepath.Join(os.TempDir(), config.AppName),
	}
	if dir, ok := HasUserDir(); ok {
		p.ConfigDir = dir
		p.DataDir = dir
	}
	return p
}

// EnsureDirectories creates every directory in p.
func (p Paths) EnsureDirectories() error {
	for _, d := range []string{p.ConfigDir, p.DataDir, p.TempDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o750); err != nil {
			return err //nolint:wrapcheck // path is in the error
		}
	}
	return nil
}

var (
	userDirOnce        sync.Once
	userDirCache       string
	userDirCacheExists bool
)

// HasUserDir checks if a "user" directory exists next to the binary, and
// returns true and the absolute path to it. The result is cached after the
// first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		userDirCache, userDirCacheExists = findUserDir(os.Getenv(config.AppEnv))
	})
	return userDirCache, userDirCacheExists
}

func findUserDir(exePath string) (string, bool) {
	if exePath == "" {
		var err error
		exePath, err = os.Executable()
		if err != nil {
			return "", false
		}
	}

	userDir := filepath.Join(filepath.Dir(exePath), config.UserDir)
	info, err := os.Stat(userDir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	if abs, err := filepath.Abs(userDir); err == nil {
		userDir = abs
	}
	return userDir, true
}
