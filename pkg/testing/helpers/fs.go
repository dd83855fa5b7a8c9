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
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOSFS creates a filesystem helper using the real filesystem (for integration tests)
func NewOSFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewOsFs(),
	}
}

// Layout returns a runners layout rooted at dataDir on this filesystem.
func (h *FSHelper) Layout(dataDir string) *runners.Layout {
	return runners.NewLayout(
		h.Fs,
		filepath.Join(dataDir, "runners"),
		filepath.Join(dataDir, "prefixes"),
	)
}

// CreateRunner fakes an installed runner version. exe is the executable
// path relative to the version directory, e.g. "files/bin/wine". An empty
// exe creates only the directory. Returns the version directory.
func (h *FSHelper) CreateRunner(
	layout *runners.Layout,
	fam runners.Family,
	version string,
	exe string,
) (string, error) {
	dir, err := layout.VersionDir(fam, version)
	if err != nil {
		return "", fmt.Errorf("invalid runner version: %w", err)
	}
	if err := h.Fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create runner directory: %w", err)
	}
	if exe == "" {
		return dir, nil
	}
	if err := h.CreateFile(filepath.Join(dir, exe), "#!/bin/sh\n", 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// CreateFile writes a file, creating parent directories.
func (h *FSHelper) CreateFile(path, content string, perm os.FileMode) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for file %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, []byte(content), perm); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// CreateDirectoryStructure creates a directory structure for testing. String
// values are file contents and map values are subdirectories.
func (h *FSHelper) CreateDirectoryStructure(structure map[string]any) error {
	return h.createStructureRecursive("", structure)
}

func (h *FSHelper) createStructureRecursive(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			if err := h.CreateFile(fullPath, v, 0o644); err != nil {
				return err
			}
		case map[string]any:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.createStructureRecursive(fullPath, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported structure type for %s: %T", fullPath, content)
		}
	}
	return nil
}
