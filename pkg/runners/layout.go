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
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// SystemExecutable is the host wine binary, looked up in PATH.
const SystemExecutable = "wine"

var ErrInvalidName = errors.New("invalid name")

// executableCandidates are checked in order under an installed version dir.
var executableCandidates = [][]string{
	{"files", "bin", "wine"},
	{"bin", "wine"},
	{"bin", "wine64"},
}

// Layout owns the on-disk locations of installed runners and game prefixes.
// The filesystem is the only record of what is installed.
type Layout struct {
	fs           afero.Fs
	runnersRoot  string
	prefixesRoot string
}

func NewLayout(fsys afero.Fs, runnersRoot, prefixesRoot string) *Layout {
	return &Layout{
		fs:           fsys,
		runnersRoot:  filepath.Clean(runnersRoot),
		prefixesRoot: filepath.Clean(prefixesRoot),
	}
}

func (l *Layout) Fs() afero.Fs {
	return l.fs
}

func (l *Layout) RunnersRoot() string {
	return l.runnersRoot
}

func (l *Layout) PrefixesRoot() string {
	return l.prefixesRoot
}

// validPathElement rejects names that would leave their parent directory.
func validPathElement(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// FamilyDir is <runners_root>/<family_lowercase>.
func (l *Layout) FamilyDir(fam Family) string {
	return filepath.Join(l.runnersRoot, fam.DirName())
}

// VersionDir is <runners_root>/<family_lowercase>/<name>.
func (l *Layout) VersionDir(fam Family, name string) (string, error) {
	if !fam.NeedsInstall() {
		return "", fmt.Errorf("%s runner has no install directory", fam)
	}
	if !validPathElement(name) {
		return "", fmt.Errorf("%w: version %q", ErrInvalidName, name)
	}
	return filepath.Join(l.FamilyDir(fam), name), nil
}

// ArchivePath is where a downloaded archive is staged before extraction.
func (l *Layout) ArchivePath(filename string) (string, error) {
	if !validPathElement(filename) {
		return "", fmt.Errorf("%w: archive %q", ErrInvalidName, filename)
	}
	return filepath.Join(l.runnersRoot, filename), nil
}

// IsInstalled reports whether the version directory exists right now. The
// system family is always installed. Contents are not validated.
func (l *Layout) IsInstalled(fam Family, name string) bool {
	if !fam.NeedsInstall() {
		return true
	}
	dir, err := l.VersionDir(fam, name)
	if err != nil {
		return false
	}
	_, err = l.fs.Stat(dir)
	return err == nil
}

// Installed lists the version directories present for a family, sorted by name.
func (l *Layout) Installed(fam Family) ([]string, error) {
	if !fam.NeedsInstall() {
		return nil, nil
	}
	entries, err := afero.ReadDir(l.fs, l.FamilyDir(fam))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runners dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindExecutable checks the known sub-layouts of an installed version and
// returns the first wine binary found along with the version directory.
func (l *Layout) FindExecutable(fam Family, name string) (exe, root string, ok bool) {
	root, err := l.VersionDir(fam, name)
	if err != nil {
		return "", "", false
	}
	for _, parts := range executableCandidates {
		p := filepath.Join(append([]string{root}, parts...)...)
		if _, err := l.fs.Stat(p); err == nil {
			return p, root, true
		}
	}
	return "", root, false
}

// SanitizeName turns a game display name into a single path element.
func SanitizeName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// PrefixDir is the per-game wine prefix path.
func (l *Layout) PrefixDir(gameName string) string {
	return filepath.Join(l.prefixesRoot, SanitizeName(gameName))
}

// EnsurePrefix creates the game's prefix directory if needed.
func (l *Layout) EnsurePrefix(gameName string) (string, error) {
	dir := l.PrefixDir(gameName)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create prefix dir: %w", err)
	}
	return dir, nil
}

// EnsureDirs creates the runners and prefixes roots.
func (l *Layout) EnsureDirs() error {
	for _, d := range []string{l.runnersRoot, l.prefixesRoot} {
		if err := l.fs.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}
