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

// Package installer downloads and unpacks runner archives into the
// runners directory.
package installer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/ZaparooProject/zaparoo-runners/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	ErrDownloadFailed   = errors.New("download failed")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrFilesystem       = errors.New("filesystem error")
	ErrInvalidVersion   = errors.New("invalid runner version")
)

const (
	StatusExtracting  = "Extracting files... this may take a moment."
	StatusPermissions = "Finalizing permissions..."
	StatusCleanup     = "Cleaning up..."

	// partialSuffix marks an archive that is still downloading.
	partialSuffix = ".part"
)

// StatusPreparing is the first status of an install.
func StatusPreparing(name string) string {
	return fmt.Sprintf("Preparing %s...", name)
}

// StatusDownloading is reported before the archive download starts.
func StatusDownloading(name string) string {
	return fmt.Sprintf("Downloading %s...", name)
}

// Installer runs the download, extract, permission fix and cleanup steps.
// It holds no locks: callers must not install the same version twice at
// the same time.
type Installer struct {
	layout *runners.Layout
	http   *httpclient.Client
}

func New(layout *runners.Layout, hc *httpclient.Client) *Installer {
	if hc == nil {
		hc = httpclient.NewDownloadClient()
	}
	return &Installer{
		layout: layout,
		http:   hc,
	}
}

func (i *Installer) Layout() *runners.Layout {
	return i.layout
}

// archiveName is the version's asset filename, or the last element of its
// download URL when the feed did not provide one.
func archiveName(v runners.Version) string {
	if v.Filename != "" {
		return v.Filename
	}
	u, err := url.Parse(v.URL)
	if err != nil || u.Path == "" {
		return ""
	}
	name, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		return path.Base(u.Path)
	}
	return name
}

// percentReporter turns byte counts into strictly increasing whole percent
// progress events.
func percentReporter(report runners.Reporter) httpclient.Progress {
	last := -1
	return func(written, total int64) {
		if total <= 0 {
			return
		}
		pct := int(written * 100 / total)
		if pct > 100 {
			pct = 100
		}
		if pct <= last {
			return
		}
		last = pct
		report(runners.Event{Kind: runners.EventProgress, Percent: pct})
	}
}

func status(report runners.Reporter, text string) {
	log.Info().Msg(text)
	report(runners.Event{Kind: runners.EventStatus, Text: text})
}

// Install fetches a version and unpacks it to its version directory. Only
// progress and status events are reported: the caller turns the returned
// error into the single terminal event. Nothing is rolled back on failure.
func (i *Installer) Install(
	ctx context.Context,
	fam runners.Family,
	v runners.Version,
	report runners.Reporter,
) error {
	if report == nil {
		report = runners.Discard
	}
	if v.Name == "" || v.URL == "" {
		return fmt.Errorf("%w: missing name or url", ErrInvalidVersion)
	}

	versionDir, err := i.layout.VersionDir(fam, v.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVersion, err)
	}
	archivePath, err := i.layout.ArchivePath(archiveName(v))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVersion, err)
	}

	fsys := i.layout.Fs()

	status(report, StatusPreparing(v.Name))
	if existing, err := afero.ReadDir(fsys, versionDir); err == nil && len(existing) > 0 {
		log.Warn().Msgf(
			"%s is not empty, the archive is unpacked over %d existing entries and is not flattened",
			versionDir, len(existing),
		)
	}
	if err := fsys.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFilesystem, versionDir, err)
	}

	status(report, StatusDownloading(v.Name))
	log.Debug().Msgf("downloading %s to %s", v.URL, archivePath)
	err = i.http.DownloadFile(ctx, httpclient.DownloadFileArgs{
		Fs:         fsys,
		URL:        v.URL,
		OutputPath: archivePath,
		TempPath:   archivePath + partialSuffix,
		Progress:   percentReporter(report),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	status(report, StatusExtracting)
	count, err := extractArchive(ctx, fsys, archivePath, versionDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	log.Debug().Msgf("extracted %d entries to %s", count, versionDir)
	if err := flattenSingleRoot(fsys, versionDir); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystem, err)
	}

	status(report, StatusPermissions)
	changed := markExecutable(fsys, versionDir)
	log.Debug().Msgf("marked %d files executable", changed)

	status(report, StatusCleanup)
	if err := fsys.Remove(archivePath); err != nil {
		return fmt.Errorf("%w: removing archive: %w", ErrFilesystem, err)
	}

	log.Info().Msgf("installed %s runner %s", fam, v.Name)
	return nil
}

// flattenSingleRoot moves the contents of a lone top-level directory up
// into dir, so bin/ and files/ end up directly under the version
// directory.
func flattenSingleRoot(fsys afero.Fs, dir string) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}
	if isRunnerLayout(entries[0].Name()) {
		return nil
	}

	staging := filepath.Join(dir, ".flatten-"+entries[0].Name())
	if err := fsys.Rename(filepath.Join(dir, entries[0].Name()), staging); err != nil {
		return fmt.Errorf("staging %s: %w", entries[0].Name(), err)
	}

	children, err := afero.ReadDir(fsys, staging)
	if err != nil {
		return fmt.Errorf("reading %s: %w", staging, err)
	}
	for _, c := range children {
		if err := fsys.Rename(filepath.Join(staging, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return fmt.Errorf("moving %s: %w", c.Name(), err)
		}
	}
	if err := fsys.Remove(staging); err != nil {
		return fmt.Errorf("removing %s: %w", staging, err)
	}
	return nil
}

// isRunnerLayout reports whether name is already one of the directories
// the executable lookup checks.
func isRunnerLayout(name string) bool {
	switch strings.ToLower(name) {
	case "bin", "files":
		return true
	default:
		return false
	}
}
