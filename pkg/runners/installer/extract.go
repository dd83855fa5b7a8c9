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
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

type compression int

const (
	compressionUnknown compression = iota
	compressionGzip
	compressionXz
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

var errUnsafePath = errors.New("archive entry escapes target directory")

func compressionFromName(name string) compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return compressionGzip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return compressionXz
	default:
		return compressionUnknown
	}
}

func compressionFromMagic(header []byte) compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return compressionGzip
	case bytes.HasPrefix(header, xzMagic):
		return compressionXz
	default:
		return compressionUnknown
	}
}

// decompress wraps r according to the archive name, sniffing magic bytes
// when the name says nothing or disagrees with the content.
func decompress(name string, r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read archive header: %w", err)
	}

	comp := compressionFromMagic(header)
	if comp == compressionUnknown {
		comp = compressionFromName(name)
	}

	switch comp {
	case compressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, nil
	case compressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz stream: %w", err)
		}
		return xr, nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", name)
	}
}

// safeJoin resolves an archive entry name under dest, rejecting absolute
// names and any that climb out with "..".
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	target := filepath.Join(dest, name)
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return target, nil
}

func lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}

// checkNoSymlinks rejects a path under dest when any existing component
// between dest and path, path included when self is set, is a symlink.
// Earlier entries could otherwise redirect later ones out of dest.
func checkNoSymlinks(fsys afero.Fs, dest, path string, self bool) error {
	end := path
	if !self {
		end = filepath.Dir(path)
	}
	rel, err := filepath.Rel(dest, end)
	if err != nil || rel == "." {
		return nil
	}
	cur := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := lstat(fsys, cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", cur, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is a symlink", errUnsafePath, mustRel(dest, cur))
		}
	}
	return nil
}

// extractArchive unpacks a gzip or xz compressed tarball into dest.
func extractArchive(ctx context.Context, fsys afero.Fs, archivePath, dest string) (int, error) {
	f, err := fsys.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("error closing archive")
		}
	}()

	r, err := decompress(archivePath, f)
	if err != nil {
		return 0, err
	}

	dest = filepath.Clean(dest)
	tr := tar.NewReader(r)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, fmt.Errorf("extraction interrupted: %w", err)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return count, fmt.Errorf("failed to read archive entry: %w", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return count, err
		}
		if hdr.Typeflag != tar.TypeSymlink {
			if err := checkNoSymlinks(fsys, dest, target, false); err != nil {
				return count, err
			}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
				return count, fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(fsys, target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return count, err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(fsys, dest, target, hdr.Linkname); err != nil {
				log.Warn().Err(err).Msgf("skipping symlink: %s", hdr.Name)
				continue
			}
		case tar.TypeLink:
			src, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return count, err
			}
			if err := checkNoSymlinks(fsys, dest, src, true); err != nil {
				return count, err
			}
			if err := copyFile(fsys, src, target); err != nil {
				return count, err
			}
		default:
			log.Debug().Msgf("skipping archive entry %s of type %c", hdr.Name, hdr.Typeflag)
			continue
		}
		count++
	}

	return count, nil
}

func writeFile(fsys afero.Fs, target string, r io.Reader, perm os.FileMode) error {
	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	// a previous partial install may have left a symlink here
	_ = fsys.Remove(target)

	out, err := fsys.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func writeSymlink(fsys afero.Fs, dest, target, linkname string) error {
	linker, ok := fsys.(afero.Linker)
	if !ok {
		return errors.New("filesystem does not support symlinks")
	}

	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}
	if _, err := safeJoin(dest, mustRel(dest, resolved)); err != nil {
		return err
	}
	if err := checkNoSymlinks(fsys, dest, target, false); err != nil {
		return err
	}

	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	_ = fsys.Remove(target)
	if err := linker.SymlinkIfPossible(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// mustRel returns path relative to base, or path itself (absolute) when
// no relative form exists so safeJoin rejects it.
func mustRel(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}

func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open link source: %w", err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat link source: %w", err)
	}
	return writeFile(fsys, dst, in, info.Mode().Perm())
}
