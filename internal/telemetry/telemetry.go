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

// Package telemetry provides opt-in error reporting via Sentry.
// Usernames and game names are stripped before transmission.
package telemetry

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-runners/pkg/shared/httpclient"
	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

// ErrNoDSN is returned when reporting is enabled without a DSN to send to.
var ErrNoDSN = errors.New("error reporting enabled but no DSN configured")

var (
	enabled      bool
	sentryWriter *sentryzerolog.Writer
	closeOnce    sync.Once

	// Patterns to strip usernames from file paths
	homePathRe    = regexp.MustCompile(`(?i)/home/[^/]+/`)
	usersPathRe   = regexp.MustCompile(`(?i)/Users/[^/]+/`)
	windowsUserRe = regexp.MustCompile(`(?i)[a-zA-Z]:\\Users\\[^\\]+\\`)
)

// Init initializes Sentry error reporting with zerolog integration when
// the config opts in. Reports go to the DSN from the config file. dataDir
// is the application data directory the runner and prefix roots derive
// from.
func Init(cfg *config.Instance, dataDir string) error {
	if !cfg.ErrorReporting() {
		log.Debug().Msg("error reporting disabled")
		return nil
	}
	dsn := cfg.ErrorReportingDSN()
	if dsn == "" {
		return ErrNoDSN
	}

	scrub := newScrubber(dataDir, cfg.RunnersDir(dataDir), cfg.PrefixesDir(dataDir))
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          config.AppName + "@" + config.AppVersion,
		Environment:      runtime.GOOS,
		AttachStacktrace: true,
		// Privacy: explicitly disable PII collection
		SendDefaultPII: false,
		ServerName:     "",
		MaxBreadcrumbs: 0,
		HTTPClient:     httpclient.NewClientWithTimeout(30 * time.Second).Client,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrub.event(event)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})

	sentryWriter, err = sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:          []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout:    flushTimeout,
		WithBreadcrumbs: false,
	})
	if err != nil {
		return fmt.Errorf("failed to create sentry zerolog writer: %w", err)
	}

	// Add Sentry writer alongside the existing log writer
	log.Logger = log.Output(zerolog.MultiLevelWriter(
		helpers.LogWriter(),
		sentryWriter,
	)).With().Timestamp().Caller().Logger()

	enabled = true
	log.Info().Msg("error reporting enabled")
	return nil
}

// Close flushes pending events and shuts down Sentry.
// Safe to call multiple times.
func Close() {
	if !enabled {
		return
	}
	closeOnce.Do(func() {
		_ = sentryWriter.Close()
		sentry.Flush(flushTimeout)
	})
}

// Flush ensures all pending events are sent to Sentry.
// Call this before os.Exit to ensure error events are transmitted.
func Flush() {
	if !enabled {
		return
	}
	sentry.Flush(flushTimeout)
}

// Enabled returns whether telemetry is enabled.
func Enabled() bool {
	return enabled
}

// gameFields are log fields whose whole value names a game.
var gameFields = map[string]bool{
	"game": true,
}

type labelledDir struct {
	dir   string
	label string
}

// scrubber rewrites report text so it names neither the user nor their
// games. Runner versions are kept.
type scrubber struct {
	// prefixGame matches a game's wine prefix under the prefixes root.
	prefixGame *regexp.Regexp
	dirs       []labelledDir
}

func newScrubber(dataDir, runnersDir, prefixesDir string) *scrubber {
	s := &scrubber{}
	for _, d := range []labelledDir{
		{dir: runnersDir, label: "<runners>"},
		{dir: prefixesDir, label: "<prefixes>"},
		{dir: dataDir, label: "<data>"},
	} {
		if d.dir == "" {
			continue
		}
		d.dir = filepath.Clean(d.dir)
		s.dirs = append(s.dirs, d)
	}
	// nested roots must be replaced before the data dir holding them
	sort.SliceStable(s.dirs, func(i, j int) bool {
		return len(s.dirs[i].dir) > len(s.dirs[j].dir)
	})
	if prefixesDir != "" {
		s.prefixGame = regexp.MustCompile(regexp.QuoteMeta(filepath.Clean(prefixesDir)) + `/[^/\s:]+`)
	}
	return s
}

// path scrubs the known roots, game prefixes and home directories in text.
func (s *scrubber) path(text string) string {
	if text == "" {
		return text
	}

	result := text
	if s.prefixGame != nil {
		result = s.prefixGame.ReplaceAllString(result, "<prefixes>/<game>")
	}
	for _, d := range s.dirs {
		result = strings.ReplaceAll(result, d.dir, d.label)
	}
	result = homePathRe.ReplaceAllString(result, "/home/<user>/")
	result = usersPathRe.ReplaceAllString(result, "/Users/<user>/")
	result = windowsUserRe.ReplaceAllString(result, "C:\\Users\\<user>\\")

	return result
}

// event removes identifying data from a Sentry event before sending.
func (s *scrubber) event(event *sentry.Event) *sentry.Event {
	// SDK may populate the hostname despite ServerName: ""
	event.ServerName = ""

	for i := range event.Exception {
		if event.Exception[i].Stacktrace != nil {
			for j := range event.Exception[i].Stacktrace.Frames {
				frame := &event.Exception[i].Stacktrace.Frames[j]
				frame.AbsPath = s.path(frame.AbsPath)
				frame.Filename = s.path(frame.Filename)
			}
		}
		event.Exception[i].Value = s.path(event.Exception[i].Value)
	}

	event.Message = s.path(event.Message)

	for k, v := range event.Extra {
		if gameFields[k] {
			event.Extra[k] = "<game>"
			continue
		}
		if str, ok := v.(string); ok {
			event.Extra[k] = s.path(str)
		}
	}

	return event
}
