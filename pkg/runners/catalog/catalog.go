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

// Package catalog lists downloadable runner versions from GitHub release feeds.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/ZaparooProject/zaparoo-runners/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	WineReleasesURL   = "https://api.github.com/repos/Kron4ek/Wine-Builds/releases"
	ProtonReleasesURL = "https://api.github.com/repos/GloriousEggroll/proton-ge-custom/releases"

	// maxFeedSize caps how much of a release feed is read.
	maxFeedSize = 16 * 1024 * 1024
)

// archiveExtensions are the asset suffixes the installer can extract.
var archiveExtensions = []string{".tar.gz", ".tar.xz"}

type asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

type release struct {
	TagName string  `json:"tag_name"`
	Assets  []asset `json:"assets"`
}

// Entry is a version annotated with local install state.
type Entry struct {
	runners.Version
	Installed bool `json:"installed"`
}

// Client fetches release feeds. Concurrent requests for the same family
// share one network call.
type Client struct {
	http    *httpclient.Client
	feeds   map[runners.Family]string
	group   singleflight.Group
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithFeedURL overrides the release feed for a family.
func WithFeedURL(fam runners.Family, url string) Option {
	return func(c *Client) {
		if url != "" {
			c.feeds[fam] = url
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request deadline. Values below one
// millisecond keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= time.Millisecond {
			c.timeout = d
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: httpclient.DefaultClient,
		feeds: map[runners.Family]string{
			runners.FamilyWine:   WineReleasesURL,
			runners.FamilyProton: ProtonReleasesURL,
		},
		timeout: config.DefaultCatalogTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig applies feed overrides and the catalog timeout.
func NewClientFromConfig(cfg *config.Instance) *Client {
	return NewClient(
		WithFeedURL(runners.FamilyWine, cfg.WineReleasesURL()),
		WithFeedURL(runners.FamilyProton, cfg.ProtonReleasesURL()),
		WithTimeout(cfg.CatalogTimeout()),
	)
}

// ListVersions returns the downloadable versions of a family in feed order.
// It never fails: an unreachable or malformed feed yields an empty list.
func (c *Client) ListVersions(ctx context.Context, fam runners.Family) []runners.Version {
	if !fam.NeedsInstall() {
		return []runners.Version{}
	}

	url, ok := c.feeds[fam]
	if !ok {
		return []runners.Version{}
	}

	// the shared request outlives any one caller, only the client timeout
	// bounds it
	flight := c.group.DoChan(string(fam), func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), url)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("family", fam.String()).Msg("runner catalog request abandoned")
		return []runners.Version{}
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("family", fam.String()).Msg("runner catalog unavailable")
		return []runners.Version{}
	}
	if res.Shared {
		log.Debug().Str("family", fam.String()).Msg("shared in-flight catalog request")
	}

	versions, ok := res.Val.([]runners.Version)
	if !ok {
		return []runners.Version{}
	}
	// callers sharing a flight must not alias each other's slice
	out := make([]runners.Version, len(versions))
	copy(out, versions)
	return out
}

// Annotate pairs each version with whether it is installed in layout.
func Annotate(layout *runners.Layout, fam runners.Family, versions []runners.Version) []Entry {
	entries := make([]Entry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, Entry{
			Version:   v,
			Installed: layout.IsInstalled(fam, v.Name),
		})
	}
	return entries
}

func (c *Client) fetch(ctx context.Context, url string) ([]runners.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.GetWithHeaders(ctx, url, map[string]string{
		"Accept": "application/vnd.github+json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release feed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("error closing feed body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read release feed: %w", err)
	}

	return ParseReleases(data)
}

// ParseReleases converts a GitHub releases JSON array into versions. A
// release is kept only if one of its assets is a supported archive.
func ParseReleases(data []byte) ([]runners.Version, error) {
	var releases []release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("failed to parse release feed: %w", err)
	}

	versions := make([]runners.Version, 0, len(releases))
	for _, rel := range releases {
		if len(rel.Assets) == 0 || rel.TagName == "" {
			continue
		}
		a, ok := pickArchive(rel.Assets)
		if !ok {
			log.Debug().Msgf("skipping release without archive asset: %s", rel.TagName)
			continue
		}
		versions = append(versions, runners.Version{
			Name:     rel.TagName,
			URL:      a.URL,
			Filename: a.Name,
		})
	}
	return versions, nil
}

func pickArchive(assets []asset) (asset, bool) {
	for _, a := range assets {
		if a.URL == "" {
			continue
		}
		for _, ext := range archiveExtensions {
			if strings.HasSuffix(a.Name, ext) {
				return a, true
			}
		}
	}
	return asset{}, false
}
