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

package config

import (
	"maps"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// CredentialEntry holds authentication credentials for a URL.
type CredentialEntry struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Bearer   string `toml:"bearer"`
}

var authCreds atomic.Value

// GetAuthCreds returns the credentials loaded from auth.toml.
func GetAuthCreds() map[string]CredentialEntry {
	val := authCreds.Load()
	if val == nil {
		return nil
	}
	creds, ok := val.(map[string]CredentialEntry)
	if !ok {
		return nil
	}
	return creds
}

// SetAuthCreds replaces the active credentials.
func SetAuthCreds(creds map[string]CredentialEntry) {
	authCreds.Store(creds)
}

// authCredsFormat is the [creds."url"] layout.
type authCredsFormat struct {
	Creds map[string]CredentialEntry `toml:"creds"`
}

// LoadAuthFromData parses auth.toml data. Both the root level ["url"] layout
// and the [creds."url"] layout are accepted and merged.
//
// A GitHub token avoids the anonymous API rate limit:
//
//	["https://api.github.com"]
//	bearer = "ghp_..."
func LoadAuthFromData(data []byte) map[string]CredentialEntry {
	result := make(map[string]CredentialEntry)

	var root map[string]CredentialEntry
	if err := toml.Unmarshal(data, &root); err == nil {
		for k, v := range root {
			if k != "creds" {
				result[k] = v
			}
		}
	}

	var creds authCredsFormat
	if err := toml.Unmarshal(data, &creds); err == nil {
		maps.Copy(result, creds.Creds)
	}

	return result
}

// LookupAuth finds credentials for a URL. The entry's scheme and host must
// match and its path must prefix the request path.
func LookupAuth(creds map[string]CredentialEntry, reqURL string) *CredentialEntry {
	if len(creds) == 0 {
		return nil
	}

	u, err := url.Parse(reqURL)
	if err != nil {
		log.Warn().Msgf("invalid auth request url: %s", reqURL)
		return nil
	}

	for k, v := range creds {
		defURL, err := url.Parse(k)
		if err != nil {
			log.Error().Msgf("invalid auth config url: %s", k)
			continue
		}
		if strings.EqualFold(defURL.Scheme, u.Scheme) &&
			strings.EqualFold(defURL.Host, u.Host) &&
			strings.HasPrefix(u.Path, defURL.Path) {
			return &v
		}
	}

	return nil
}
