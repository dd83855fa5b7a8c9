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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAuthFromData_Formats(t *testing.T) {
	t.Parallel()

	data := []byte(`
["https://api.github.com"]
bearer = "root-token"

[creds."https://mirror.example.com/releases"]
username = "user"
password = "pass"
`)

	creds := LoadAuthFromData(data)
	require.Len(t, creds, 2)
	assert.Equal(t, "root-token", creds["https://api.github.com"].Bearer)
	assert.Equal(t, "user", creds["https://mirror.example.com/releases"].Username)
}

func TestLoadAuthFromData_Invalid(t *testing.T) {
	t.Parallel()

	assert.Empty(t, LoadAuthFromData([]byte("this is = = not toml")))
}

func TestLookupAuth(t *testing.T) {
	t.Parallel()

	creds := map[string]CredentialEntry{
		"https://api.github.com":             {Bearer: "gh"},
		"https://mirror.example.com/private": {Username: "u", Password: "p"},
	}

	tests := []struct {
		name   string
		url    string
		bearer string
		user   string
		found  bool
	}{
		{name: "host match", url: "https://api.github.com/repos/x/y/releases", bearer: "gh", found: true},
		{name: "host case", url: "https://API.GITHUB.COM/repos", bearer: "gh", found: true},
		{name: "scheme mismatch", url: "http://api.github.com/repos", found: false},
		{name: "path prefix", url: "https://mirror.example.com/private/a.tar.xz", user: "u", found: true},
		{name: "path outside", url: "https://mirror.example.com/public/a.tar.xz", found: false},
		{name: "other host", url: "https://objects.githubusercontent.com/x", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LookupAuth(creds, tt.url)
			if !tt.found {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.bearer, got.Bearer)
			assert.Equal(t, tt.user, got.Username)
		})
	}
}

func TestLookupAuth_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, LookupAuth(nil, "https://api.github.com"))
}
