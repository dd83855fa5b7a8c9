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

var AppVersion = "DEVELOPMENT"

const (
	AppName        = "zaparoo-runners"
	LogFile        = "runners.log"
	CfgFile        = "config.toml"
	AuthFile       = "auth.toml"
	GamesFile      = "games.json"
	LegacySettings = "settings.json"
	RunnersDir     = "runners"
	PrefixesDir    = "prefixes"
	// UserDir next to the binary turns on portable mode.
	UserDir = "user"
	// AppEnv overrides the executable path used to find UserDir.
	AppEnv = "ZAPAROO_RUNNERS_APP"
)

// UserAgent identifies outgoing HTTP requests.
func UserAgent() string {
	return AppName + "/" + AppVersion
}
