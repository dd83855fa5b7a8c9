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

// Package migrate imports settings written by the earlier launcher
// (settings.json) into the TOML config format.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/go-viper/mapstructure/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// legacySettings mirrors settings.json. Old versions wrote booleans as
// strings, so decoding is weakly typed.
type legacySettings struct {
	MinimizeOnLaunch      *bool `mapstructure:"minimize_on_launch"`
	MinimizeToTrayOnClose *bool `mapstructure:"minimize_to_tray_on_close"`
	CheckUpdates          *bool `mapstructure:"check_updates"`
	DeveloperMode         *bool `mapstructure:"developer_mode"`
}

// Required reports whether a legacy settings file exists and no TOML
// config has been written yet.
func Required(legacyPath, tomlPath string) bool {
	if _, err := os.Stat(legacyPath); err != nil {
		return false
	}
	_, err := os.Stat(tomlPath)
	return errors.Is(err, fs.ErrNotExist)
}

// SettingsToToml reads a legacy settings.json into config values. Keys
// missing from the file keep their defaults.
func SettingsToToml(legacyPath string) (config.Values, error) {
	vals := config.BaseDefaults

	data, err := os.ReadFile(legacyPath) //nolint:gosec // path from data dir
	if err != nil {
		return vals, fmt.Errorf("failed to read legacy settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return vals, fmt.Errorf("failed to parse legacy settings: %w", err)
	}

	var legacy legacySettings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &legacy,
	})
	if err != nil {
		return vals, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return vals, fmt.Errorf("failed to decode legacy settings: %w", err)
	}

	if legacy.MinimizeOnLaunch != nil {
		vals.Settings.MinimizeOnLaunch = *legacy.MinimizeOnLaunch
	}
	if legacy.MinimizeToTrayOnClose != nil {
		vals.Settings.MinimizeToTrayOnClose = *legacy.MinimizeToTrayOnClose
	}
	if legacy.CheckUpdates != nil {
		vals.Settings.CheckUpdates = *legacy.CheckUpdates
	}
	if legacy.DeveloperMode != nil {
		vals.Settings.DeveloperMode = *legacy.DeveloperMode
	}

	return vals, nil
}

// Migrate writes a TOML config converted from the legacy settings file.
func Migrate(legacyPath, tomlPath string) error {
	vals, err := SettingsToToml(legacyPath)
	if err != nil {
		return err
	}

	data, err := toml.Marshal(&vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(tomlPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(tomlPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("migrated legacy settings from %s", legacyPath)
	return nil
}
