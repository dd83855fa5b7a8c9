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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ZAPAROO_RUNNERS_CFG"

	DefaultCatalogTimeout = 10 * time.Second
)

type Values struct {
	Runners           Runners  `toml:"runners"`
	Settings          Settings `toml:"settings"`
	ErrorReportingDSN string   `toml:"error_reporting_dsn,omitempty"`
	ConfigSchema      int      `toml:"config_schema"`
	DebugLogging      bool     `toml:"debug_logging"`
	ErrorReporting    bool     `toml:"error_reporting"`
}

// Runners controls where runtimes and prefixes are stored and where the
// release feeds are fetched from.
type Runners struct {
	DataDir           string `toml:"data_dir,omitempty"`
	RunnersDir        string `toml:"runners_dir,omitempty"`
	PrefixesDir       string `toml:"prefixes_dir,omitempty"`
	WineReleasesURL   string `toml:"wine_releases_url,omitempty"`
	ProtonReleasesURL string `toml:"proton_releases_url,omitempty"`
	CatalogTimeout    int    `toml:"catalog_timeout,omitempty"`
}

// Settings are the general launcher preferences.
type Settings struct {
	MinimizeOnLaunch      bool `toml:"minimize_on_launch"`
	MinimizeToTrayOnClose bool `toml:"minimize_to_tray_on_close"`
	CheckUpdates          bool `toml:"check_updates"`
	DeveloperMode         bool `toml:"developer_mode"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Settings: Settings{
		CheckUpdates: true,
	},
}

type Instance struct {
	cfgPath  string
	authPath string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, writing the defaults to
// disk first if no file exists. The ZAPAROO_RUNNERS_CFG env var overrides
// the file location.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		authPath: filepath.Join(filepath.Dir(cfgPath), AuthFile),
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals

	if _, err := os.Stat(c.authPath); err == nil {
		log.Info().Msg("loading auth file")
		authData, err := os.ReadFile(c.authPath)
		if err != nil {
			return fmt.Errorf("failed to read auth file: %w", err)
		}
		creds := LoadAuthFromData(authData)
		log.Info().Msgf("loaded %d auth entries", len(creds))
		SetAuthCreds(creds)
	}

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path is the config file location.
func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}

func (c *Instance) ErrorReportingDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReportingDSN
}

// DataDir returns the configured data dir, or fallback when unset.
func (c *Instance) DataDir(fallback string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Runners.DataDir != "" {
		return c.vals.Runners.DataDir
	}
	return fallback
}

// RunnersDir returns where runtimes are installed, relative to dataDir
// unless overridden with an absolute path.
func (c *Instance) RunnersDir(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return resolveDir(dataDir, c.vals.Runners.RunnersDir, RunnersDir)
}

// PrefixesDir returns where per-game wine prefixes are created.
func (c *Instance) PrefixesDir(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return resolveDir(dataDir, c.vals.Runners.PrefixesDir, PrefixesDir)
}

func resolveDir(base, configured, def string) string {
	switch {
	case configured == "":
		return filepath.Join(base, def)
	case filepath.IsAbs(configured):
		return configured
	default:
		return filepath.Join(base, configured)
	}
}

// WineReleasesURL is an override for the Wine release feed, empty if unset.
func (c *Instance) WineReleasesURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Runners.WineReleasesURL
}

// ProtonReleasesURL is an override for the Proton release feed, empty if unset.
func (c *Instance) ProtonReleasesURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Runners.ProtonReleasesURL
}

func (c *Instance) CatalogTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Runners.CatalogTimeout <= 0 {
		return DefaultCatalogTimeout
	}
	return time.Duration(c.vals.Runners.CatalogTimeout) * time.Second
}

func (c *Instance) MinimizeOnLaunch() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Settings.MinimizeOnLaunch
}

func (c *Instance) DeveloperMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Settings.DeveloperMode
}

func (c *Instance) SetDeveloperMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Settings.DeveloperMode = enabled
}

// UpdatesEnabled reports whether the self-update check may run. Developer
// mode always disables it.
func (c *Instance) UpdatesEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Settings.CheckUpdates && !c.vals.Settings.DeveloperMode
}
