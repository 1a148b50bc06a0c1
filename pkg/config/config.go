// Viera Bridge
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Viera Bridge.
//
// Viera Bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Viera Bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Viera Bridge.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/helpers/syncutil"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "VIERA_BRIDGE_CFG"
)

type Values struct {
	TV           TV        `toml:"tv"`
	Companion    Companion `toml:"companion,omitempty"`
	Service      Service   `toml:"service,omitempty"`
	ConfigSchema int       `toml:"config_schema"`
	DebugLogging bool      `toml:"debug_logging"`
}

// TV identifies the television on the local network.
type TV struct {
	Host string `toml:"host"`
}

// Companion holds the streaming box identity used for CEC wake-on.
type Companion struct {
	Identifier    string `toml:"identifier,omitempty"`
	Address       string `toml:"address,omitempty"`
	AtvremotePath string `toml:"atvremote_path,omitempty"`
}

type Service struct {
	DeviceID         string `toml:"device_id,omitempty"`
	APIPort          int    `toml:"api_port,omitempty"`
	PollIntervalSecs int    `toml:"poll_interval,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Service: Service{
		APIPort:          7455,
		PollIntervalSecs: 10,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
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

	if _, err := os.Stat(c.cfgPath); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	// This ensures fields not present in the file retain their default values.
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

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	// set current schema version
	c.vals.ConfigSchema = SchemaVersion

	// generate a device id if one doesn't exist
	if c.vals.Service.DeviceID == "" {
		newID := uuid.New().String()
		c.vals.Service.DeviceID = newID
		log.Info().Msgf("generated new device id: %s", newID)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Dir returns the directory containing the loaded config file.
func (c *Instance) Dir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Dir(c.cfgPath)
}

func (c *Instance) TVHost() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.TV.Host
}

func (c *Instance) SetTVHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.TV.Host = host
}

func (c *Instance) CompanionIdentifier() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Companion.Identifier
}

func (c *Instance) CompanionAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Companion.Address
}

func (c *Instance) SetCompanion(identifier, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Companion.Identifier = identifier
	c.vals.Companion.Address = address
}

// AtvremotePath returns the configured override path for the external
// control binary, or empty to use the search path.
func (c *Instance) AtvremotePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Companion.AtvremotePath
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.DeviceID
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.APIPort
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.PollIntervalSecs <= 0 {
		return time.Duration(BaseDefaults.Service.PollIntervalSecs) * time.Second
	}
	return time.Duration(c.vals.Service.PollIntervalSecs) * time.Second
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
