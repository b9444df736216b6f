package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds tool-wide defaults. All fields are optional; zero values
// fall back to built-in defaults at the point of use.
type Config struct {
	DefaultCapacity int   `json:"default_capacity"` //nolint:tagliatelle // snake_case for config file
	NoCache         bool  `json:"no_cache"`         //nolint:tagliatelle // snake_case for config file
	GrowStep        int64 `json:"grow_step"`        //nolint:tagliatelle // snake_case for config file
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCapacity: 1024,
	}
}

// ConfigFileName is the project-local config file name.
const ConfigFileName = ".symtab.json"

// getGlobalConfigPath returns the path to the global config file:
// $XDG_CONFIG_HOME/symtab/config.json, or ~/.config/symtab/config.json.
// Returns empty string if no home directory can be determined.
func getGlobalConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "symtab", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "symtab", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence
// (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config file in workDir (.symtab.json, if it exists).
func LoadConfig(workDir string) (Config, error) {
	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(); globalPath != "" {
		loaded, err := loadConfigFile(globalPath)
		if err != nil {
			return Config{}, err
		}

		cfg = mergeConfig(cfg, loaded)
	}

	loaded, err := loadConfigFile(filepath.Join(workDir, ConfigFileName))
	if err != nil {
		return Config{}, err
	}

	return mergeConfig(cfg, loaded), nil
}

// loadConfigFile parses a single config file. Missing files are not an
// error; they contribute nothing. JSONC (comments, trailing commas) is
// accepted and standardized before unmarshaling.
func loadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// mergeConfig overlays non-zero fields of overlay onto base. NoCache is
// a plain bool: true in any layer wins.
func mergeConfig(base, overlay Config) Config {
	if overlay.DefaultCapacity > 0 {
		base.DefaultCapacity = overlay.DefaultCapacity
	}

	if overlay.GrowStep > 0 {
		base.GrowStep = overlay.GrowStep
	}

	if overlay.NoCache {
		base.NoCache = true
	}

	return base
}
