// Copyright 2025 EarthFocus Labs
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads client configuration with the precedence
// defaults < config file < environment variables < command-line flags.
// Flags are applied by the command layer; this package handles the
// first three.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Archive holds the remote endpoints and mission window.
type Archive struct {
	CatalogURL   string `yaml:"catalog_url"`
	TokenURL     string `yaml:"token_url"`
	Mission      string `yaml:"mission"`
	MissionStart string `yaml:"mission_start"`
	MissionEnd   string `yaml:"mission_end"`
}

// Storage holds the local directory layout.
type Storage struct {
	DataDir         string `yaml:"data_dir"`
	RegistryDir     string `yaml:"registry_dir"`
	CatalogDir      string `yaml:"catalog_dir"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Download holds transfer settings.
type Download struct {
	Concurrency    int `yaml:"concurrency"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Config is the complete client configuration.
type Config struct {
	Archive     Archive  `yaml:"archive"`
	Storage     Storage  `yaml:"storage"`
	Download    Download `yaml:"download"`
	Collections []string `yaml:"collections"`
}

// DefaultConfig returns the built-in defaults: the ESA MAAP catalogue
// and the EarthCARE mission window, with local state under ~/.maap.
func DefaultConfig() *Config {
	return &Config{
		Archive: Archive{
			CatalogURL:   "https://catalog.maap.eo.esa.int/catalogue",
			TokenURL:     "https://iam.maap.eo.esa.int/realms/esa-maap/protocol/openid-connect/token",
			Mission:      "EarthCARE",
			MissionStart: "2024-05-28T00:00:00Z",
			MissionEnd:   "2045-12-31T23:59:59Z",
		},
		Storage: Storage{
			DataDir:         "~/.maap/data",
			RegistryDir:     "~/.maap/registry",
			CatalogDir:      "~/.maap/built_catalogs",
			CredentialsFile: "~/.maap/credentials.txt",
		},
		Download: Download{
			Concurrency:    4,
			TimeoutSeconds: 1800,
		},
		Collections: []string{
			"EarthCAREL0L1Products_MAAP",
			"EarthCAREL1InstChecked_MAAP",
			"EarthCAREL1Validated_MAAP",
			"EarthCAREL2InstChecked_MAAP",
			"EarthCAREL2Products_MAAP",
			"EarthCAREL2Validated_MAAP",
			"EarthCAREAuxiliary_MAAP",
			"EarthCAREOrbitData_MAAP",
			"EarthCAREXMETL1DProducts10_MAAP",
			"JAXAL2InstChecked_MAAP",
			"JAXAL2Products_MAAP",
			"JAXAL2Validated_MAAP",
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file
// and MAAP_* environment variables, in that order. An explicit
// configPath that does not exist is an error; discovered paths are
// skipped silently.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := configPath != ""
	if !explicit {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg, explicit); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile probes the standard config locations.
func findConfigFile() string {
	candidates := []string{".maap.yaml"}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".maap", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadConfigFile(path string, cfg *Config, explicit bool) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", expanded, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", expanded, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAAP_CATALOG_URL"); v != "" {
		cfg.Archive.CatalogURL = v
	}
	if v := os.Getenv("MAAP_TOKEN_URL"); v != "" {
		cfg.Archive.TokenURL = v
	}
	if v := os.Getenv("MAAP_MISSION_START"); v != "" {
		cfg.Archive.MissionStart = v
	}
	if v := os.Getenv("MAAP_MISSION_END"); v != "" {
		cfg.Archive.MissionEnd = v
	}
	if v := os.Getenv("MAAP_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("MAAP_REGISTRY_DIR"); v != "" {
		cfg.Storage.RegistryDir = v
	}
	if v := os.Getenv("MAAP_CATALOG_DIR"); v != "" {
		cfg.Storage.CatalogDir = v
	}
	if v := os.Getenv("MAAP_CREDENTIALS_FILE"); v != "" {
		cfg.Storage.CredentialsFile = v
	}
	if v := os.Getenv("MAAP_DOWNLOAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Download.Concurrency = n
		}
	}
}

func (c *Config) expandPaths() {
	expand := func(p string) string {
		if out, err := homedir.Expand(p); err == nil {
			return out
		}
		return p
	}
	c.Storage.DataDir = expand(c.Storage.DataDir)
	c.Storage.RegistryDir = expand(c.Storage.RegistryDir)
	c.Storage.CatalogDir = expand(c.Storage.CatalogDir)
	c.Storage.CredentialsFile = expand(c.Storage.CredentialsFile)
}

// MissionWindow parses the configured mission start and end timestamps.
func (c *Config) MissionWindow() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, c.Archive.MissionStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid mission_start %q: %w", c.Archive.MissionStart, err)
	}
	end, err = time.Parse(time.RFC3339, c.Archive.MissionEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid mission_end %q: %w", c.Archive.MissionEnd, err)
	}
	return start, end, nil
}

// HasCollection reports whether a collection is configured.
func (c *Config) HasCollection(name string) bool {
	for _, col := range c.Collections {
		if col == name {
			return true
		}
	}
	return false
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Archive.CatalogURL == "" {
		return fmt.Errorf("catalog_url must not be empty")
	}
	if c.Archive.Mission == "" {
		return fmt.Errorf("mission must not be empty")
	}
	start, end, err := c.MissionWindow()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("mission window %s..%s is inverted", c.Archive.MissionStart, c.Archive.MissionEnd)
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download concurrency must be positive, got %d", c.Download.Concurrency)
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("at least one collection must be configured")
	}
	return nil
}
