// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package config loads and saves the client's configuration file. The
// file is JWCC (JSON with comments and trailing commas) so users can
// annotate their settings.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

const (
	defaultRootServerURL = "https://latest.aws.bmlt.app/main_server"
	defaultRadius        = -10
	defaultTimeoutSecs   = 30

	configDirName  = "bmlt-search"
	configFileName = "config.json"
	cacheFileName  = "results.db"
)

// Config is the persisted client configuration.
type Config struct {
	// RootServerURL is the base URL of the root server, without the
	// client interface path.
	RootServerURL string `json:"root_server_url"`
	// MetricUnits selects kilometers over miles for radius searches.
	MetricUnits bool `json:"metric_units"`
	// DefaultRadius seeds new search criteria; negative values are the
	// server's auto-radius convention.
	DefaultRadius float64 `json:"default_radius"`
	// TimeoutSeconds bounds each root server request.
	TimeoutSeconds int `json:"timeout_seconds"`
	// CachePath locates the local search result cache; empty disables
	// caching.
	CachePath string `json:"cache_path"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		RootServerURL:  defaultRootServerURL,
		DefaultRadius:  defaultRadius,
		TimeoutSeconds: defaultTimeoutSecs,
		CachePath:      defaultCachePath(),
	}
}

// DefaultPath returns the standard location of the config file,
// honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName, configFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", configDirName, configFileName)
	}
	return filepath.Join(home, ".config", configDirName, configFileName)
}

func defaultCachePath() string {
	return filepath.Join(filepath.Dir(DefaultPath()), cacheFileName)
}

// Load reads the config file at path. A missing file yields the
// defaults; a present but unreadable or invalid file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, domain.NewInternalError("reading config file "+path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return cfg, domain.NewValidationError("config file "+path+" is not valid JWCC", err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return cfg, domain.NewValidationError("config file "+path+" has invalid values", err)
	}

	if cfg.RootServerURL == "" {
		return cfg, domain.NewValidationError("config file " + path + " has an empty root_server_url")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSecs
	}
	return cfg, nil
}

// Save writes the config to path atomically, creating parent
// directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.NewInternalError("creating config directory", err)
	}

	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return domain.NewInternalError("encoding config", err)
	}
	payload = append(payload, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(payload)); err != nil {
		return domain.NewInternalError("writing config file "+path, err)
	}
	return nil
}
