// Package config loads the daemon configuration file (YAML).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"wellboard/internal/logging"
	"wellboard/internal/storage"
)

type Config struct {
	Logging logging.Config `yaml:"logging"`
	Storage StorageConfig  `yaml:"storage"`
	Keys    KeysConfig     `yaml:"keys"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	// BusyTimeout is a Go duration string (e.g. "500ms"); sqlite only.
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

// KeysConfig overrides the store keys; the defaults are fine for a single
// dashboard per store.
type KeysConfig struct {
	Notifications string `yaml:"notifications,omitempty"`
	Settings      string `yaml:"settings,omitempty"`
}

// Load reads and validates the config file. Unknown fields are rejected so
// typos surface early.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data"
	}
	if c.Keys.Notifications == "" {
		c.Keys.Notifications = "notifications"
	}
	if c.Keys.Settings == "" {
		c.Keys.Settings = "settings"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ToStorage converts to the storage layer's config.
func (s StorageConfig) ToStorage() (storage.Config, error) {
	out := storage.Config{Driver: s.Driver, Path: s.Path}
	if s.BusyTimeout != "" {
		d, err := time.ParseDuration(s.BusyTimeout)
		if err != nil {
			return storage.Config{}, fmt.Errorf("storage.busy_timeout: %w", err)
		}
		out.BusyTimeout = d
	}
	return out, nil
}
