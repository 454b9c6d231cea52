// Package config loads the service configuration from a JSON, TOML, or
// YAML file, chosen by extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	// DataDir holds the exported dataset files.
	DataDir string `json:"data_dir" toml:"data_dir" yaml:"data_dir"`
	// Listen is the HTTP API address.
	Listen string `json:"listen" toml:"listen" yaml:"listen"`
	// TimeColumn is the conventional time column name in exports.
	TimeColumn string `json:"time_column" toml:"time_column" yaml:"time_column"`
	// NaiveTimezone is the zone timezone-naive timestamps are interpreted
	// in. This is deliberately explicit configuration, not a hidden default.
	NaiveTimezone string `json:"naive_timezone" toml:"naive_timezone" yaml:"naive_timezone"`
	// PreviewRows is the head-row count served by the preview endpoint.
	PreviewRows int `json:"preview_rows" toml:"preview_rows" yaml:"preview_rows"`
	// HistoryPath is the SQLite run-history database file.
	HistoryPath string `json:"history_path" toml:"history_path" yaml:"history_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`
}

func Default() Config {
	return Config{
		DataDir:       "_data",
		Listen:        ":5001",
		TimeColumn:    "_time",
		NaiveTimezone: "UTC",
		PreviewRows:   5,
		HistoryPath:   "refinery.db",
		LogLevel:      "info",
	}
}

// Load reads path into a Config over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview_rows must not be negative")
	}
	if _, err := c.NaiveLocation(); err != nil {
		return err
	}
	return nil
}

// NaiveLocation resolves the configured naive-timestamp zone.
func (c Config) NaiveLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.NaiveTimezone)
	if err != nil {
		return nil, fmt.Errorf("naive_timezone: unknown timezone %q", c.NaiveTimezone)
	}
	return loc, nil
}
