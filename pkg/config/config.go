// Package config loads the optional vflow YAML configuration file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	// ClockNames and ResetNames classify edge-sensitive signals; each entry
	// matches case-insensitively as a prefix or suffix of the signal name
	ClockNames []string `yaml:"clock_names,omitempty"`
	ResetNames []string `yaml:"reset_names,omitempty"`

	// DefaultNettype applies to modules before any `default_nettype
	// directive: "wire" or "none"
	DefaultNettype string `yaml:"default_nettype,omitempty"`

	// Level is the minimum number of fold and simplify rounds
	Level int `yaml:"level,omitempty"`

	// Include and Define are merged with -I and -D
	Include []string          `yaml:"include,omitempty"`
	Define  map[string]string `yaml:"define,omitempty"`
}

// DefaultConfig returns the configuration used when no file is found
func DefaultConfig() *Config {
	return &Config{
		ClockNames:     []string{"clk", "clock"},
		ResetNames:     []string{"rst", "reset"},
		DefaultNettype: "wire",
		Level:          2,
		Define:         map[string]string{},
	}
}

// SearchPaths lists the files Load tries, in order
func SearchPaths() []string {
	cwd, _ := os.Getwd()
	paths := []string{
		filepath.Join(cwd, "vflow.yaml"),
		filepath.Join(cwd, ".vflow.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vflow", "config.yaml"))
	}
	return paths
}

// Load finds and loads the configuration file. Search order:
//  1. ./vflow.yaml
//  2. ./.vflow.yaml
//  3. ~/.config/vflow/config.yaml
//
// Returns DefaultConfig if no config file is found
func Load() (*Config, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document and fills in defaults for missing fields
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if len(c.ClockNames) == 0 {
		c.ClockNames = def.ClockNames
	}
	if len(c.ResetNames) == 0 {
		c.ResetNames = def.ResetNames
	}
	if c.DefaultNettype == "" {
		c.DefaultNettype = def.DefaultNettype
	}
	if c.Level == 0 {
		c.Level = def.Level
	}
	if c.Define == nil {
		c.Define = map[string]string{}
	}
}

// Validate rejects values the analyzer cannot use
func (c *Config) Validate() error {
	var errs []error
	switch c.DefaultNettype {
	case "wire", "tri", "wand", "wor", "none":
	default:
		errs = append(errs, fmt.Errorf("default_nettype %q is not a net type", c.DefaultNettype))
	}
	if c.Level < 1 {
		errs = append(errs, fmt.Errorf("level must be at least 1, got %d", c.Level))
	}
	return errors.Join(errs...)
}
