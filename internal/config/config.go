// Package config reads the optional ripple.json project file used by
// the CLI. A missing file is not an error; every field has a default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "ripple.json"

	// DefaultAddress is the default inspection server address.
	DefaultAddress = "127.0.0.1:8490"

	// DefaultInterval is the default demo tick interval.
	DefaultInterval = "1s"

	// DefaultIterations is the default number of timed writes per
	// benchmark grid cell.
	DefaultIterations = 100
)

// Config represents the complete ripple.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Bench configures the bench command.
	Bench BenchConfig `json:"bench,omitempty"`

	// Serve configures the serve command.
	Serve ServeConfig `json:"serve,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BenchConfig contains benchmark sweep settings.
type BenchConfig struct {
	// Widths are the graph widths to sweep.
	Widths []int `json:"widths,omitempty"`

	// Heights are the chain depths to sweep.
	Heights []int `json:"heights,omitempty"`

	// Iterations is the number of timed writes per grid cell.
	Iterations int `json:"iterations,omitempty"`
}

// ServeConfig contains demo server settings.
type ServeConfig struct {
	// Address is the inspection server listen address.
	Address string `json:"address,omitempty"`

	// Interval is the demo counter tick interval (e.g., "500ms").
	Interval string `json:"interval,omitempty"`

	// Metrics exposes Prometheus metrics at /metrics when true.
	Metrics bool `json:"metrics,omitempty"`
}

// New returns a configuration with defaults applied.
func New() *Config {
	return &Config{
		Bench: BenchConfig{
			Widths:     []int{1, 10, 100},
			Heights:    []int{1, 10, 100},
			Iterations: DefaultIterations,
		},
		Serve: ServeConfig{
			Address:  DefaultAddress,
			Interval: DefaultInterval,
		},
	}
}

// Load reads ripple.json from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFromWorkingDir reads ripple.json from the current directory.
func LoadFromWorkingDir() (*Config, error) {
	return Load(".")
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Path returns where the configuration was loaded from, empty when the
// defaults were used.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills unset fields with the defaults from New.
func (c *Config) applyDefaults() {
	defaults := New()

	if len(c.Bench.Widths) == 0 {
		c.Bench.Widths = defaults.Bench.Widths
	}
	if len(c.Bench.Heights) == 0 {
		c.Bench.Heights = defaults.Bench.Heights
	}
	if c.Bench.Iterations == 0 {
		c.Bench.Iterations = defaults.Bench.Iterations
	}

	if c.Serve.Address == "" {
		c.Serve.Address = defaults.Serve.Address
	}
	if c.Serve.Interval == "" {
		c.Serve.Interval = defaults.Serve.Interval
	}
}

// TickInterval parses the serve interval. Invalid values fall back to
// the default.
func (c *ServeConfig) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultInterval)
	}
	return d
}
