// Package config provides unified configuration loading for tbspread.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/skovsen/tbspread"
	"github.com/skovsen/tbspread/internal/places"
	"gopkg.in/yaml.v3"
)

// Metric names accepted by SimulationConfig.Metric.
const (
	MetricGeodesic = "geodesic"
	MetricPlanar   = "planar"
)

// Config contains all tbspread settings.
type Config struct {
	// Simulation controls the run itself.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Disease holds the transmission and population constants.
	Disease tbspread.Params `json:"disease" yaml:"disease"`

	// Data locates the input files.
	Data DataConfig `json:"data" yaml:"data"`

	// Store configures the trajectory database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Output is the directory for CSV, chart and snapshot files.
	Output string `json:"output" yaml:"output"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig controls seeding and run length.
type SimulationConfig struct {
	Seed  uint64 `json:"seed" yaml:"seed"`
	Ticks int    `json:"ticks" yaml:"ticks"`

	// StopWhenClear ends the run once no agent is infectious.
	StopWhenClear bool `json:"stop_when_clear" yaml:"stop_when_clear"`

	// Metric selects how exposure distance is measured: "geodesic" (meters)
	// or "planar" (coordinate units).
	Metric string `json:"metric" yaml:"metric"`
}

// DataConfig locates the region, tag, routine and population files.
// Relative paths are resolved against the directory of the config file.
type DataConfig struct {
	Regions    []places.Source `json:"regions" yaml:"regions"`
	Tags       string          `json:"tags" yaml:"tags"`
	Routines   string          `json:"routines" yaml:"routines"`
	Population string          `json:"population" yaml:"population"`

	// PopulationColumn is the CSV column holding resident counts.
	PopulationColumn string `json:"population_column" yaml:"population_column"`
}

// StoreConfig configures the SQLite trajectory store.
type StoreConfig struct {
	// Path of the database file. Empty disables recording.
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the calibrated defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Seed:   3232211,
			Ticks:  24 * 365,
			Metric: MetricGeodesic,
		},
		Disease: tbspread.DefaultParams(),
		Data: DataConfig{
			PopulationColumn: "sum",
		},
		Output: "out",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.tbspread/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".tbspread", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file, then applies
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.resolvePaths(filepath.Dir(path))
	applyEnvOverrides(config)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Disease.Validate(); err != nil {
		return err
	}
	if c.Simulation.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative, got %d", c.Simulation.Ticks)
	}
	if c.Simulation.Metric != MetricGeodesic && c.Simulation.Metric != MetricPlanar {
		return fmt.Errorf("invalid metric: %s (valid: geodesic, planar)", c.Simulation.Metric)
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// ValidateData checks that every input file is configured.
func (c *Config) ValidateData() error {
	if len(c.Data.Regions) == 0 {
		return fmt.Errorf("%w: data.regions is empty", tbspread.ErrConfiguration)
	}
	for _, r := range c.Data.Regions {
		if r.Name == "" || r.Path == "" {
			return fmt.Errorf("%w: every region needs a name and a path", tbspread.ErrConfiguration)
		}
	}
	for key, v := range map[string]string{
		"data.tags":       c.Data.Tags,
		"data.routines":   c.Data.Routines,
		"data.population": c.Data.Population,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s is not set", tbspread.ErrConfiguration, key)
		}
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Data.Regions {
		c.Data.Regions[i].Path = resolve(c.Data.Regions[i].Path)
	}
	c.Data.Tags = resolve(c.Data.Tags)
	c.Data.Routines = resolve(c.Data.Routines)
	c.Data.Population = resolve(c.Data.Population)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TBSPREAD_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("TBSPREAD_TICKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Ticks = n
		}
	}

	if v := os.Getenv("TBSPREAD_STOP_WHEN_CLEAR"); v != "" {
		config.Simulation.StopWhenClear = v == "true" || v == "1"
	}

	if v := os.Getenv("TBSPREAD_EXPOSURE_DISTANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Disease.ExposureDistance = f
		}
	}

	if v := os.Getenv("TBSPREAD_INFECTED_PERCENTAGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Disease.InfectedPercentage = f
		}
	}

	if v := os.Getenv("TBSPREAD_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("TBSPREAD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
