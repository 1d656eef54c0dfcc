// Package config provides configuration loading and management for betaatten.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"betaatten/internal/models"
	"betaatten/pkg/attenuation"
	"betaatten/pkg/classification"
)

const (
	// AppName names the per-user configuration directory
	AppName = "betaatten"

	// DefaultConfigFile is looked up in the working directory
	DefaultConfigFile = ".betaatten.yaml"

	// userConfigFile is looked up under the XDG config directories
	userConfigFile = "config.yaml"
)

var (
	// ErrInvalidCores is returned when the worker count is not positive.
	ErrInvalidCores = errors.New("invalid number of cores: must be positive")

	// ErrInvalidThicknessError is returned for a negative thickness uncertainty.
	ErrInvalidThicknessError = errors.New("invalid thickness error: must be non-negative")

	// ErrInvalidCountType is returned when the attenuation count type is
	// Edge or None, which never describe a particle.
	ErrInvalidCountType = errors.New("invalid count type: must be alpha, beta or gamma")
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many frames are processed concurrently
		NumCores int `yaml:"numCores"`

		// IncludeGammas keeps gamma candidates in the cluster records
		IncludeGammas bool `yaml:"includeGammas"`
	} `yaml:"processing"`

	// Classification parameters
	Classification struct {
		// Policy names a built-in policy (sr90, simple). When Bands is set
		// it only labels the custom policy.
		Policy string `yaml:"policy"`

		// Bands overrides the built-in policy thresholds
		Bands []classification.Band `yaml:"bands,omitempty"`

		// Margins bound the sensor; clusters reaching them are edges
		Margins classification.FrameMargins `yaml:"margins"`
	} `yaml:"classification"`

	// Attenuation fit parameters
	Attenuation struct {
		// CountType is the cluster type counted at each thickness
		CountType models.ClusterType `yaml:"countType"`

		// ThicknessError is the absorber thickness uncertainty in mm
		ThicknessError float64 `yaml:"thicknessError"`
	} `yaml:"attenuation"`

	// Output parameters
	Output struct {
		// Database is the SQLite file runs are recorded in; empty disables it
		Database string `yaml:"database"`

		// Plot writes the attenuation and cluster size plots
		Plot bool `yaml:"plot"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.IncludeGammas = false

	cfg.Classification.Policy = classification.PolicySr90().Name
	cfg.Classification.Margins = classification.DefaultFrameMargins()

	cfg.Attenuation.CountType = models.Beta
	cfg.Attenuation.ThicknessError = attenuation.DefaultThicknessError

	cfg.Output.Plot = true
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks every section and the classification policy
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCores, c.Processing.NumCores)
	}
	if err := ValidateThicknessError(c.Attenuation.ThicknessError); err != nil {
		return err
	}
	switch c.Attenuation.CountType {
	case models.Alpha, models.Beta, models.Gamma:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCountType, c.Attenuation.CountType)
	}
	_, err := c.Classifier()
	return err
}

// ValidateThicknessError rejects a negative or NaN thickness uncertainty
func ValidateThicknessError(e float64) error {
	if math.IsNaN(e) || e < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidThicknessError, e)
	}
	return nil
}

// ClassificationPolicy returns the configured policy: the custom bands when
// present, otherwise the named built-in policy.
func (c *Config) ClassificationPolicy() (classification.Policy, error) {
	if len(c.Classification.Bands) > 0 {
		name := c.Classification.Policy
		if name == "" {
			name = "custom"
		}
		return classification.Policy{Name: name, Bands: c.Classification.Bands}, nil
	}
	return classification.PolicyByName(c.Classification.Policy)
}

// Classifier builds the classifier described by the configuration
func (c *Config) Classifier() (*classification.Classifier, error) {
	policy, err := c.ClassificationPolicy()
	if err != nil {
		return nil, err
	}
	return classification.NewClassifier(c.Classification.Margins, policy)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // user-provided config path
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// UserConfigPath returns the per-user configuration file location
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, userConfigFile)
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .betaatten.yaml in the current directory
// 3. Look for betaatten/config.yaml in the XDG config directories
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if path, err := xdg.SearchConfigFile(filepath.Join(AppName, userConfigFile)); err == nil {
		return path
	}

	return ""
}
