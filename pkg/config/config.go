// Package config provides configuration loading and management for slicermorph.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// LandmarkSuffix is the file suffix used to discover landmark files
		LandmarkSuffix string `yaml:"landmarkSuffix"`

		// SkipScaling disables centroid-size normalisation during alignment
		SkipScaling bool `yaml:"skipScaling"`

		// MaxIterations caps the number of Procrustes iterations
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance is the convergence threshold on the change in sum of squares
		Tolerance float64 `yaml:"tolerance"`

		// SortComponents orders principal components by decreasing variance
		SortComponents bool `yaml:"sortComponents"`
	} `yaml:"analysis"`

	// Output parameters
	Output struct {
		// Directory is the parent folder for analysis results
		Directory string `yaml:"directory"`

		// TimestampFolders writes every run into its own timestamped subfolder
		TimestampFolders bool `yaml:"timestampFolders"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Screen capture parameters
	Capture struct {
		Width    int    `yaml:"width"`
		Height   int    `yaml:"height"`
		Filename string `yaml:"filename"`
	} `yaml:"capture"`

	// Visualization parameters
	Visualization struct {
		// LollipopRadius is the tube radius of lollipop plots, in mean shape units
		LollipopRadius float64 `yaml:"lollipopRadius"`

		// TubeSides is the number of facets around each lollipop tube
		TubeSides int `yaml:"tubeSides"`

		// SphereResolution is the tessellation of landmark spheres and glyphs
		SphereResolution int `yaml:"sphereResolution"`

		// GlyphScale multiplies the size of landmark variance glyphs
		GlyphScale float64 `yaml:"glyphScale"`
	} `yaml:"visualization"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.LandmarkSuffix = ".fcsv"
	cfg.Analysis.SkipScaling = false
	cfg.Analysis.MaxIterations = 100
	cfg.Analysis.Tolerance = 1e-10
	cfg.Analysis.SortComponents = true

	cfg.Output.Directory = "."
	cfg.Output.TimestampFolders = true
	cfg.Output.Verbose = true

	cfg.Capture.Width = 1920
	cfg.Capture.Height = 1080
	cfg.Capture.Filename = "capture.png"

	cfg.Visualization.LollipopRadius = 0.7
	cfg.Visualization.TubeSides = 20
	cfg.Visualization.SphereResolution = 16
	cfg.Visualization.GlyphScale = 1.0

	return cfg
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Analysis.LandmarkSuffix) == "":
		return fmt.Errorf("analysis.landmarkSuffix must not be empty")
	case c.Analysis.MaxIterations <= 0:
		return fmt.Errorf("analysis.maxIterations must be positive, got %d", c.Analysis.MaxIterations)
	case c.Analysis.Tolerance <= 0:
		return fmt.Errorf("analysis.tolerance must be positive, got %g", c.Analysis.Tolerance)
	case c.Capture.Width <= 0 || c.Capture.Height <= 0:
		return fmt.Errorf("capture resolution must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	case strings.TrimSpace(c.Capture.Filename) == "":
		return fmt.Errorf("capture.filename must not be empty")
	case c.Visualization.TubeSides < 3:
		return fmt.Errorf("visualization.tubeSides must be at least 3, got %d", c.Visualization.TubeSides)
	case c.Visualization.SphereResolution < 4:
		return fmt.Errorf("visualization.sphereResolution must be at least 4, got %d", c.Visualization.SphereResolution)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML over the defaults so missing keys keep their default
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
