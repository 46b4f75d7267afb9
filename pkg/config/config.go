// Package config provides configuration loading and management for climbrate.
// It handles loading configuration from YAML or legacy key=value files and
// provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"climbrate/internal/models"
)

// ErrInvalidConfig is returned when a configuration cannot be corrected safely
var ErrInvalidConfig = errors.New("invalid configuration")

// Regression selection methods
const (
	MethodMaxR   = "max_r"
	MethodMinErr = "min_err"
)

// Config represents one project's detection parameters.
// Keys keep the names used by existing .cfg files.
type Config struct {
	// Region of interest
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`

	// Frame ranges; CropN of 0 means through the last frame
	CheckFrame int `yaml:"check_frame"`
	Blank0     int `yaml:"blank_0"`
	BlankN     int `yaml:"blank_n"`
	Crop0      int `yaml:"crop_0"`
	CropN      int `yaml:"crop_n"`

	// Spot detection and classification
	Threshold Threshold `yaml:"threshold"`
	Diameter  int       `yaml:"diameter"`
	MinMass   float64   `yaml:"minmass"`
	MaxSize   float64   `yaml:"maxsize"`
	EccLow    float64   `yaml:"ecc_low"`
	EccHigh   float64   `yaml:"ecc_high"`

	// Binning and regression
	Vials  int    `yaml:"vials"`
	Window int    `yaml:"window"`
	Method string `yaml:"method"`

	// Unit conversion
	PixelToCm      float64 `yaml:"pixel_to_cm"`
	FrameRate      float64 `yaml:"frame_rate"`
	ConvertToCmSec bool    `yaml:"convert_to_cm_sec"`

	// Experiment naming
	NamingConvention string `yaml:"naming_convention"`
	VialIDVars       int    `yaml:"vial_id_vars"`

	// Outlier trimming
	TrimOutliers bool    `yaml:"trim_outliers"`
	OutlierTB    float64 `yaml:"outlier_TB"`
	OutlierLR    float64 `yaml:"outlier_LR"`

	// Project layout
	PathProject       string `yaml:"path_project"`
	FileSuffix        string `yaml:"file_suffix"`
	OptimizationPlots bool   `yaml:"optimization_plots"`
	LedgerPath        string `yaml:"ledger_path"`
}

// Threshold is either a fixed signal value or the literal "auto"
type Threshold struct {
	Auto  bool
	Value float64
}

// AutoThreshold returns a threshold computed from the data
func AutoThreshold() Threshold {
	return Threshold{Auto: true}
}

// FixedThreshold returns a constant threshold
func FixedThreshold(v float64) Threshold {
	return Threshold{Value: v}
}

func (t Threshold) String() string {
	if t.Auto {
		return "auto"
	}
	return fmt.Sprintf("%g", t.Value)
}

// UnmarshalYAML accepts a number or the string "auto"
func (t *Threshold) UnmarshalYAML(node *yaml.Node) error {
	if strings.EqualFold(strings.TrimSpace(node.Value), "auto") {
		*t = AutoThreshold()
		return nil
	}
	var v float64
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("threshold must be a number or \"auto\", got %q", node.Value)
	}
	*t = FixedThreshold(v)
	return nil
}

// MarshalYAML writes "auto" or the numeric value
func (t Threshold) MarshalYAML() (interface{}, error) {
	if t.Auto {
		return "auto", nil
	}
	return t.Value, nil
}

// ROI returns the configured region of interest
func (c *Config) ROI() models.ROI {
	return models.ROI{X: c.X, Y: c.Y, W: c.W, H: c.H}
}

// CropRange returns the analysed frame range
func (c *Config) CropRange() models.FrameRange {
	return models.FrameRange{First: c.Crop0, Last: c.CropN}
}

// BlankRange returns the background sample range
func (c *Config) BlankRange() models.FrameRange {
	return models.FrameRange{First: c.Blank0, Last: c.BlankN}
}

// NamingFields returns the naming convention split into field names
func (c *Config) NamingFields() []string {
	if c.NamingConvention == "" {
		return nil
	}
	return strings.Split(c.NamingConvention, "_")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.W = 640
	cfg.H = 480
	cfg.BlankN = 145
	cfg.CropN = 145

	cfg.Threshold = AutoThreshold()
	cfg.Diameter = 7
	cfg.MinMass = 100
	cfg.MaxSize = 11
	cfg.EccLow = 0
	cfg.EccHigh = 1

	cfg.Vials = 1
	cfg.Window = 50
	cfg.Method = MethodMaxR

	cfg.PixelToCm = 1
	cfg.FrameRate = 29

	cfg.NamingConvention = "genotype_sex_date_rep"
	cfg.VialIDVars = 2

	cfg.OutlierTB = 1
	cfg.OutlierLR = 3

	cfg.PathProject = "."
	cfg.FileSuffix = "h264"

	return cfg
}

// LoadConfig loads configuration from a YAML (.yaml, .yml) or legacy
// key=value (.cfg) file. Keys not listed in Config are rejected.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(configPath), ".cfg") {
		data, err = legacyToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// legacyToYAML converts name=value lines into a YAML mapping. Lines starting
// with '#', a space or empty lines are ignored, and a repeated key keeps its
// last value.
func legacyToYAML(data []byte) ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	index := make(map[string]int)

	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, " ") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected name=value, got %q", n+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(value), &doc); err != nil {
			return nil, fmt.Errorf("line %d: bad value for %s: %w", n+1, key, err)
		}
		valueNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}
		if len(doc.Content) > 0 {
			valueNode = doc.Content[0]
		}

		if i, seen := index[key]; seen {
			mapping.Content[i+1] = valueNode
			continue
		}
		index[key] = len(mapping.Content)
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, valueNode)
	}

	return yaml.Marshal(mapping)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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
