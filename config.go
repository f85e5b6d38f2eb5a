package obbdata

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/augment"
	"github.com/swdee/go-obbdata/geometry"
	"gopkg.in/yaml.v3"
)

// CollateConfig defines the batch collation parameters
type CollateConfig struct {
	// Scales are the target scales one is randomly chosen from per batch
	Scales []int `yaml:"scales"`
	// KeepRatio preserves the image aspect ratio when resizing
	KeepRatio bool `yaml:"keep_ratio"`
	// Multiple the chosen scale is snapped down to
	Multiple int `yaml:"multiple"`
}

// DefaultCollateConfig returns the default collation parameters
// - Scales 800
// - KeepRatio true
// - Multiple 32
func DefaultCollateConfig() CollateConfig {
	return CollateConfig{
		Scales:    []int{800},
		KeepRatio: true,
		Multiple:  32,
	}
}

// Validate checks the collation parameters
func (c CollateConfig) Validate() error {

	if len(c.Scales) == 0 {
		return errors.New("collate: at least one scale is required")
	}

	for _, s := range c.Scales {
		if s <= 0 {
			return fmt.Errorf("collate: scale %d must be positive", s)
		}
	}

	if c.Multiple <= 0 {
		return fmt.Errorf("collate: multiple %d must be positive", c.Multiple)
	}

	return nil
}

// Config defines the dataset and collation settings, it can be loaded from
// a YAML file
type Config struct {
	// ImageSet is the path to the index file listing one image per line
	ImageSet string `yaml:"image_set"`
	// Level selects the built in class table
	Level int `yaml:"level"`
	// ClassesFile is an optional file of class names, one per line.  When
	// set it replaces the Level class table
	ClassesFile string `yaml:"classes_file,omitempty"`
	// Augment enables the augmentation pipeline
	Augment bool `yaml:"augment"`
	// Pipeline are the augmentation steps, empty uses the default steps
	Pipeline []augment.StepConfig `yaml:"pipeline,omitempty"`
	// BoxMode is the rotated box encoding, xywha or xyxya
	BoxMode string `yaml:"box_mode"`
	// MinBoxSize is the size width and height must exceed to keep a box
	MinBoxSize float32 `yaml:"min_box_size"`
	// MaxAspectRatio drops boxes with a larger aspect ratio, 0 disables
	MaxAspectRatio float32 `yaml:"max_aspect_ratio"`
	// Collate are the batch collation parameters
	Collate CollateConfig `yaml:"collate"`
	// Seed for sample augmentation and scale selection, 0 seeds randomly
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the default configuration
// - Level 1 (DOTA v1 classes)
// - Augment false
// - BoxMode xywha
// - MinBoxSize 2
// - MaxAspectRatio 0
// - Collate see DefaultCollateConfig
func DefaultConfig() Config {
	filter := geometry.DefaultFilterParams()

	return Config{
		Level:          1,
		BoxMode:        geometry.ModeXYWHA.String(),
		MinBoxSize:     filter.MinSize,
		MaxAspectRatio: filter.MaxAspectRatio,
		Collate:        DefaultCollateConfig(),
	}
}

// LoadConfig reads a YAML configuration file, unset fields keep their
// default values
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, errors.Wrapf(err, "error reading config file")
	}

	err = yaml.Unmarshal(data, &cfg)

	if err != nil {
		return cfg, errors.Wrapf(err, "error decoding config file %s", path)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration values
func (c Config) Validate() error {

	if c.ImageSet == "" {
		return errors.New("image_set is required")
	}

	return c.validateSettings()
}

// validateSettings checks every value except the image set
func (c Config) validateSettings() error {

	if c.ClassesFile == "" {
		if _, err := ClassesForLevel(c.Level); err != nil {
			return err
		}
	}

	if _, err := geometry.ParseBoxMode(c.BoxMode); err != nil {
		return err
	}

	if c.MinBoxSize < 0 {
		return fmt.Errorf("min_box_size %f must not be negative", c.MinBoxSize)
	}

	if c.MaxAspectRatio < 0 {
		return fmt.Errorf("max_aspect_ratio %f must not be negative", c.MaxAspectRatio)
	}

	return c.Collate.Validate()
}

// FilterParams returns the Validity Filter parameters of the configuration
func (c Config) FilterParams() geometry.FilterParams {
	return geometry.FilterParams{
		MinSize:        c.MinBoxSize,
		MaxAspectRatio: c.MaxAspectRatio,
	}
}

// Classes returns the class table selected by the configuration
func (c Config) Classes() (*ClassMap, error) {

	if c.ClassesFile == "" {
		return ClassesForLevel(c.Level)
	}

	names, err := LoadLabels(c.ClassesFile)

	if err != nil {
		return nil, errors.Wrapf(err, "error loading classes file")
	}

	return NewClassMap(names)
}

// Augmenter returns the augmentation pipeline of the configuration or nil
// when augmentation is disabled
func (c Config) Augmenter() (augment.Augmenter, error) {

	if !c.Augment {
		return nil, nil
	}

	steps := c.Pipeline

	if len(steps) == 0 {
		steps = augment.DefaultConfig()
	}

	pipeline, err := augment.FromConfig(steps)

	if err != nil {
		return nil, errors.Wrapf(err, "error building augmentation pipeline")
	}

	return pipeline, nil
}
