package watermark

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Span is a horizontal range expressed as fractions of the image width.
type Span struct {
	XMin float64 `yaml:"x_min"`
	XMax float64 `yaml:"x_max"`
}

// Region is a rectangle expressed as fractions of the image size.
type Region struct {
	XMin float64 `yaml:"x_min"`
	XMax float64 `yaml:"x_max"`
	YMin float64 `yaml:"y_min"`
	YMax float64 `yaml:"y_max"`
}

// Config holds every tunable of the locator. A Locator copies it on
// construction, so later edits to a Config value never affect a live Locator.
type Config struct {
	Keywords            []string `yaml:"keywords"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	Padding             int      `yaml:"padding"`
	Band                Span     `yaml:"band"`
	Fallback            Region   `yaml:"fallback"`
	DilationRadius      int      `yaml:"dilation_radius"`
}

// DefaultConfig returns the settings tuned for the eurogirlsescort.com watermark.
func DefaultConfig() Config {
	return Config{
		Keywords: []string{
			"euro", "girl", "escort", ".com", "eurogirlsescort",
			"eurogirls", "girlsescort", "ort.com", "uro", "irl",
			"scort", "ort", "com",
		},
		ConfidenceThreshold: 0.4,
		Padding:             12,
		Band:                Span{XMin: 0.04, XMax: 0.96},
		Fallback:            Region{XMin: 0.08, XMax: 0.92, YMin: 0.40, YMax: 0.48},
		DilationRadius:      2,
	}
}

// Validate reports the first setting that would make the locator misbehave.
func (c Config) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("%w: keyword set is empty", ErrInvalidInput)
	}
	for i, kw := range c.Keywords {
		if normalizeText(kw) == "" {
			return fmt.Errorf("%w: keyword %d is blank", ErrInvalidInput, i)
		}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %.2f outside [0,1]", ErrInvalidInput, c.ConfidenceThreshold)
	}
	if c.Padding < 0 {
		return fmt.Errorf("%w: padding %d is negative", ErrInvalidInput, c.Padding)
	}
	if c.DilationRadius < 0 {
		return fmt.Errorf("%w: dilation radius %d is negative", ErrInvalidInput, c.DilationRadius)
	}
	if err := checkFractions("band", c.Band.XMin, c.Band.XMax); err != nil {
		return err
	}
	if err := checkFractions("fallback x", c.Fallback.XMin, c.Fallback.XMax); err != nil {
		return err
	}
	return checkFractions("fallback y", c.Fallback.YMin, c.Fallback.YMax)
}

func checkFractions(name string, lo, hi float64) error {
	if lo < 0 || hi > 1 || lo >= hi {
		return fmt.Errorf("%w: %s range [%.2f,%.2f] must satisfy 0 <= min < max <= 1", ErrInvalidInput, name, lo, hi)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their defaults; a keywords list in the file replaces the default list.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read locator config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse locator config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
