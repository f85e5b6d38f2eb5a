package augment

import (
	"fmt"
)

// StepConfig is the configuration of one pipeline step
type StepConfig struct {
	// Kind is one of hsv, hflip, vflip, affine, noise, blur, clip
	Kind string `yaml:"kind"`
	// Params are the transform parameters, missing values use defaults
	Params map[string]float64 `yaml:"params,omitempty"`
	// Probability of applying the step, from 0 to 1
	Probability float64 `yaml:"probability"`
}

// DefaultConfig returns the default augmentation steps
// - HSV saturation 0.5, value 0.5 at p=0.5
// - Horizontal flip at p=0.5
// - Vertical flip at p=0.5
// - Affine rotation 20 degrees, translate 0.1, scale 0.2 at p=0.5
// - Noise sigma 0.02 at p=0.2
// - Blur sigma 1.3 at p=0.5
// - Clip boxes less than 10% visible at p=1
func DefaultConfig() []StepConfig {
	return []StepConfig{
		{Kind: "hsv", Params: map[string]float64{"saturation": 0.5, "value": 0.5}, Probability: 0.5},
		{Kind: "hflip", Probability: 0.5},
		{Kind: "vflip", Probability: 0.5},
		{Kind: "affine", Params: map[string]float64{"degree": 20, "translate": 0.1, "scale": 0.2}, Probability: 0.5},
		{Kind: "noise", Params: map[string]float64{"sigma": 0.02}, Probability: 0.2},
		{Kind: "blur", Params: map[string]float64{"sigma": 1.3}, Probability: 0.5},
		{Kind: "clip", Params: map[string]float64{"min_visibility": 0.1}, Probability: 1},
	}
}

// FromConfig builds a Pipeline from the step configurations
func FromConfig(cfgs []StepConfig) (*Pipeline, error) {

	steps := make([]Step, 0, len(cfgs))

	for i, cfg := range cfgs {

		if cfg.Probability < 0 || cfg.Probability > 1 {
			return nil, fmt.Errorf("step %d (%s): probability %f not in range [0,1]",
				i, cfg.Kind, cfg.Probability)
		}

		tr, err := newTransform(cfg)

		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		steps = append(steps, Step{
			Kind:        cfg.Kind,
			Transform:   tr,
			Probability: cfg.Probability,
		})
	}

	return New(steps...), nil
}

// newTransform creates the Transform for the step kind
func newTransform(cfg StepConfig) (Transform, error) {

	p := func(key string, def float64) float64 {
		if v, ok := cfg.Params[key]; ok {
			return v
		}
		return def
	}

	switch cfg.Kind {
	case "hsv":
		return HSV{Saturation: p("saturation", 0.5), Value: p("value", 0.5)}, nil
	case "hflip":
		return HorizontalFlip{}, nil
	case "vflip":
		return VerticalFlip{}, nil
	case "affine":
		return Affine{
			Degree:    p("degree", 20),
			Translate: p("translate", 0.1),
			Scale:     p("scale", 0.2),
		}, nil
	case "noise":
		return Noise{Sigma: p("sigma", 0.02)}, nil
	case "blur":
		return Blur{Sigma: p("sigma", 1.3)}, nil
	case "clip":
		return ClipToImage{MinVisibility: p("min_visibility", 0.1)}, nil
	}

	return nil, fmt.Errorf("unknown transform kind %q", cfg.Kind)
}
