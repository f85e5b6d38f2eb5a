package obbdata

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/preprocess"
	"gocv.io/x/gocv"
	"k8s.io/klog/v2"
)

// imageChannels is the number of channels of every batch image
const imageChannels = 3

// Collate resizes the samples to one randomly chosen target scale and pads
// them into a Batch.  The scale is picked from cfg.Scales with rng and
// snapped down to a multiple of cfg.Multiple.  Images are written to the top
// left of their slot with zero padding, box coordinates are multiplied by
// the resize factor of their sample and unused box rows are set to Sentinel.
// The samples are not modified
func Collate(samples []*Sample, cfg CollateConfig, rng *rand.Rand) (*Batch, error) {

	if len(samples) == 0 {
		return nil, ErrEmptyBatch
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for i, s := range samples {
		if s == nil || s.Boxes == nil {
			return nil, fmt.Errorf("sample %d has no boxes list", i)
		}
	}

	params := samples[0].Boxes.Params()

	for i, s := range samples {
		if s.Boxes.Params() != params {
			return nil, &ShapeMismatchError{Index: i, Want: params, Got: s.Boxes.Params()}
		}
	}

	scale := cfg.Scales[rng.IntN(len(cfg.Scales))]
	target := preprocess.SnapScale(scale, cfg.Multiple)

	if target <= 0 {
		return nil, fmt.Errorf("scale %d is smaller than multiple %d", scale, cfg.Multiple)
	}

	rescaler := preprocess.NewRescaler(target, cfg.KeepRatio)

	resized := make([]gocv.Mat, len(samples))
	scales := make([][2]float32, len(samples))

	defer func() {
		for i := range resized {
			resized[i].Close()
		}
	}()

	maxHeight, maxWidth, maxBoxes := 0, 0, 0

	for i, s := range samples {
		resized[i] = gocv.NewMat()

		sx, sy, err := rescaler.Resize(s.Image, &resized[i])

		if err != nil {
			return nil, errors.Wrapf(err, "error resizing sample %d", i)
		}

		scales[i] = [2]float32{sx, sy}

		maxHeight = max(maxHeight, resized[i].Rows())
		maxWidth = max(maxWidth, resized[i].Cols())
		maxBoxes = max(maxBoxes, s.Boxes.Len())
	}

	batch := NewBatch(len(samples), maxHeight, maxWidth, imageChannels, maxBoxes, params)
	batch.TargetSize = target

	norm := preprocess.ImageNetNormalizer()

	for i, s := range samples {

		chw, err := norm.ToCHW(resized[i])

		if err != nil {
			return nil, errors.Wrapf(err, "error normalizing sample %d", i)
		}

		err = batch.AddImageAt(i, chw, resized[i].Rows(), resized[i].Cols())

		if err != nil {
			return nil, errors.Wrapf(err, "error adding image of sample %d", i)
		}

		err = batch.AddBoxesAt(i, s.Boxes.Scaled(scales[i][0], scales[i][1]))

		if err != nil {
			return nil, errors.Wrapf(err, "error adding boxes of sample %d", i)
		}

		batch.Paths[i] = s.Path
		batch.Scales[i] = scales[i]
	}

	klog.V(1).Infof("collated %d samples at scale %d into %dx%d with %d box slots",
		len(samples), target, maxWidth, maxHeight, maxBoxes)

	return batch, nil
}

// Collator collates batches with its own random source for scale
// selection.  A Collator is not safe for concurrent use
type Collator struct {
	cfg CollateConfig
	rng *rand.Rand
}

// NewCollator returns a Collator for the given parameters, a seed of 0
// seeds the random source randomly
func NewCollator(cfg CollateConfig, seed uint64) (*Collator, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var src rand.Source

	if seed != 0 {
		src = rand.NewPCG(seed, seed)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Collator{
		cfg: cfg,
		rng: rand.New(src),
	}, nil
}

// Collate collates the samples into a Batch
func (c *Collator) Collate(samples []*Sample) (*Batch, error) {
	return Collate(samples, c.cfg, c.rng)
}

// Config returns the collation parameters
func (c *Collator) Config() CollateConfig {
	return c.cfg
}
