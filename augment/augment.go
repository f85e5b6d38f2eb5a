package augment

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
)

// Augmenter jointly transforms an image and the quadrilateral boxes placed
// on it.  Any geometric change made to the image must be applied identically
// to every box so their correspondence is preserved.  The returned image is
// owned by the caller, the input image is left untouched
type Augmenter interface {
	Transform(img gocv.Mat, quads []geometry.Quad, rng *rand.Rand) (gocv.Mat, []geometry.Quad, error)
}

// Transform is a single augmentation operation.  Apply must return a new
// Mat and a new quad slice with the same length and order as quads
type Transform interface {
	Apply(img gocv.Mat, quads []geometry.Quad, rng *rand.Rand) (gocv.Mat, []geometry.Quad, error)
}

// Step is a Transform applied with the given probability
type Step struct {
	// Kind names the transform for error reporting
	Kind        string
	Transform   Transform
	Probability float64
}

// Pipeline applies an ordered list of steps, each step is randomly applied
// or skipped according to its probability
type Pipeline struct {
	steps []Step
}

// New returns a Pipeline of the given steps
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the pipeline steps
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Transform runs the image and quads through the pipeline
func (p *Pipeline) Transform(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	cur := img.Clone()
	curQuads := append([]geometry.Quad(nil), quads...)

	for _, step := range p.steps {

		if rng.Float64() >= step.Probability {
			continue
		}

		next, nextQuads, err := step.Transform.Apply(cur, curQuads, rng)

		if err != nil {
			cur.Close()
			return gocv.Mat{}, nil, errors.Wrapf(err, "augmentation step %s failed", step.Kind)
		}

		if len(nextQuads) != len(curQuads) {
			next.Close()
			cur.Close()
			return gocv.Mat{}, nil, errors.Errorf("augmentation step %s returned %d boxes, expected %d",
				step.Kind, len(nextQuads), len(curQuads))
		}

		cur.Close()
		cur, curQuads = next, nextQuads
	}

	return cur, curQuads, nil
}

// uniform returns a random value in [lo, hi)
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
