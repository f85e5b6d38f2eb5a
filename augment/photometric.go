package augment

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"

	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
)

// HSV randomly scales the saturation and value channels of an RGB image
type HSV struct {
	// Saturation is the maximum gain change, 0.5 gives gains from 0.5 to 1.5
	Saturation float64
	// Value is the maximum brightness gain change
	Value float64
}

// Apply implements Transform
func (t HSV) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	sGain := uniform(rng, 1-t.Saturation, 1+t.Saturation)
	vGain := uniform(rng, 1-t.Value, 1+t.Value)

	hsv := gocv.NewMat()
	defer hsv.Close()

	gocv.CvtColor(img, &hsv, gocv.ColorRGBToHSV)

	data, err := hsv.DataPtrUint8()

	if err != nil {
		return gocv.Mat{}, nil, fmt.Errorf("error accessing hsv data: %w", err)
	}

	for i := 0; i+2 < len(data); i += 3 {
		data[i+1] = clampUint8(float64(data[i+1]) * sGain)
		data[i+2] = clampUint8(float64(data[i+2]) * vGain)
	}

	dst := gocv.NewMat()
	gocv.CvtColor(hsv, &dst, gocv.ColorHSVToRGB)

	return dst, copyQuads(quads), nil
}

// Noise adds gaussian noise to every pixel
type Noise struct {
	// Sigma is the noise standard deviation as a fraction of the 0-255
	// pixel range
	Sigma float64
}

// Apply implements Transform
func (t Noise) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	dst := img.Clone()

	data, err := dst.DataPtrUint8()

	if err != nil {
		dst.Close()
		return gocv.Mat{}, nil, fmt.Errorf("error accessing image data: %w", err)
	}

	std := t.Sigma * 255

	for i := range data {
		data[i] = clampUint8(float64(data[i]) + rng.NormFloat64()*std)
	}

	return dst, copyQuads(quads), nil
}

// Blur applies a gaussian blur with a random sigma up to Sigma
type Blur struct {
	Sigma float64
}

// minBlurSigma is the smallest sigma worth blurring with
const minBlurSigma = 0.1

// Apply implements Transform
func (t Blur) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	sigma := rng.Float64() * t.Sigma

	if sigma < minBlurSigma {
		return img.Clone(), copyQuads(quads), nil
	}

	dst := gocv.NewMat()
	gocv.GaussianBlur(img, &dst, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)

	return dst, copyQuads(quads), nil
}

func clampUint8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func copyQuads(quads []geometry.Quad) []geometry.Quad {
	out := make([]geometry.Quad, len(quads))
	copy(out, quads)
	return out
}
