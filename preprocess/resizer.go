package preprocess

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Rescaler defines the struct used for resizing images to a target scale
type Rescaler struct {
	// targetSize is the size the longer image side is scaled to when keeping
	// aspect ratio, otherwise both sides are scaled to it
	targetSize int
	// keepRatio preserves the image aspect ratio
	keepRatio bool
}

// NewRescaler returns a rescaler for the given target size
func NewRescaler(targetSize int, keepRatio bool) *Rescaler {
	return &Rescaler{
		targetSize: targetSize,
		keepRatio:  keepRatio,
	}
}

// Scales calculates the x and y scale factors and the resized dimensions for
// an image of the given source size
func (r *Rescaler) Scales(srcWidth, srcHeight int) (sx, sy float32, width, height int) {

	if !r.keepRatio {
		sx = float32(r.targetSize) / float32(srcWidth)
		sy = float32(r.targetSize) / float32(srcHeight)
		return sx, sy, r.targetSize, r.targetSize
	}

	scale := float64(r.targetSize) / float64(max(srcWidth, srcHeight))

	width = int(math.Round(float64(srcWidth) * scale))
	height = int(math.Round(float64(srcHeight) * scale))

	return float32(scale), float32(scale), max(width, 1), max(height, 1)
}

// Resize scales src into dest returning the x and y scale factors applied
func (r *Rescaler) Resize(src gocv.Mat, dest *gocv.Mat) (sx, sy float32, err error) {

	if src.Empty() {
		return 0, 0, fmt.Errorf("cannot resize empty image")
	}

	sx, sy, width, height := r.Scales(src.Cols(), src.Rows())

	gocv.Resize(src, dest, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

	return sx, sy, nil
}

// TargetSize returns the scale images are resized to
func (r *Rescaler) TargetSize() int {
	return r.targetSize
}

// SnapScale rounds the scale down to the nearest multiple
func SnapScale(scale, multiple int) int {
	return (scale / multiple) * multiple
}
