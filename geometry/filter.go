package geometry

import (
	"math"
)

// FilterParams defines the thresholds used by the Validity Filter to decide
// which rotated boxes are kept after augmentation
type FilterParams struct {
	// MinSize is the size in pixels both the width and height of a box must
	// exceed to be kept
	MinSize float32
	// MaxAspectRatio is the maximum allowed ratio between the longer and
	// shorter edge of a box.  A value of 0 disables the check
	MaxAspectRatio float32
}

// DefaultFilterParams returns an instance of FilterParams configured with
// default values
// - Minimum Size: 2 pixels
// - Maximum Aspect Ratio: disabled
func DefaultFilterParams() FilterParams {
	return FilterParams{
		MinSize:        2,
		MaxAspectRatio: 0,
	}
}

// Valid returns true if the box is large enough and has a finite angle in
// the canonical range
func (p FilterParams) Valid(r RotatedBox) bool {

	if !finite(r.CX) || !finite(r.CY) || !finite(r.Width) || !finite(r.Height) {
		return false
	}

	if !(r.Width > p.MinSize && r.Height > p.MinSize) {
		return false
	}

	if !finite(r.Angle) || r.Angle <= -halfPi32 || r.Angle > halfPi32 {
		return false
	}

	if p.MaxAspectRatio > 0 {
		ratio := math.Max(float64(r.Width/r.Height), float64(r.Height/r.Width))

		if ratio >= float64(p.MaxAspectRatio) {
			return false
		}
	}

	return true
}

// ValidMask returns a mask with one entry per box set to true if the box
// passes the filter.  An all false mask is a legitimate outcome
func ValidMask(boxes []RotatedBox, p FilterParams) []bool {
	mask := make([]bool, len(boxes))

	for i, b := range boxes {
		mask[i] = p.Valid(b)
	}

	return mask
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
