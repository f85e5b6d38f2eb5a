package obbdata

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Sentinel marks padded box slots in a batch, it is never a valid coordinate
const Sentinel float32 = -1

// RotatedParams is the number of box parameters in a sample produced by the
// Dataset, 5 rotated box parameters followed by the class id
const RotatedParams = 6

// QuadParams is the number of box parameters for quadrilateral encoded
// boxes, 8 coordinates followed by the class id
const QuadParams = 9

// Boxes is a row major list of boxes where every row has the same number
// of parameters
type Boxes struct {
	params int
	data   []float32
}

// NewBoxes returns an empty box list with the given number of parameters
// per box
func NewBoxes(params int) *Boxes {
	return &Boxes{params: params}
}

// Append adds a box, row must have exactly Params() values
func (b *Boxes) Append(row ...float32) error {

	if len(row) != b.params {
		return fmt.Errorf("box has %d parameters, expected %d", len(row), b.params)
	}

	b.data = append(b.data, row...)
	return nil
}

// Params returns the number of parameters per box
func (b *Boxes) Params() int {
	return b.params
}

// Len returns the number of boxes
func (b *Boxes) Len() int {
	if b.params == 0 {
		return 0
	}
	return len(b.data) / b.params
}

// Row returns the parameters of box i
func (b *Boxes) Row(i int) []float32 {
	return b.data[i*b.params : (i+1)*b.params]
}

// Data returns the row major parameter buffer
func (b *Boxes) Data() []float32 {
	return b.data
}

// Scaled returns a copy of the boxes with their coordinates multiplied by
// the x and y scale factors.  Quadrilateral boxes (8 or more parameters) have
// their first 8 values scaled alternating sx, sy.  Rotated boxes have their
// first 4 values scaled by sx, sy, sx, sy.  Angle and class id are never
// scaled
func (b *Boxes) Scaled(sx, sy float32) *Boxes {

	out := &Boxes{
		params: b.params,
		data:   make([]float32, len(b.data)),
	}

	copy(out.data, b.data)

	coords := 4

	if b.params >= 8 {
		coords = 8
	}

	if coords > b.params {
		coords = b.params
	}

	for i := 0; i < out.Len(); i++ {
		row := out.Row(i)

		for j := 0; j < coords; j++ {
			if j%2 == 0 {
				row[j] *= sx
			} else {
				row[j] *= sy
			}
		}
	}

	return out
}

// Sample is a single training example returned by the Dataset
type Sample struct {
	// Image is the RGB image, uint8 3 channels
	Image gocv.Mat
	// Boxes are the annotations of the image, possibly empty
	Boxes *Boxes
	// Path is the image source path
	Path string
}

// Close frees the image memory
func (s *Sample) Close() error {
	return s.Image.Close()
}
