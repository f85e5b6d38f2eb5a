package geometry

import (
	"fmt"
	"math"
)

// Quad is a quadrilateral box made up of 4 ordered vertices in the form
// x1,y1,x2,y2,x3,y3,x4,y4 in pixel coordinates of the source image
type Quad [8]float32

// RotatedBox is an oriented rectangle defined by its center, extents and
// rotation angle.  Angle is in radians measured from the image x-axis to the
// longer edge of the box and is kept within (-Pi/2, Pi/2]
type RotatedBox struct {
	CX     float32
	CY     float32
	Width  float32
	Height float32
	Angle  float32
}

// BoxMode defines how a RotatedBox is encoded into its 5 training parameters
type BoxMode int

const (
	// ModeXYWHA encodes as center x, center y, width, height, angle
	ModeXYWHA BoxMode = iota
	// ModeXYXYA encodes the unrotated extents as top left x, top left y,
	// bottom right x, bottom right y followed by the angle
	ModeXYXYA
)

// ParseBoxMode returns the BoxMode for its configuration name
func ParseBoxMode(s string) (BoxMode, error) {
	switch s {
	case "", "xywha":
		return ModeXYWHA, nil
	case "xyxya":
		return ModeXYXYA, nil
	}

	return ModeXYWHA, fmt.Errorf("unknown box mode %q, expected xywha|xyxya", s)
}

// String returns the configuration name of the mode
func (m BoxMode) String() string {
	if m == ModeXYXYA {
		return "xyxya"
	}
	return "xywha"
}

// Point returns the x, y coordinates of vertex i
func (q Quad) Point(i int) (float32, float32) {
	return q[2*i], q[2*i+1]
}

// Area returns the absolute area enclosed by the quadrilateral using the
// shoelace formula
func (q Quad) Area() float32 {
	var sum float64

	for i := 0; i < 4; i++ {
		x1, y1 := q.Point(i)
		x2, y2 := q.Point((i + 1) % 4)
		sum += float64(x1)*float64(y2) - float64(x2)*float64(y1)
	}

	return float32(math.Abs(sum) / 2)
}

// Scale multiplies the x coordinates by sx and y coordinates by sy
func (q Quad) Scale(sx, sy float32) Quad {
	for i := 0; i < 4; i++ {
		q[2*i] *= sx
		q[2*i+1] *= sy
	}
	return q
}

// Encode returns the 5 parameters of the box in the given mode
func (r RotatedBox) Encode(mode BoxMode) [5]float32 {
	if mode == ModeXYXYA {
		x1 := r.CX - r.Width/2
		y1 := r.CY - r.Height/2

		return [5]float32{x1, y1, x1 + r.Width, y1 + r.Height, r.Angle}
	}

	return [5]float32{r.CX, r.CY, r.Width, r.Height, r.Angle}
}

// Decode builds a RotatedBox from its 5 encoded parameters
func Decode(p [5]float32, mode BoxMode) RotatedBox {
	if mode == ModeXYXYA {
		w := p[2] - p[0]
		h := p[3] - p[1]

		return RotatedBox{CX: p[0] + w/2, CY: p[1] + h/2, Width: w, Height: h, Angle: p[4]}
	}

	return RotatedBox{CX: p[0], CY: p[1], Width: p[2], Height: p[3], Angle: p[4]}
}
