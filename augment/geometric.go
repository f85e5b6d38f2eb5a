package augment

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// HorizontalFlip mirrors the image and boxes about the vertical axis
type HorizontalFlip struct{}

// Apply implements Transform
func (HorizontalFlip) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	dst := gocv.NewMat()
	gocv.Flip(img, &dst, 1)

	w := float32(img.Cols())
	out := make([]geometry.Quad, len(quads))

	for i, q := range quads {
		for v := 0; v < 4; v++ {
			q[2*v] = w - q[2*v]
		}
		out[i] = q
	}

	return dst, out, nil
}

// VerticalFlip mirrors the image and boxes about the horizontal axis
type VerticalFlip struct{}

// Apply implements Transform
func (VerticalFlip) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	dst := gocv.NewMat()
	gocv.Flip(img, &dst, 0)

	h := float32(img.Rows())
	out := make([]geometry.Quad, len(quads))

	for i, q := range quads {
		for v := 0; v < 4; v++ {
			q[2*v+1] = h - q[2*v+1]
		}
		out[i] = q
	}

	return dst, out, nil
}

// Affine applies a random rotation, scale and translation about the image
// center
type Affine struct {
	// Degree is the maximum rotation in degrees either direction
	Degree float64
	// Translate is the maximum shift as a fraction of the image size
	Translate float64
	// Scale is the maximum scale change, 0.2 scales between 0.8 and 1.2
	Scale float64
}

// Apply implements Transform
func (a Affine) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	w, h := img.Cols(), img.Rows()

	angle := uniform(rng, -a.Degree, a.Degree)
	scale := uniform(rng, 1-a.Scale, 1+a.Scale)
	tx := uniform(rng, -a.Translate, a.Translate) * float64(w)
	ty := uniform(rng, -a.Translate, a.Translate) * float64(h)

	m := AffineMatrix(angle, scale, tx, ty, w, h)

	warp := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer warp.Close()

	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			warp.SetDoubleAt(r, c, m.At(r, c))
		}
	}

	dst := gocv.NewMat()
	gocv.WarpAffine(img, &dst, warp, image.Pt(w, h))

	return dst, TransformQuads(m, quads), nil
}

// AffineMatrix returns the 3x3 homogeneous matrix rotating by angle degrees
// and scaling about the center of a width x height image, followed by a
// translation of tx, ty pixels
func AffineMatrix(angle, scale, tx, ty float64, width, height int) *mat.Dense {

	cx := float64(width) / 2
	cy := float64(height) / 2

	rad := angle * math.Pi / 180
	cos := math.Cos(rad) * scale
	sin := math.Sin(rad) * scale

	toOrigin := mat.NewDense(3, 3, []float64{
		1, 0, -cx,
		0, 1, -cy,
		0, 0, 1,
	})

	rotate := mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})

	back := mat.NewDense(3, 3, []float64{
		1, 0, cx + tx,
		0, 1, cy + ty,
		0, 0, 1,
	})

	var m mat.Dense
	m.Product(back, rotate, toOrigin)

	return &m
}

// TransformQuads maps every vertex of the quads through the 3x3 affine
// matrix m
func TransformQuads(m mat.Matrix, quads []geometry.Quad) []geometry.Quad {

	out := make([]geometry.Quad, len(quads))

	if len(quads) == 0 {
		return out
	}

	// homogeneous vertex coordinates, one column per vertex
	pts := mat.NewDense(3, 4*len(quads), nil)

	for i, q := range quads {
		for v := 0; v < 4; v++ {
			pts.Set(0, 4*i+v, float64(q[2*v]))
			pts.Set(1, 4*i+v, float64(q[2*v+1]))
			pts.Set(2, 4*i+v, 1)
		}
	}

	var res mat.Dense
	res.Mul(m, pts)

	for i := range out {
		for v := 0; v < 4; v++ {
			out[i][2*v] = float32(res.At(0, 4*i+v))
			out[i][2*v+1] = float32(res.At(1, 4*i+v))
		}
	}

	return out
}
