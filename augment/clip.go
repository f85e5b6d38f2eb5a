package augment

import (
	"math"
	"math/rand/v2"

	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
)

// ClipToImage drops boxes that moved mostly outside of the image.  A box
// whose visible area is less than MinVisibility of its total area is
// collapsed to a single point so the Validity Filter removes it.  Boxes are
// never removed here so the box count is preserved
type ClipToImage struct {
	MinVisibility float64
}

// Apply implements Transform
func (t ClipToImage) Apply(img gocv.Mat, quads []geometry.Quad,
	rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {

	w, h := img.Cols(), img.Rows()
	out := make([]geometry.Quad, len(quads))

	for i, q := range quads {
		if VisibleFraction(q, w, h) < t.MinVisibility {
			x, y := q.Point(0)
			out[i] = geometry.Quad{x, y, x, y, x, y, x, y}
			continue
		}

		out[i] = q
	}

	return img.Clone(), out, nil
}

// VisibleFraction returns the fraction of the quad's area that lies inside
// a width x height image
func VisibleFraction(q geometry.Quad, width, height int) float64 {

	area := float64(q.Area())

	if area == 0 {
		return 0
	}

	w := float32(width)
	h := float32(height)
	frame := geometry.Quad{0, 0, w, 0, w, h, 0, h}

	return math.Min(1, geometry.IntersectionArea(q, frame)/area)
}
