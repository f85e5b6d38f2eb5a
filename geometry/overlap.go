package geometry

import (
	"math"

	clipper "github.com/ctessum/go.clipper"
)

// clipPrecision is the fixed point scale used for clipper's integer
// coordinates, giving 1/100th pixel resolution
const clipPrecision = 100

// IntersectionArea returns the area shared by the two quadrilaterals
func IntersectionArea(a, b Quad) float64 {

	if a.Area() == 0 || b.Area() == 0 {
		return 0
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPath(quadPath(a), clipper.PtSubject, true)
	c.AddPath(quadPath(b), clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftNonZero, clipper.PftNonZero)

	if !ok {
		return 0
	}

	area := 0.0

	for _, path := range solution {
		area += pathArea(path)
	}

	return area / (clipPrecision * clipPrecision)
}

// IoU returns the intersection over union of two rotated boxes
func IoU(a, b RotatedBox) float64 {

	qa := RotatedToQuad(a)
	qb := RotatedToQuad(b)

	inter := IntersectionArea(qa, qb)
	union := float64(qa.Area()) + float64(qb.Area()) - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

// Duplicates returns the index pairs of boxes with the same class that
// overlap by more than the IoU threshold
func Duplicates(boxes []RotatedBox, classes []int, threshold float64) [][2]int {

	var pairs [][2]int

	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			if i < len(classes) && j < len(classes) && classes[i] != classes[j] {
				continue
			}

			if IoU(boxes[i], boxes[j]) > threshold {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}

	return pairs
}

// quadPath converts the quad into a fixed point clipper path
func quadPath(q Quad) clipper.Path {

	path := make(clipper.Path, 0, 4)

	for v := 0; v < 4; v++ {
		x, y := q.Point(v)
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(float64(x) * clipPrecision)),
			Y: clipper.CInt(math.Round(float64(y) * clipPrecision)),
		})
	}

	return path
}

// pathArea returns the absolute area of a clipper path
func pathArea(path clipper.Path) float64 {

	var sum float64

	for i := range path {
		a := path[i]
		b := path[(i+1)%len(path)]
		sum += float64(a.X)*float64(b.Y) - float64(b.X)*float64(a.Y)
	}

	return math.Abs(sum) / 2
}
