package render

import (
	"image"
	"math"

	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
)

// Annotation is a box to render with its class and label text
type Annotation struct {
	Quad    geometry.Quad
	ClassID int
	Text    string
}

// Annotations renders the quadrilateral outline of every annotation with a
// dot marking its first vertex and its text label above the top most vertex
func Annotations(img *gocv.Mat, anns []Annotation, font Font, lineThickness int) {

	if len(anns) == 0 {
		return
	}

	// keep a record of all box labels for later rendering
	labels := make([]boxLabel, 0, len(anns))
	polys := make([][]image.Point, 0, len(anns))

	for _, ann := range anns {
		pts := quadPoints(ann.Quad)
		polys = append(polys, pts)
		clr := ClassColor(ann.ClassID)

		outline := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(img, outline, true, clr, lineThickness)
		outline.Close()

		gocv.Circle(img, pts[0], lineThickness+2, clr, -1)

		if ann.Text != "" {
			labels = append(labels, newBoxLabel(ann.Text, topPoint(pts), clr, font))
		}
	}

	drawLabels(img, labels, font)
}

// RotatedBoxes renders rotated boxes labelled with their class names
func RotatedBoxes(img *gocv.Mat, boxes []geometry.RotatedBox, classIDs []int,
	classNames []string, font Font, lineThickness int) {

	anns := make([]Annotation, len(boxes))

	for i, box := range boxes {
		anns[i].Quad = geometry.RotatedToQuad(box)

		if i < len(classIDs) {
			anns[i].ClassID = classIDs[i]

			if id := classIDs[i]; id >= 0 && id < len(classNames) {
				anns[i].Text = classNames[id]
			}
		}
	}

	Annotations(img, anns, font, lineThickness)
}

// quadPoints rounds the quad vertices to pixel positions
func quadPoints(q geometry.Quad) []image.Point {

	pts := make([]image.Point, 4)

	for v := 0; v < 4; v++ {
		x, y := q.Point(v)
		pts[v] = image.Pt(int(math.Round(float64(x))), int(math.Round(float64(y))))
	}

	return pts
}

// topPoint finds the highest point (Y axis) of the polygon, the left most
// point wins ties
func topPoint(pts []image.Point) image.Point {

	top := pts[0]

	for _, p := range pts[1:] {
		if p.Y < top.Y || (p.Y == top.Y && p.X < top.X) {
			top = p
		}
	}

	return top
}
