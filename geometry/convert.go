package geometry

import (
	"math"
	"sort"
)

// vec is a 2D point used during conversion, calculations are done in
// float64 and only rounded to float32 on output
type vec struct {
	x, y float64
}

// NormalizeAngle maps an angle in radians into the range (-Pi/2, Pi/2].  A
// rectangle rotated by Pi is the same rectangle so the angle is taken modulo Pi
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, math.Pi)

	if a <= -math.Pi/2 {
		a += math.Pi
	} else if a > math.Pi/2 {
		a -= math.Pi
	}

	return a
}

// halfPi32 is Pi/2 rounded to float32, the upper bound of the angle range
const halfPi32 = float32(math.Pi / 2)

// canonicalAngle normalizes the angle and rounds it to float32, keeping the
// range (-Pi/2, Pi/2] after rounding
func canonicalAngle(a float64) float32 {
	a32 := float32(NormalizeAngle(a))

	if a32 <= -halfPi32 {
		return halfPi32
	}

	return a32
}

// QuadToRotated converts a quadrilateral into the minimum area rotated
// rectangle enclosing it.  Degenerate input such as collinear or coincident
// vertices does not fail, it returns a box with zero width and/or height
// which the Validity Filter is expected to reject
func QuadToRotated(q Quad) RotatedBox {

	pts := make([]vec, 4)

	for i := range pts {
		x, y := q.Point(i)
		pts[i] = vec{float64(x), float64(y)}
	}

	hull := convexHull(pts)

	switch len(hull) {
	case 1:
		return RotatedBox{CX: float32(hull[0].x), CY: float32(hull[0].y)}

	case 2:
		dx := hull[1].x - hull[0].x
		dy := hull[1].y - hull[0].y

		return RotatedBox{
			CX:    float32((hull[0].x + hull[1].x) / 2),
			CY:    float32((hull[0].y + hull[1].y) / 2),
			Width: float32(math.Hypot(dx, dy)),
			Angle: canonicalAngle(math.Atan2(dy, dx)),
		}
	}

	// rotating calipers, the minimum area rectangle has one side collinear
	// with an edge of the convex hull
	bestArea := math.Inf(1)
	var best RotatedBox

	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]

		length := math.Hypot(b.x-a.x, b.y-a.y)

		if length == 0 {
			continue
		}

		u := vec{(b.x - a.x) / length, (b.y - a.y) / length}
		v := vec{-u.y, u.x}

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)

		for _, p := range hull {
			pu := p.x*u.x + p.y*u.y
			pv := p.x*v.x + p.y*v.y
			minU = math.Min(minU, pu)
			maxU = math.Max(maxU, pu)
			minV = math.Min(minV, pv)
			maxV = math.Max(maxV, pv)
		}

		eu := maxU - minU
		ev := maxV - minV

		if area := eu * ev; area < bestArea {
			bestArea = area

			cu := (minU + maxU) / 2
			cv := (minV + maxV) / 2

			box := RotatedBox{
				CX: float32(u.x*cu + v.x*cv),
				CY: float32(u.y*cu + v.y*cv),
			}

			// width is always the longer edge, the angle follows it
			if eu >= ev {
				box.Width, box.Height = float32(eu), float32(ev)
				box.Angle = canonicalAngle(math.Atan2(u.y, u.x))
			} else {
				box.Width, box.Height = float32(ev), float32(eu)
				box.Angle = canonicalAngle(math.Atan2(v.y, v.x))
			}

			best = box
		}
	}

	return best
}

// RotatedToQuad returns the 4 corners of the rotated box.  Vertices are
// ordered starting from the corner at (-w/2, -h/2) in the box's own frame and
// proceed through (w/2, -h/2), (w/2, h/2), (-w/2, h/2)
func RotatedToQuad(r RotatedBox) Quad {

	aCos := math.Cos(float64(r.Angle))
	aSin := math.Sin(float64(r.Angle))

	hw := float64(r.Width) / 2
	hh := float64(r.Height) / 2

	cornersX := []float64{-hw, hw, hw, -hw}
	cornersY := []float64{-hh, -hh, hh, hh}

	var q Quad

	for i := 0; i < 4; i++ {
		q[2*i] = float32(aCos*cornersX[i] - aSin*cornersY[i] + float64(r.CX))
		q[2*i+1] = float32(aSin*cornersX[i] + aCos*cornersY[i] + float64(r.CY))
	}

	return q
}

// QuadsToRotated converts a list of quads
func QuadsToRotated(quads []Quad) []RotatedBox {
	out := make([]RotatedBox, len(quads))

	for i, q := range quads {
		out[i] = QuadToRotated(q)
	}

	return out
}

// convexHull returns the convex hull of the points in counter clockwise order
// using Andrew's monotone chain.  Collinear and duplicate points are removed
// so a degenerate input returns a hull of 1 or 2 points
func convexHull(pts []vec) []vec {

	sorted := make([]vec, len(pts))
	copy(sorted, pts)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].x == sorted[j].x {
			return sorted[i].y < sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	// remove duplicates
	uniq := sorted[:1]

	for _, p := range sorted[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}

	if len(uniq) < 3 {
		return uniq
	}

	cross := func(o, a, b vec) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	hull := make([]vec, 0, 2*len(uniq))

	// lower hull
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// upper hull
	lower := len(hull) + 1

	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// last point repeats the first
	return hull[:len(hull)-1]
}
