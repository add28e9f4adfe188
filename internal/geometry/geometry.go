// Package geometry holds the planar primitives shared by the triangulation and
// the interpolators: circumcircles, orientation, convex hulls and polygon area.
//
// All functions are pure. Degenerate inputs (collinear or coincident points)
// are reported through return values, never through panics or NaN.
package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// degenerateTolerance bounds |sin θ| between the two triangle legs below
// which a triangle is treated as collinear.
const degenerateTolerance = 1e-12

// Circle is a triangle's circumcircle. Center and Radius are meaningful only
// when Degenerate is false.
type Circle struct {
	Center     r2.Point
	Radius     float64
	Degenerate bool
}

// Contains reports whether p lies inside or on the circle.
func (c Circle) Contains(p r2.Point) bool {
	if c.Degenerate {
		return false
	}
	return Dist2(c.Center, p) <= c.Radius*c.Radius
}

// Dist2 returns the squared distance between a and b.
func Dist2(a, b r2.Point) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// Orientation returns twice the signed area of the triangle (a, b, c):
// positive when counter-clockwise, negative when clockwise, zero when collinear.
func Orientation(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// Circumcircle computes the circumcenter and circumradius of (p0, p1, p2)
// using the closed-form determinant, translated to p0 for precision.
func Circumcircle(p0, p1, p2 r2.Point) Circle {
	b := p1.Sub(p0)
	c := p2.Sub(p0)

	bb := b.Dot(b)
	cc := c.Dot(c)
	cross := b.Cross(c)

	if bb == 0 || cc == 0 || math.Abs(cross) <= degenerateTolerance*math.Sqrt(bb*cc) {
		return Circle{Degenerate: true}
	}

	d := 2 * cross
	u := r2.Point{
		X: (c.Y*bb - b.Y*cc) / d,
		Y: (b.X*cc - c.X*bb) / d,
	}
	return Circle{
		Center: p0.Add(u),
		Radius: u.Norm(),
	}
}

// Circumcenter returns the circumcenter of (p0, p1, p2). ok is false when the
// points are collinear or coincident.
func Circumcenter(p0, p1, p2 r2.Point) (center r2.Point, ok bool) {
	c := Circumcircle(p0, p1, p2)
	return c.Center, !c.Degenerate
}

// Circumradius returns the circumradius of (p0, p1, p2). ok is false when the
// points are collinear or coincident.
func Circumradius(p0, p1, p2 r2.Point) (radius float64, ok bool) {
	c := Circumcircle(p0, p1, p2)
	return c.Radius, !c.Degenerate
}

// ConvexHull returns the indices of the hull vertices of points in
// counter-clockwise order (Andrew's monotone chain). Collinear points on hull
// edges are dropped. Fewer than three distinct points yield the distinct points.
func ConvexHull(points []r2.Point) []int {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := points[idx[a]], points[idx[b]]
		if pa.X != pb.X {
			return pa.X < pb.X
		}
		return pa.Y < pb.Y
	})

	// drop exact duplicates so they can't pin a zero-length hull edge
	uniq := idx[:0]
	for i, k := range idx {
		if i > 0 && points[k] == points[uniq[len(uniq)-1]] {
			continue
		}
		uniq = append(uniq, k)
	}
	if len(uniq) < 3 {
		return append([]int(nil), uniq...)
	}

	hull := make([]int, 0, 2*len(uniq))
	for _, k := range uniq {
		for len(hull) >= 2 && Orientation(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[k]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, k)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		k := uniq[i]
		for len(hull) >= lower && Orientation(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[k]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, k)
	}
	return hull[:len(hull)-1]
}

// PolygonArea returns the area of the polygon spanned by points. The points
// are re-ordered by their convex hull before the shoelace sum, so the result
// is exact only for convex (or locally star-shaped, hull-equivalent) input.
func PolygonArea(points []r2.Point) float64 {
	hull := ConvexHull(points)
	if len(hull) < 3 {
		return 0
	}
	var sum float64
	for i, k := range hull {
		p := points[k]
		q := points[hull[(i+1)%len(hull)]]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}
