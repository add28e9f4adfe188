// Package delaunay builds planar Delaunay triangulations and answers
// point-location queries against them.
//
// Construction uses the sweep-hull (delaunator) algorithm from
// github.com/fogleman/delaunay, which runs in O(N log N) and handles
// co-circular input. This package adds input validation, first-wins
// duplicate removal, counter-clockwise simplices with edge adjacency, and
// point location.
package delaunay

import (
	"errors"
	"fmt"
	"math"

	delaunator "github.com/fogleman/delaunay"
	"github.com/golang/geo/r2"

	"github.com/couchcryptid/storm-data-gridder/internal/geometry"
	"github.com/couchcryptid/storm-data-gridder/internal/spatial"
)

// Outside is returned by Locate for points outside the convex hull.
const Outside = -1

var (
	// ErrInvalidInput is wrapped by every construction error.
	ErrInvalidInput = errors.New("invalid triangulation input")
	// ErrTooFewPoints means fewer than three distinct points were supplied.
	ErrTooFewPoints = fmt.Errorf("%w: need at least 3 distinct points", ErrInvalidInput)
	// ErrCollinear means every point lies on a single line.
	ErrCollinear = fmt.Errorf("%w: all points are collinear", ErrInvalidInput)
)

// Triangulation is an immutable Delaunay triangulation. Simplices index into
// Points and are counter-clockwise. Neighbors[t][i] is the simplex across the
// edge (Simplices[t][i], Simplices[t][(i+1)%3]), or Outside on the hull.
type Triangulation struct {
	Points    []r2.Point
	Simplices [][3]int
	Neighbors [][3]int

	centroids *spatial.Index
	tol       float64
}

// Triangulate builds the Delaunay triangulation of points. Exact duplicate
// coordinates are kept in Points but only the first occurrence is
// triangulated, so later duplicates belong to no simplex.
func Triangulate(points []r2.Point) (*Triangulation, error) {
	seen := make(map[r2.Point]struct{}, len(points))
	var (
		distinct []r2.Point
		index    []int
	)
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: non-finite coordinate at index %d", ErrInvalidInput, i)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		distinct = append(distinct, p)
		index = append(index, i)
	}
	if len(distinct) < 3 {
		return nil, ErrTooFewPoints
	}
	if len(geometry.ConvexHull(distinct)) < 3 {
		return nil, ErrCollinear
	}

	input := make([]delaunator.Point, len(distinct))
	for i, p := range distinct {
		input[i] = delaunator.Point{X: p.X, Y: p.Y}
	}
	d, err := delaunator.Triangulate(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	simplices := make([][3]int, 0, len(d.Triangles)/3)
	for i := 0; i+2 < len(d.Triangles); i += 3 {
		a, b, c := index[d.Triangles[i]], index[d.Triangles[i+1]], index[d.Triangles[i+2]]
		// zero-area slivers along collinear hull runs are dropped
		switch o := geometry.Orientation(points[a], points[b], points[c]); {
		case o > 0:
			simplices = append(simplices, [3]int{a, b, c})
		case o < 0:
			simplices = append(simplices, [3]int{a, c, b})
		}
	}
	if len(simplices) == 0 {
		return nil, ErrCollinear
	}

	t := &Triangulation{
		Points:    append([]r2.Point(nil), points...),
		Simplices: simplices,
		Neighbors: neighbors(simplices),
		tol:       1e-9 * extent(points),
	}

	centers := make([]r2.Point, len(simplices))
	for i, s := range simplices {
		p0, p1, p2 := t.Points[s[0]], t.Points[s[1]], t.Points[s[2]]
		centers[i] = r2.Point{X: (p0.X + p1.X + p2.X) / 3, Y: (p0.Y + p1.Y + p2.Y) / 3}
	}
	t.centroids = spatial.New(centers)

	return t, nil
}

// Triangle returns the vertex coordinates of simplex s.
func (t *Triangulation) Triangle(s int) (r2.Point, r2.Point, r2.Point) {
	v := t.Simplices[s]
	return t.Points[v[0]], t.Points[v[1]], t.Points[v[2]]
}

// ConvexHull returns the indices of the hull vertices in counter-clockwise order.
func (t *Triangulation) ConvexHull() []int {
	return geometry.ConvexHull(t.Points)
}

// Locate returns the index of a simplex containing p, boundary inclusive,
// or Outside when p lies outside the convex hull. It walks from the simplex
// whose centroid is nearest p and falls back to a linear scan if the walk
// fails to settle.
func (t *Triangulation) Locate(p r2.Point) int {
	if len(t.Simplices) == 0 {
		return Outside
	}
	cur, _ := t.centroids.Nearest(p)

	for steps := 0; steps <= len(t.Simplices); steps++ {
		next, inside := t.step(cur, p)
		if inside {
			return cur
		}
		if next == Outside {
			return Outside
		}
		cur = next
	}
	return t.scan(p)
}

// step reports whether simplex s contains p, and otherwise the neighbour
// across the first edge that separates them.
func (t *Triangulation) step(s int, p r2.Point) (int, bool) {
	v := t.Simplices[s]
	for i := 0; i < 3; i++ {
		if t.beyond(t.Points[v[i]], t.Points[v[(i+1)%3]], p) {
			return t.Neighbors[s][i], false
		}
	}
	return s, true
}

func (t *Triangulation) scan(p r2.Point) int {
	for s := range t.Simplices {
		if _, inside := t.step(s, p); inside {
			return s
		}
	}
	return Outside
}

// beyond reports whether p lies strictly right of the directed edge a→b by
// more than the triangulation's tolerance.
func (t *Triangulation) beyond(a, b, p r2.Point) bool {
	length := math.Sqrt(geometry.Dist2(a, b))
	return geometry.Orientation(a, b, p) < -t.tol*length
}

func extent(points []r2.Point) float64 {
	rect := r2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(p)
	}
	size := rect.Size()
	if e := math.Max(size.X, size.Y); e > 0 {
		return e
	}
	return 1
}

// neighbors derives edge adjacency from the simplices.
func neighbors(simplices [][3]int) [][3]int {
	type edge struct{ a, b int }
	owner := make(map[edge]int, 3*len(simplices))
	for s, v := range simplices {
		for i := 0; i < 3; i++ {
			owner[edge{v[i], v[(i+1)%3]}] = s
		}
	}
	out := make([][3]int, len(simplices))
	for s, v := range simplices {
		for i := 0; i < 3; i++ {
			if n, ok := owner[edge{v[(i+1)%3], v[i]}]; ok {
				out[s][i] = n
			} else {
				out[s][i] = Outside
			}
		}
	}
	return out
}
