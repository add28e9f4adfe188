// Package spatial provides radius and nearest-neighbour queries over a fixed
// set of planar points, backed by gonum's kd-tree.
package spatial

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Index is an immutable kd-tree over a point set. Queries return indices into
// the slice the index was built from. It is safe for concurrent readers.
type Index struct {
	tree   *kdtree.Tree
	points []r2.Point
}

// New builds an index over points in O(N log N). The slice is copied.
func New(points []r2.Point) *Index {
	idx := &Index{points: append([]r2.Point(nil), points...)}
	if len(points) == 0 {
		return idx
	}
	nodes := make(entries, len(points))
	for i, p := range points {
		nodes[i] = entry{Point: p, index: i}
	}
	idx.tree = kdtree.New(nodes, false)
	return idx
}

// Len returns the number of indexed points.
func (x *Index) Len() int { return len(x.points) }

// Point returns the i-th indexed point.
func (x *Index) Point(i int) r2.Point { return x.points[i] }

// InRadius returns the indices of all points within radius of center,
// boundary inclusive, in ascending index order.
func (x *Index) InRadius(center r2.Point, radius float64) []int {
	if x.tree == nil || radius < 0 || math.IsNaN(radius) {
		return nil
	}
	r2max := radius * radius
	// widen the keeper slightly; the exact cut is applied below
	keep := kdtree.NewDistKeeper(r2max * (1 + 1e-12))
	x.tree.NearestSet(keep, entry{Point: center, index: -1})

	out := make([]int, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		e := c.Comparable.(entry)
		if dist2(e.Point, center) <= r2max {
			out = append(out, e.index)
		}
	}
	sort.Ints(out)
	return out
}

// CountInRadius returns, for each center, the number of points within radius.
func (x *Index) CountInRadius(centers []r2.Point, radius float64) []int {
	counts := make([]int, len(centers))
	for i, c := range centers {
		counts[i] = len(x.InRadius(c, radius))
	}
	return counts
}

// Nearest returns the index of the point closest to q and the squared
// distance to it. It returns -1 for an empty index.
func (x *Index) Nearest(q r2.Point) (int, float64) {
	if x.tree == nil {
		return -1, math.Inf(1)
	}
	c, d := x.tree.Nearest(entry{Point: q, index: -1})
	if c == nil {
		return -1, math.Inf(1)
	}
	return c.(entry).index, d
}

func dist2(a, b r2.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// entry is an indexed point satisfying kdtree.Comparable.
type entry struct {
	r2.Point
	index int
}

func (e entry) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(entry)
	switch d {
	case 0:
		return e.X - q.X
	case 1:
		return e.Y - q.Y
	default:
		panic("spatial: illegal dimension")
	}
}

func (e entry) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (e entry) Distance(c kdtree.Comparable) float64 {
	return dist2(e.Point, c.(entry).Point)
}

// entries satisfies kdtree.Interface.
type entries []entry

func (p entries) Index(i int) kdtree.Comparable         { return p[i] }
func (p entries) Len() int                              { return len(p) }
func (p entries) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p entries) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{entries: p, Dim: d}, kdtree.MedianOfMedians(plane{entries: p, Dim: d}))
}

// plane sorts entries along one dimension for pivot selection.
type plane struct {
	entries
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.entries[i].X < p.entries[j].X
	case 1:
		return p.entries[i].Y < p.entries[j].Y
	default:
		panic("spatial: illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{entries: p.entries[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
}
