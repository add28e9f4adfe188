package interpolate

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/couchcryptid/storm-data-gridder/internal/delaunay"
	"github.com/couchcryptid/storm-data-gridder/internal/geometry"
	"github.com/couchcryptid/storm-data-gridder/internal/spatial"
)

// FindNaturalNeighbors maps every grid point to the simplices whose
// circumcircle contains it, boundary inclusive. Grid points outside the
// triangulation's convex hull get no neighbors. The second result holds the
// circumcircle of every simplex, indexed like tri.Simplices; simplices with a
// degenerate circumcircle never appear in a neighbor set.
func FindNaturalNeighbors(tri *delaunay.Triangulation, gridPoints []r2.Point) ([][]int, []geometry.Circle) {
	members := make([][]int, len(gridPoints))
	circles := make([]geometry.Circle, len(tri.Simplices))
	grid := spatial.New(gridPoints)

	// 0 unknown, 1 inside the hull, -1 outside
	inHull := make([]int8, len(gridPoints))

	for s := range tri.Simplices {
		circles[s] = geometry.Circumcircle(tri.Triangle(s))
		if circles[s].Degenerate {
			continue
		}
		for _, g := range grid.InRadius(circles[s].Center, circles[s].Radius) {
			if inHull[g] == 0 {
				inHull[g] = -1
				if tri.Locate(gridPoints[g]) != delaunay.Outside {
					inHull[g] = 1
				}
			}
			if inHull[g] > 0 {
				members[g] = append(members[g], s)
			}
		}
	}
	return members, circles
}

// NaturalNeighbor interpolates obs onto grid with Sibson weights, using the
// Liang–Hale approximation over the Delaunay triangulation of the
// observations. Cells outside the convex hull, or whose natural neighbor
// region has no area, are NaN. A grid point that coincides with an
// observation takes that observation's value.
//
// Invalid input fails with ErrInvalidConfig before any cell is evaluated.
// If ctx is cancelled the partial field is discarded and ctx.Err() returned.
func NaturalNeighbor[T Float](ctx context.Context, obs []Observation[T], grid Grid, opts ...Option) (*Field[T], error) {
	o := newOptions(opts)
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	pts, err := observationPoints(obs)
	if err != nil {
		return nil, err
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gridPoints := grid.Points()
	members, circles := FindNaturalNeighbors(tri, gridPoints)
	exact, firstOf := firstOccurrences(pts)

	values := make([]T, len(gridPoints))
	status := make([]cellStatus, len(gridPoints))
	value := func(i int) float64 { return float64(obs[i].Value) }

	err = parallel(ctx, len(gridPoints), o.workers, func(i int) {
		if j, d2 := exact.Nearest(gridPoints[i]); j >= 0 && d2 == 0 {
			values[i] = obs[firstOf[j]].Value
			return
		}
		v, ok, err := naturalNeighborCell(tri, gridPoints[i], members[i], circles, value)
		switch {
		case errors.Is(err, ErrMalformedBoundary):
			values[i], status[i] = nan[T](), cellMalformed
		case !ok:
			values[i], status[i] = nan[T](), cellUndetermined
		default:
			values[i] = T(v)
		}
	})
	if err != nil {
		return nil, err
	}
	return newField(grid, values, status), nil
}

// naturalNeighborCell evaluates one grid point from its neighbor set. For
// each boundary vertex v[i] it measures the polygon formed by the
// circumcenters of (p, v[i-1], v[i]) and (p, v[i], v[i+1]) together with the
// circumcenters of the neighbor simplices incident to v[i]. Degenerate
// circumcenters contribute zero area. ok is false when the total area is zero.
func naturalNeighborCell(
	tri *delaunay.Triangulation,
	p r2.Point,
	neighbors []int,
	circles []geometry.Circle,
	value func(int) float64,
) (float64, bool, error) {
	if len(neighbors) == 0 {
		return 0, false, nil
	}
	ring, err := OrderEdges(FindLocalBoundary(tri, neighbors))
	if err != nil {
		return 0, false, err
	}

	var total, weighted float64
	polygon := make([]r2.Point, 0, 2+len(neighbors))
	k := len(ring)
	for i, cur := range ring {
		prev, next := ring[(i+k-1)%k], ring[(i+1)%k]

		c1, ok1 := geometry.Circumcenter(p, tri.Points[prev], tri.Points[cur])
		c2, ok2 := geometry.Circumcenter(p, tri.Points[cur], tri.Points[next])
		if !ok1 || !ok2 {
			continue
		}

		polygon = append(polygon[:0], c1, c2)
		for _, s := range neighbors {
			v := tri.Simplices[s]
			if v[0] == cur || v[1] == cur || v[2] == cur {
				polygon = append(polygon, circles[s].Center)
			}
		}

		area := geometry.PolygonArea(polygon)
		total += area
		weighted += area * value(cur)
	}

	if total <= 0 {
		return 0, false, nil
	}
	return weighted / total, true, nil
}

// firstOccurrences indexes the first observation at each distinct position,
// matching the duplicates Triangulate keeps. firstOf maps an index position
// back to the observation.
func firstOccurrences(pts []r2.Point) (*spatial.Index, []int) {
	seen := make(map[r2.Point]struct{}, len(pts))
	uniq := make([]r2.Point, 0, len(pts))
	firstOf := make([]int, 0, len(pts))
	for i, p := range pts {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		uniq = append(uniq, p)
		firstOf = append(firstOf, i)
	}
	return spatial.New(uniq), firstOf
}
