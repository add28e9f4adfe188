package domain

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
)

// BoundaryCoords returns the bounding box of obs widened by pad on every side.
func BoundaryCoords(obs []interpolate.Observation[float64], pad float64) orb.Bound {
	mp := make(orb.MultiPoint, len(obs))
	for i, o := range obs {
		mp[i] = orb.Point{o.Point.X, o.Point.Y}
	}
	return mp.Bound().Pad(pad)
}

// GridCells returns the number of cells GenerateGrid would build, computed in
// floating point so that extreme extents cannot overflow. It is +Inf or NaN
// when the extent or spacing is not finite.
func GridCells(bound orb.Bound, spacing float64) float64 {
	fx := math.Floor((bound.Max.X() - bound.Min.X()) / spacing)
	fy := math.Floor((bound.Max.Y() - bound.Min.Y()) / spacing)
	return max(fx, 1) * max(fy, 1)
}

// XYSteps returns how many grid columns and rows fit in bound at the given
// spacing, floor(extent / spacing), never fewer than one. Callers bound the
// size with GridCells first; the result is only meaningful when it fits in an int.
func XYSteps(bound orb.Bound, spacing float64) (int, int) {
	nx := int(math.Floor((bound.Max.X() - bound.Min.X()) / spacing))
	ny := int(math.Floor((bound.Max.Y() - bound.Min.Y()) / spacing))
	return max(nx, 1), max(ny, 1)
}

// GenerateGrid spans bound with XYSteps columns and rows, evenly spaced
// between the bound's edges inclusive.
func GenerateGrid(spacing float64, bound orb.Bound) interpolate.Grid {
	nx, ny := XYSteps(bound, spacing)
	return interpolate.MeshGrid(
		linspace(bound.Min.X(), bound.Max.X(), nx),
		linspace(bound.Min.Y(), bound.Max.Y(), ny),
	)
}

func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = stop
	return out
}
