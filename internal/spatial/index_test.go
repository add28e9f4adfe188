package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diagonal(n int) []r2.Point {
	pts := make([]r2.Point, n)
	for i := range pts {
		pts[i] = r2.Point{X: float64(i), Y: float64(i)}
	}
	return pts
}

func TestIndex_InRadius(t *testing.T) {
	idx := New(diagonal(10))

	got := idx.InRadius(r2.Point{X: 1, Y: 5}, 5)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestIndex_InRadius_BoundaryInclusive(t *testing.T) {
	idx := New([]r2.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 4.0001}})

	assert.Equal(t, []int{0, 1}, idx.InRadius(r2.Point{}, 5))
	assert.Equal(t, []int{0}, idx.InRadius(r2.Point{}, 0))
}

func TestIndex_InRadius_NoMatches(t *testing.T) {
	idx := New(diagonal(10))

	assert.Empty(t, idx.InRadius(r2.Point{X: 100, Y: -100}, 1))
	assert.Empty(t, idx.InRadius(r2.Point{X: 1, Y: 1}, -1))
	assert.Empty(t, idx.InRadius(r2.Point{X: 1, Y: 1}, math.NaN()))
}

func TestIndex_Empty(t *testing.T) {
	idx := New(nil)

	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.InRadius(r2.Point{}, 10))

	i, d := idx.Nearest(r2.Point{})
	assert.Equal(t, -1, i)
	assert.True(t, math.IsInf(d, 1))
}

func TestIndex_CountInRadius(t *testing.T) {
	idx := New(diagonal(10))

	counts := idx.CountInRadius([]r2.Point{{X: 1, Y: 5}, {X: 12, Y: 10}}, 5)

	assert.Equal(t, []int{5, 2}, counts)
}

func TestIndex_Nearest(t *testing.T) {
	idx := New(diagonal(10))

	i, d := idx.Nearest(r2.Point{X: 6.2, Y: 5.9})
	assert.Equal(t, 6, i)
	assert.InDelta(t, 0.05, d, 1e-12)
	assert.Equal(t, r2.Point{X: 6, Y: 6}, idx.Point(i))
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := make([]r2.Point, 500)
	for i := range pts {
		pts[i] = r2.Point{X: rng.Float64() * 10, Y: rng.Float64() * 10}
	}
	idx := New(pts)
	require.Equal(t, len(pts), idx.Len())

	for q := 0; q < 50; q++ {
		center := r2.Point{X: rng.Float64() * 10, Y: rng.Float64() * 10}
		radius := rng.Float64() * 3

		var want []int
		for i, p := range pts {
			if dist2(p, center) <= radius*radius {
				want = append(want, i)
			}
		}

		got := idx.InRadius(center, radius)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got)
	}
}
