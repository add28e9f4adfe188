package interpolate

import (
	"fmt"
	"math"
	"runtime"

	"github.com/golang/geo/r2"
)

// Float is the element type of observation values and output fields.
type Float interface {
	~float32 | ~float64
}

// Observation is a scattered sample.
type Observation[T Float] struct {
	Point r2.Point
	Value T
}

// Grid is a Rows×Cols mesh of points stored row-major.
type Grid struct {
	Rows, Cols int
	X, Y       []float64
}

// MeshGrid builds the grid whose row i has y = ys[i] and whose column j has
// x = xs[j].
func MeshGrid(xs, ys []float64) Grid {
	g := Grid{Rows: len(ys), Cols: len(xs)}
	g.X = make([]float64, 0, g.Rows*g.Cols)
	g.Y = make([]float64, 0, g.Rows*g.Cols)
	for _, y := range ys {
		for _, x := range xs {
			g.X = append(g.X, x)
			g.Y = append(g.Y, y)
		}
	}
	return g
}

// Len returns the number of cells.
func (g Grid) Len() int { return g.Rows * g.Cols }

// Points flattens the grid into row-major order.
func (g Grid) Points() []r2.Point {
	pts := make([]r2.Point, len(g.X))
	for i := range g.X {
		pts[i] = r2.Point{X: g.X[i], Y: g.Y[i]}
	}
	return pts
}

// Validate checks that the shape matches the coordinate slices.
func (g Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("%w: empty grid %dx%d", ErrInvalidConfig, g.Rows, g.Cols)
	}
	if len(g.X) != g.Len() || len(g.Y) != g.Len() {
		return fmt.Errorf("%w: grid shape %dx%d does not match %d x and %d y coordinates",
			ErrInvalidConfig, g.Rows, g.Cols, len(g.X), len(g.Y))
	}
	return nil
}

// Stats summarizes an interpolated field.
type Stats struct {
	Cells int
	// Undetermined counts NaN cells, including malformed ones.
	Undetermined int
	// Malformed counts cells whose natural neighbor boundary was not a
	// single closed loop.
	Malformed int
}

// Field is an interpolated grid. Values is row-major with NaN marking
// undetermined cells.
type Field[T Float] struct {
	Rows, Cols int
	Values     []T
	Stats      Stats
}

// At returns the value at row r, column c.
func (f *Field[T]) At(r, c int) T { return f.Values[r*f.Cols+c] }

type cellStatus uint8

const (
	cellOK cellStatus = iota
	cellUndetermined
	cellMalformed
)

func newField[T Float](g Grid, values []T, status []cellStatus) *Field[T] {
	f := &Field[T]{Rows: g.Rows, Cols: g.Cols, Values: values}
	f.Stats.Cells = len(values)
	for _, s := range status {
		switch s {
		case cellMalformed:
			f.Stats.Malformed++
			f.Stats.Undetermined++
		case cellUndetermined:
			f.Stats.Undetermined++
		}
	}
	return f
}

func nan[T Float]() T { return T(math.NaN()) }

func observationPoints[T Float](obs []Observation[T]) ([]r2.Point, error) {
	pts := make([]r2.Point, len(obs))
	for i, o := range obs {
		p := o.Point
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: non-finite observation coordinate at index %d", ErrInvalidConfig, i)
		}
		pts[i] = p
	}
	return pts, nil
}

// Option configures an interpolation call.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers bounds the number of goroutines evaluating cells. Values
// below one fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}
