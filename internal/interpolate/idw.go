package interpolate

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/storm-data-gridder/internal/geometry"
	"github.com/couchcryptid/storm-data-gridder/internal/spatial"
)

// Defaults applied when the corresponding Method parameter is zero.
const (
	DefaultGamma        = 1.0
	DefaultMinNeighbors = 3
)

type methodKind uint8

const (
	kindCressman methodKind = iota + 1
	kindBarnes
)

// Method selects an inverse-distance weighting scheme and carries its
// parameters. Build one with Cressman or Barnes; the zero value is invalid.
type Method struct {
	kind         methodKind
	radius       float64
	kappa        float64
	gamma        float64
	minNeighbors int
}

// Cressman weights neighbors within radius by (r² − d²)/(r² + d²).
// A zero minNeighbors means DefaultMinNeighbors.
func Cressman(radius float64, minNeighbors int) Method {
	return Method{kind: kindCressman, radius: radius, minNeighbors: minNeighbors}
}

// Barnes is the two-pass Gaussian scheme of Koch et al. (1983) with response
// parameter kappa and smoothing gamma. A zero gamma means DefaultGamma and a
// zero minNeighbors means DefaultMinNeighbors.
func Barnes(radius, kappa, gamma float64, minNeighbors int) Method {
	return Method{kind: kindBarnes, radius: radius, kappa: kappa, gamma: gamma, minNeighbors: minNeighbors}
}

// Name returns "cressman", "barnes", or "" for the zero Method.
func (m Method) Name() string {
	switch m.kind {
	case kindCressman:
		return "cressman"
	case kindBarnes:
		return "barnes"
	default:
		return ""
	}
}

func (m Method) Radius() float64 { return m.radius }

func (m Method) Kappa() float64 { return m.kappa }

func (m Method) Gamma() float64 {
	if m.gamma == 0 {
		return DefaultGamma
	}
	return m.gamma
}

func (m Method) MinNeighbors() int {
	if m.minNeighbors == 0 {
		return DefaultMinNeighbors
	}
	return m.minNeighbors
}

// Validate reports a configuration error wrapping ErrInvalidConfig.
func (m Method) Validate() error {
	switch m.kind {
	case kindCressman, kindBarnes:
	default:
		return fmt.Errorf("%w: unknown inverse distance method", ErrInvalidConfig)
	}
	if !(m.radius > 0) || math.IsInf(m.radius, 1) {
		return fmt.Errorf("%w: radius must be positive and finite, got %v", ErrInvalidConfig, m.radius)
	}
	if m.MinNeighbors() < 1 {
		return fmt.Errorf("%w: min neighbors must be at least 1, got %d", ErrInvalidConfig, m.minNeighbors)
	}
	if m.kind == kindBarnes {
		if !(m.kappa > 0) {
			return fmt.Errorf("%w: barnes requires a positive kappa, got %v", ErrInvalidConfig, m.kappa)
		}
		if !(m.Gamma() > 0) {
			return fmt.Errorf("%w: barnes gamma must be positive, got %v", ErrInvalidConfig, m.gamma)
		}
	}
	return nil
}

// CressmanWeight returns (r² − d2)/(r² + d2) for squared distance d2. It is
// not clamped, so d2 slightly beyond r² yields a small negative weight.
func CressmanWeight(d2, radius float64) float64 {
	r2 := radius * radius
	return (r2 - d2) / (r2 + d2)
}

// BarnesWeight returns exp(−d2/(κγ)) for squared distance d2.
func BarnesWeight(d2, kappa, gamma float64) float64 {
	return math.Exp(-d2 / (kappa * gamma))
}

// InverseDistance interpolates obs onto grid using the neighbors within the
// method's radius of each cell. Cells with fewer than MinNeighbors candidates
// are NaN.
//
// Invalid input fails with ErrInvalidConfig before any cell is evaluated.
// If ctx is cancelled the partial field is discarded and ctx.Err() returned.
func InverseDistance[T Float](ctx context.Context, obs []Observation[T], grid Grid, method Method, opts ...Option) (*Field[T], error) {
	o := newOptions(opts)
	if err := method.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	pts, err := observationPoints(obs)
	if err != nil {
		return nil, err
	}

	index := spatial.New(pts)
	gridPoints := grid.Points()
	values := make([]T, len(gridPoints))
	status := make([]cellStatus, len(gridPoints))

	var point func(d2, v []float64) float64
	switch method.kind {
	case kindCressman:
		r := method.Radius()
		point = func(d2, v []float64) float64 { return cressmanPoint(d2, v, r) }
	case kindBarnes:
		kappa, gamma := method.Kappa(), method.Gamma()
		point = func(d2, v []float64) float64 { return barnesPoint(d2, v, kappa, gamma) }
	}
	minNeighbors := method.MinNeighbors()

	err = parallel(ctx, len(gridPoints), o.workers, func(i int) {
		candidates := index.InRadius(gridPoints[i], method.Radius())
		if len(candidates) < minNeighbors {
			values[i], status[i] = nan[T](), cellUndetermined
			return
		}
		d2 := make([]float64, len(candidates))
		v := make([]float64, len(candidates))
		for k, j := range candidates {
			d2[k] = geometry.Dist2(gridPoints[i], pts[j])
			v[k] = float64(obs[j].Value)
		}
		res := point(d2, v)
		if math.IsNaN(res) {
			status[i] = cellUndetermined
		}
		values[i] = T(res)
	})
	if err != nil {
		return nil, err
	}
	return newField(grid, values, status), nil
}

func cressmanPoint(d2, v []float64, radius float64) float64 {
	w := make([]float64, len(d2))
	for i, d := range d2 {
		w[i] = CressmanWeight(d, radius)
	}
	return floats.Dot(w, v) / floats.Sum(w)
}

func barnesPoint(d2, v []float64, kappa, gamma float64) float64 {
	w := make([]float64, len(d2))
	for i, d := range d2 {
		w[i] = BarnesWeight(d, kappa, 1)
	}
	first := floats.Dot(w, v) / floats.Sum(w)

	for i, d := range d2 {
		w[i] = BarnesWeight(d, kappa, gamma)
	}
	residual := make([]float64, len(v))
	copy(residual, v)
	floats.AddConst(-first, residual)

	return first + floats.Dot(w, residual)/floats.Sum(w)
}
