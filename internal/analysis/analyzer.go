// Package analysis turns a product definition and a set of observations into
// a gridded domain.Analysis.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

// MaxCells bounds the grid size of a single analysis.
const MaxCells = 1 << 20

var (
	// ErrNotEnoughObservations means the product's method cannot run on the
	// observations supplied. Callers usually skip the analysis.
	ErrNotEnoughObservations = errors.New("not enough observations")

	// ErrGridTooLarge means spacing is too fine for the observation extent.
	ErrGridTooLarge = errors.New("analysis grid too large")
)

// Analyzer produces an analysis for one product and time bucket.
type Analyzer interface {
	Analyze(ctx context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error)
}

// Interpolator implements Analyzer with the interpolate package.
type Interpolator struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewInterpolator creates an Interpolator evaluating cells on up to workers goroutines.
func NewInterpolator(workers int, logger *slog.Logger, metrics *observability.Metrics) *Interpolator {
	return &Interpolator{workers: workers, logger: logger, metrics: metrics}
}

// Method returns the inverse-distance method for product, or false when the
// product uses natural neighbor interpolation.
func Method(p config.Product) (interpolate.Method, bool) {
	switch p.Method {
	case config.MethodCressman:
		return interpolate.Cressman(p.Radius, p.MinNeighbors), true
	case config.MethodBarnes:
		return interpolate.Barnes(p.Radius, p.Kappa, p.Gamma, p.MinNeighbors), true
	default:
		return interpolate.Method{}, false
	}
}

// Analyze grids obs over their padded bounding box at the product's spacing.
func (a *Interpolator) Analyze(ctx context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error) {
	if err := product.Validate(); err != nil {
		return domain.Analysis{}, err
	}
	if len(obs) == 0 || product.Method == config.MethodNaturalNeighbor && len(obs) < 3 {
		return domain.Analysis{}, fmt.Errorf("%w: %s has %d", ErrNotEnoughObservations, product.Name, len(obs))
	}

	bound := domain.BoundaryCoords(obs, product.Pad)
	if cells := domain.GridCells(bound, product.Spacing); !(cells <= MaxCells) {
		return domain.Analysis{}, fmt.Errorf("%w: %s needs %g cells over %v", ErrGridTooLarge, product.Name, cells, bound)
	}
	grid := domain.GenerateGrid(product.Spacing, bound)

	start := time.Now()
	var (
		field *interpolate.Field[float64]
		err   error
	)
	if m, ok := Method(product); ok {
		field, err = interpolate.InverseDistance(ctx, obs, grid, m, interpolate.WithWorkers(a.workers))
	} else {
		field, err = interpolate.NaturalNeighbor(ctx, obs, grid, interpolate.WithWorkers(a.workers))
	}
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("analyze %s: %w", product.Name, err)
	}
	elapsed := time.Since(start)

	a.metrics.AnalysisDuration.WithLabelValues(product.Method).Observe(elapsed.Seconds())
	a.metrics.UndeterminedRatio.WithLabelValues(product.Method).Observe(float64(field.Stats.Undetermined) / float64(field.Stats.Cells))
	a.metrics.ObservationsInput.Observe(float64(len(obs)))
	if field.Stats.Malformed > 0 {
		a.metrics.MalformedCells.WithLabelValues(product.Method).Add(float64(field.Stats.Malformed))
	}

	a.logger.Debug("analysis computed",
		"product", product.Name,
		"method", product.Method,
		"time_bucket", bucket,
		"observations", len(obs),
		"cells", field.Stats.Cells,
		"undetermined", field.Stats.Undetermined,
		"malformed", field.Stats.Malformed,
		"duration", elapsed,
	)

	return domain.Analysis{
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(RequestKey(product, bucket, obs))).String(),
		Product:    product.Name,
		EventType:  product.EventType,
		Method:     product.Method,
		TimeBucket: bucket,
		Grid: domain.GridSpec{
			Rows:    field.Rows,
			Cols:    field.Cols,
			BBox:    [4]float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()},
			Spacing: product.Spacing,
		},
		Values:       domain.Values(field.Values),
		Observations: len(obs),
		Undetermined: field.Stats.Undetermined,
		Malformed:    field.Stats.Malformed,
		GeneratedAt:  domain.Now(),
	}, nil
}

// RequestKey is a SHA-256 digest of everything that determines an analysis,
// so equal keys always produce equal grids.
func RequestKey(product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%g|%g|%g|%g|%g|%d|%s|",
		product.Name, product.EventType, product.Method,
		product.Spacing, product.Pad, product.Radius, product.Kappa, product.Gamma, product.MinNeighbors,
		bucket.UTC().Format(time.RFC3339))

	var buf [24]byte
	for _, o := range obs {
		binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(o.Point.X))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(o.Point.Y))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(o.Value))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
