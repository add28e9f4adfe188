package interpolate

import "errors"

var (
	// ErrInvalidConfig is returned before any grid work when the inputs or
	// method parameters cannot produce an analysis.
	ErrInvalidConfig = errors.New("invalid interpolation config")

	// ErrMalformedBoundary means a cell's boundary edges do not form a single
	// closed loop. It never escapes an interpolation call; the cell is NaN.
	ErrMalformedBoundary = errors.New("malformed natural neighbor boundary")
)
