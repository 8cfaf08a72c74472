package interpolation

import "errors"

var (
	// ErrTooFewLandmarks indicates fewer landmarks than a 3D affine fit needs.
	ErrTooFewLandmarks = errors.New("interpolation: thin-plate spline needs at least 4 landmarks")
	// ErrLandmarkMismatch indicates source and target sets of different size.
	ErrLandmarkMismatch = errors.New("interpolation: source and target landmark counts differ")
	// ErrSingularSystem indicates the spline system could not be solved.
	ErrSingularSystem = errors.New("interpolation: thin-plate spline system is singular")
)
