package pca

import "errors"

var (
	// ErrTooFewSubjects indicates fewer than two subjects, for which sample covariance is undefined.
	ErrTooFewSubjects = errors.New("pca: need at least two subjects")
	// ErrEigenFailed indicates the eigendecomposition of the covariance matrix failed.
	ErrEigenFailed = errors.New("pca: eigendecomposition failed")
	// ErrComponentRange indicates a component index outside the fitted model.
	ErrComponentRange = errors.New("pca: component index out of range")
)
