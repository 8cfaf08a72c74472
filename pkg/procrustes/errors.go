package procrustes

import "errors"

var (
	// ErrDegenerate indicates a configuration with zero centroid size, which cannot be scaled.
	ErrDegenerate = errors.New("procrustes: configuration has zero centroid size")
	// ErrSVDFailed indicates the singular value decomposition used for rotation did not converge.
	ErrSVDFailed = errors.New("procrustes: SVD factorization failed")
	// ErrEmptySet indicates there was nothing to align.
	ErrEmptySet = errors.New("procrustes: no configurations to align")
)
