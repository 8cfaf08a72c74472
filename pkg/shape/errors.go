package shape

import "errors"

var (
	// ErrInvalidComponent indicates a selected principal component is not in the model.
	ErrInvalidComponent = errors.New("shape: principal component index out of range")
	// ErrShapeMismatch indicates a configuration whose landmark count differs from the model's.
	ErrShapeMismatch = errors.New("shape: configuration does not match model landmark count")
	// ErrTooFewSubjects indicates landmark variation was requested for fewer than two subjects.
	ErrTooFewSubjects = errors.New("shape: need at least two subjects")
)
