package export

import "errors"

var (
	// ErrLengthMismatch indicates per-subject columns of different lengths.
	ErrLengthMismatch = errors.New("export: per-subject columns differ in length")

	// ErrNoDirectory indicates an empty output directory.
	ErrNoDirectory = errors.New("export: output directory not set")
)
