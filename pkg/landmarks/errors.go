package landmarks

import "errors"

var (
	// ErrMissingDirectory indicates the landmark root directory does not exist or is not a directory.
	ErrMissingDirectory = errors.New("landmarks: landmark directory not found")
	// ErrNoLandmarkFiles indicates the directory tree holds no file with the landmark suffix.
	ErrNoLandmarkFiles = errors.New("landmarks: no landmark files found")
	// ErrMalformedFile indicates a landmark file could not be parsed.
	ErrMalformedFile = errors.New("landmarks: malformed landmark file")
	// ErrLandmarkCountMismatch indicates two files encode a different number of landmarks.
	ErrLandmarkCountMismatch = errors.New("landmarks: landmark count differs between files")
	// ErrInvalidExclusion indicates an exclusion index is not a valid 1-based landmark index.
	ErrInvalidExclusion = errors.New("landmarks: invalid landmark exclusion")
)
