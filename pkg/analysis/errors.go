package analysis

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// ErrNoInput indicates the analyzer was run without an input directory.
var ErrNoInput = errors.New("analysis: input directory not set")

// StageName identifies a pipeline stage in errors and progress reports
type StageName string

const (
	StageLoad   StageName = "load stage"
	StageAlign  StageName = "alignment stage"
	StagePCA    StageName = "pca stage"
	StageExport StageName = "export stage"
)

// StageError attributes a failure to the stage that produced it
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage StageName, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Stage returns the stage err came from, or "" when err did not come out of
// a pipeline run.
func Stage(err error) StageName {
	var se *StageError
	if pkgerrors.As(err, &se) {
		return se.Stage
	}
	return ""
}
