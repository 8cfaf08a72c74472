// Package analysis runs the morphometrics pipeline: landmark files are loaded,
// aligned with Generalized Procrustes Analysis, decomposed into principal
// components and written out as CSV artifacts.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"slicermorph/internal/logger"
	"slicermorph/internal/models"
	"slicermorph/pkg/config"
	"slicermorph/pkg/export"
	"slicermorph/pkg/landmarks"
	"slicermorph/pkg/pca"
	"slicermorph/pkg/procrustes"
	"slicermorph/pkg/shape"
)

// Params holds the analysis parameters
type Params struct {
	// InputDir is searched recursively for landmark files
	InputDir string

	// Suffix selects landmark files, ".fcsv" when empty
	Suffix string

	// Exclude lists 1-based landmark indices removed from every subject
	Exclude []int

	// Scaling normalises every subject to unit centroid size before alignment
	Scaling bool

	MaxIterations int
	Tolerance     float64

	// SortComponents orders principal components by decreasing variance
	SortComponents bool

	// OutputDir receives the CSV artifacts. Nothing is written when empty.
	OutputDir string

	// TimestampFolder writes into a per-run subfolder of OutputDir
	TimestampFolder bool
}

// ParamsFromConfig builds parameters from the loaded configuration
func ParamsFromConfig(cfg *config.Config, inputDir string, exclude []int) *Params {
	return &Params{
		InputDir:        inputDir,
		Suffix:          cfg.Analysis.LandmarkSuffix,
		Exclude:         exclude,
		Scaling:         !cfg.Analysis.SkipScaling,
		MaxIterations:   cfg.Analysis.MaxIterations,
		Tolerance:       cfg.Analysis.Tolerance,
		SortComponents:  cfg.Analysis.SortComponents,
		OutputDir:       cfg.Output.Directory,
		TimestampFolder: cfg.Output.TimestampFolders,
	}
}

// ProgressCallback reports progress within a stage. total is 0 when the
// amount of work is not known.
type ProgressCallback func(stage StageName, completed, total int, message string)

// Analyzer runs the pipeline. One Analyzer may be run repeatedly; every run
// produces an independent Result.
type Analyzer struct {
	params   *Params
	log      logger.ILogger
	progress ProgressCallback
	now      func() time.Time
}

// NewAnalyzer creates an analyzer with the provided parameters
func NewAnalyzer(params *Params, log logger.ILogger) *Analyzer {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Analyzer{params: params, log: log, now: time.Now}
}

// SetProgressCallback sets a callback function for progress reporting
func (a *Analyzer) SetProgressCallback(callback ProgressCallback) {
	a.progress = callback
}

func (a *Analyzer) reportProgress(stage StageName, completed, total int, message string) {
	if a.progress != nil {
		a.progress(stage, completed, total, message)
	}
}

// Outcome is delivered by RunAsync
type Outcome struct {
	Result *Result
	Err    error
}

// RunAsync runs the pipeline on its own goroutine. The channel delivers
// exactly one Outcome and is then closed.
func (a *Analyzer) RunAsync(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := a.Run(ctx)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Run executes the complete pipeline. Errors are wrapped in a StageError;
// cancellation of ctx is checked between stages and between alignment
// iterations.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	p := a.params
	if p == nil || p.InputDir == "" {
		return nil, stageError(StageLoad, ErrNoInput)
	}
	started := a.now()

	// Step 1: load landmark files
	a.log.Infof("Step 1: Loading landmark files from %s", p.InputDir)
	loader := landmarks.NewLoader(p.Suffix, a.log)
	loader.Progress = func(done, total int, file string) {
		a.reportProgress(StageLoad, done, total, file)
	}
	set, err := loader.Load(p.InputDir, p.Exclude)
	if err != nil {
		return nil, stageError(StageLoad, err)
	}

	// Step 2: Generalized Procrustes Analysis
	if err := ctx.Err(); err != nil {
		return nil, stageError(StageAlign, err)
	}
	a.log.Infof("Step 2: Aligning shapes (scaling: %v)", p.Scaling)
	opts := procrustes.Options{Scale: p.Scaling, MaxIterations: p.MaxIterations, Tolerance: p.Tolerance}
	if opts.Tolerance <= 0 {
		opts.Tolerance = procrustes.DefaultOptions().Tolerance
	}
	alignment, err := procrustes.Align(ctx, set, opts, func(iteration, maxIterations int, sumSquares float64) {
		a.reportProgress(StageAlign, iteration, maxIterations, fmt.Sprintf("sum of squares %.6g", sumSquares))
	})
	if err != nil {
		return nil, stageError(StageAlign, err)
	}
	if !alignment.Converged {
		a.log.Warnf("Alignment did not converge after %d iterations (sum of squares %.6g)",
			alignment.Iterations, alignment.SumSquares)
	} else {
		a.log.Debugf("Alignment converged after %d iterations", alignment.Iterations)
	}

	// Step 3: principal components
	if err := ctx.Err(); err != nil {
		return nil, stageError(StagePCA, err)
	}
	a.log.Infof("Step 3: Computing principal components")
	model, err := pca.Fit(alignment.Aligned, pca.Options{SortDescending: p.SortComponents})
	if err != nil {
		return nil, stageError(StagePCA, err)
	}
	a.reportProgress(StagePCA, 1, 1, fmt.Sprintf("%d components", model.NumComponents()))

	res := newResult(started, p, set, alignment, model)
	a.log.Infof("Closest sample to the mean: %s", res.ClosestSample())

	// Step 4: write artifacts
	if p.OutputDir != "" {
		if err := ctx.Err(); err != nil {
			return nil, stageError(StageExport, err)
		}
		folder := export.RunFolder(p.OutputDir, started, p.TimestampFolder)
		a.log.Infof("Step 4: Writing results to %s", folder)
		if err := a.writeOutputs(folder, res); err != nil {
			return nil, stageError(StageExport, err)
		}
		res.OutputFolder = folder
	}

	return res, nil
}

func newResult(started time.Time, p *Params, set *models.LandmarkSet, alignment *procrustes.Result, model *pca.Model) *Result {
	res := &Result{
		RunID:       uuid.NewString(),
		CreatedAt:   started,
		InputDir:    p.InputDir,
		Excluded:    append([]int(nil), p.Exclude...),
		Scaling:     p.Scaling,
		IDs:         set.IDs,
		Raw:         set,
		Alignment:   alignment,
		Model:       model,
		Distances:   procrustes.Distances(alignment.Aligned, alignment.Mean),
		Scores:      model.Scores(alignment.Aligned),
		rawMean:     set.Mean(),
		numSubjects: set.NumSubjects(),
	}
	res.CentroidSizes = make([]float64, set.NumSubjects())
	for i, c := range set.Configs {
		res.CentroidSizes[i] = procrustes.CentroidSize(c)
	}
	res.SampleScale = shape.SampleSizeScale(res.rawMean)
	res.closest, _ = shape.ClosestSample(res.Distances)
	return res
}

func (a *Analyzer) writeOutputs(folder string, res *Result) error {
	w, err := export.NewWriter(folder, a.log)
	if err != nil {
		return err
	}

	steps := []struct {
		file  string
		write func() error
	}{
		{export.MeanShapeFile, func() error { return w.MeanShape(res.Alignment.Mean) }},
		{export.EigenvectorFile, func() error { return w.Eigenvectors(res.Model.Vectors) }},
		{export.EigenvalueFile, func() error { return w.Eigenvalues(res.Model.Values) }},
		{export.OutputDataFile, func() error {
			return w.OutputData(res.IDs, res.Distances, res.CentroidSizes, res.Alignment.Aligned)
		}},
		{export.PCScoresFile, func() error { return w.PCScores(res.IDs, res.Scores) }},
		{export.DistanceTableFile, func() error { return w.DistanceTable(res.IDs, res.Distances) }},
	}

	files := make([]string, 0, len(steps))
	for i, step := range steps {
		if err := step.write(); err != nil {
			return errors.Wrapf(err, "failed to write %s", step.file)
		}
		files = append(files, step.file)
		a.reportProgress(StageExport, i+1, len(steps)+1, step.file)
	}

	if err := w.Manifest(res.manifest(files)); err != nil {
		return err
	}
	a.reportProgress(StageExport, len(steps)+1, len(steps)+1, export.ManifestFile)
	return nil
}

