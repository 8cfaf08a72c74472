package analysis

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
	"slicermorph/pkg/export"
	"slicermorph/pkg/interpolation"
	"slicermorph/pkg/pca"
	"slicermorph/pkg/procrustes"
	"slicermorph/pkg/shape"
)

// Result is the outcome of one pipeline run. It is not modified after Run
// returns; accessors hand out copies.
type Result struct {
	RunID     string
	CreatedAt time.Time
	InputDir  string
	Excluded  []int
	Scaling   bool

	// IDs names the subjects in load order
	IDs []string

	// Raw holds the configurations as loaded, after exclusions
	Raw *models.LandmarkSet

	Alignment *procrustes.Result
	Model     *pca.Model

	// CentroidSizes[i] is the centroid size of subject i before alignment
	CentroidSizes []float64

	// Distances[i] is the Procrustes distance of subject i to the mean shape
	Distances []float64

	// Scores is subjects×components
	Scores *mat.Dense

	// SampleScale is the largest landmark spacing of the raw mean, used to
	// bring unit eigenvectors back to specimen size
	SampleScale float64

	// OutputFolder is where artifacts were written, empty if none were
	OutputFolder string

	rawMean     *mat.Dense
	closest     int
	numSubjects int
}

// Mean returns the aligned mean shape
func (r *Result) Mean() *mat.Dense { return mat.DenseCopyOf(r.Alignment.Mean) }

// RawMean returns the mean of the unaligned configurations
func (r *Result) RawMean() *mat.Dense { return mat.DenseCopyOf(r.rawMean) }

// Converged reports whether alignment converged before the iteration cap
func (r *Result) Converged() bool { return r.Alignment.Converged }

// NumSubjects is the number of loaded subjects
func (r *Result) NumSubjects() int { return r.numSubjects }

// ClosestSample names the subject nearest to the mean shape
func (r *Result) ClosestSample() string { return r.IDs[r.closest] }

// DistanceTable lists subjects from the most to the least typical
func (r *Result) DistanceTable() []export.DistanceEntry {
	entries, _ := export.SortedDistances(r.IDs, r.Distances)
	return entries
}

func (r *Result) baseOrRawMean(base mat.Matrix) mat.Matrix {
	if base == nil {
		return r.rawMean
	}
	return base
}

// Predict moves base along the selected components in specimen units. A nil
// base uses the raw mean shape.
func (r *Result) Predict(base mat.Matrix, selections []shape.Selection) (*mat.Dense, error) {
	return shape.Predict(r.Model, r.baseOrRawMean(base), selections, r.SampleScale)
}

// Lollipop returns the lollipop endpoints for a 1-based component starting
// at base, or at the raw mean when base is nil.
func (r *Result) Lollipop(base mat.Matrix, component int) (*mat.Dense, error) {
	return shape.LollipopEndpoints(r.Model, r.baseOrRawMean(base), component, r.SampleScale)
}

// Variation is the per landmark, per axis spread of the aligned shapes
func (r *Result) Variation() (*mat.Dense, error) {
	return shape.LandmarkVariation(r.Alignment.Aligned, r.Alignment.Mean, r.SampleScale)
}

// Scatter returns the scores on two 1-based components with axis titles
func (r *Result) Scatter(xComponent, yComponent int) (*mat.Dense, string, string, error) {
	proj, err := r.Model.Project(r.Alignment.Aligned, xComponent-1, yComponent-1)
	if err != nil {
		return nil, "", "", err
	}
	percent := r.Model.PercentVariance()
	title := func(k int) string { return fmt.Sprintf("PC%d (%.1f%%)", k, 100*percent[k-1]) }
	return proj, title(xComponent), title(yComponent), nil
}

// Warp builds the thin-plate spline from source to source moved along the
// selected components. A nil source uses the raw mean shape.
func (r *Result) Warp(source mat.Matrix, selections []shape.Selection) (*interpolation.ThinPlateSpline, error) {
	src := r.baseOrRawMean(source)
	target, err := shape.Predict(r.Model, src, selections, r.SampleScale)
	if err != nil {
		return nil, err
	}
	return interpolation.NewThinPlateSpline(src, target)
}

func (r *Result) manifest(files []string) export.Manifest {
	rows, _ := r.rawMean.Dims()
	return export.Manifest{
		RunID:         r.RunID,
		CreatedAt:     r.CreatedAt,
		InputFolder:   r.InputDir,
		Subjects:      r.IDs,
		Landmarks:     rows,
		Excluded:      r.Excluded,
		Scaling:       r.Scaling,
		Iterations:    r.Alignment.Iterations,
		Converged:     r.Alignment.Converged,
		SumSquares:    r.Alignment.SumSquares,
		SortedByVar:   r.Model.Sorted,
		SampleScale:   r.SampleScale,
		ClosestSample: r.ClosestSample(),
		PercentVar:    r.Model.PercentVariance(),
		Files:         files,
	}
}
