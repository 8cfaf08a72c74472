// Package pca decomposes the covariance of aligned landmark configurations
// into principal components of shape variation.
package pca

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"slicermorph/internal/models"
)

// Options controls component ordering
type Options struct {
	// SortDescending orders components by decreasing eigenvalue so that PC1
	// explains the most variance. When false the decomposition order is kept,
	// which for a symmetric eigensolver is ascending.
	SortDescending bool
}

// Model is a fitted covariance model. Components are positional: zero or
// near-zero eigenvalues from rank deficiency are kept, never filtered.
type Model struct {
	// Covariance is the (landmarks·3)×(landmarks·3) sample covariance matrix
	Covariance *mat.SymDense

	// Values[k] is the variance along component k
	Values []float64

	// Vectors holds one unit eigenvector per column, in the same order as Values.
	// Each column is laid out as x block, y block, z block.
	Vectors *mat.Dense

	// FeatureMean is the mean feature vector the scores are measured from
	FeatureMean []float64

	// Sorted records whether components were reordered by decreasing variance
	Sorted bool

	numLandmarks int
}

// Fit computes the covariance model of the aligned configurations
func Fit(aligned []*mat.Dense, opts Options) (*Model, error) {
	if len(aligned) < 2 {
		return nil, errors.Wrapf(ErrTooFewSubjects, "got %d", len(aligned))
	}

	x := featureMatrix(aligned)
	_, features := x.Dims()

	cov := mat.NewSymDense(features, nil)
	stat.CovarianceMatrix(cov, x, nil)

	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return nil, ErrEigenFailed
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	m := &Model{
		Covariance:   cov,
		Values:       values,
		Vectors:      &vectors,
		FeatureMean:  make([]float64, features),
		numLandmarks: features / models.Dims,
	}
	for f := 0; f < features; f++ {
		m.FeatureMean[f] = stat.Mean(mat.Col(nil, f, x), nil)
	}

	if opts.SortDescending {
		m.sortDescending()
	}
	return m, nil
}

// featureMatrix builds the subjects×features matrix, one flattened
// configuration per row.
func featureMatrix(configs []*mat.Dense) *mat.Dense {
	rows, _ := configs[0].Dims()
	x := mat.NewDense(len(configs), rows*models.Dims, nil)
	for s, c := range configs {
		x.SetRow(s, models.FeatureVector(c))
	}
	return x
}

func (m *Model) sortDescending() {
	order := make([]int, len(m.Values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m.Values[order[a]] > m.Values[order[b]]
	})

	rows, cols := m.Vectors.Dims()
	values := make([]float64, len(m.Values))
	vectors := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for dst, src := range order {
		values[dst] = m.Values[src]
		mat.Col(col, src, m.Vectors)
		vectors.SetCol(dst, col)
	}
	m.Values = values
	m.Vectors = vectors
	m.Sorted = true
}

// NumComponents returns the number of eigenpairs
func (m *Model) NumComponents() int { return len(m.Values) }

// NumLandmarks returns the landmark count the model was fitted on
func (m *Model) NumLandmarks() int { return m.numLandmarks }

// TotalVariance is the trace of the covariance matrix
func (m *Model) TotalVariance() float64 {
	return mat.Trace(m.Covariance)
}

// PercentVariance returns each eigenvalue as a fraction of the eigenvalue sum
func (m *Model) PercentVariance() []float64 {
	total := floats.Sum(m.Values)
	out := make([]float64, len(m.Values))
	if total == 0 {
		return out
	}
	floats.ScaleTo(out, 1/total, m.Values)
	return out
}

// Component returns a copy of the k-th (0-based) eigenvector
func (m *Model) Component(k int) ([]float64, error) {
	if k < 0 || k >= m.NumComponents() {
		return nil, errors.Wrapf(ErrComponentRange, "component %d of %d", k+1, m.NumComponents())
	}
	return mat.Col(nil, k, m.Vectors), nil
}

// ComponentShape returns the k-th (0-based) eigenvector reshaped to a
// landmarks×3 displacement field.
func (m *Model) ComponentShape(k int) (*mat.Dense, error) {
	v, err := m.Component(k)
	if err != nil {
		return nil, err
	}
	return models.FromFeatureVector(v), nil
}

// Scores projects each aligned configuration, centred on the feature mean,
// onto every component. The result is subjects×components.
func (m *Model) Scores(aligned []*mat.Dense) *mat.Dense {
	x := featureMatrix(aligned)
	rows, cols := x.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x.Set(r, c, x.At(r, c)-m.FeatureMean[c])
		}
	}
	var scores mat.Dense
	scores.Mul(x, m.Vectors)
	return &scores
}

// Project returns the scores on two components (0-based) as a subjects×2
// matrix, the data behind a PC scatter plot.
func (m *Model) Project(aligned []*mat.Dense, xComponent, yComponent int) (*mat.Dense, error) {
	for _, k := range []int{xComponent, yComponent} {
		if k < 0 || k >= m.NumComponents() {
			return nil, errors.Wrapf(ErrComponentRange, "component %d of %d", k+1, m.NumComponents())
		}
	}
	scores := m.Scores(aligned)
	rows, _ := scores.Dims()
	out := mat.NewDense(rows, 2, nil)
	for r := 0; r < rows; r++ {
		out.Set(r, 0, scores.At(r, xComponent))
		out.Set(r, 1, scores.At(r, yComponent))
	}
	return out, nil
}
