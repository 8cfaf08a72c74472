package pca

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func randomConfigs(n, landmarks int, seed int64) []*mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*mat.Dense, n)
	for s := range out {
		c := mat.NewDense(landmarks, 3, nil)
		for l := 0; l < landmarks; l++ {
			for d := 0; d < 3; d++ {
				c.Set(l, d, float64(l*d)+rng.NormFloat64())
			}
		}
		out[s] = c
	}
	return out
}

func TestFitCovarianceProperties(t *testing.T) {
	// 5 subjects, 4 landmarks: 12 features, so the covariance is rank deficient
	configs := randomConfigs(5, 4, 1)
	m, err := Fit(configs, Options{SortDescending: true})
	require.NoError(t, err)

	n, _ := m.Covariance.Dims()
	require.Equal(t, 12, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, m.Covariance.At(i, j), m.Covariance.At(j, i), 1e-12)
		}
	}

	// Zero eigenvalues are kept so components stay positional
	assert.Equal(t, 12, m.NumComponents())
	assert.Equal(t, 4, m.NumLandmarks())
	for _, v := range m.Values {
		assert.GreaterOrEqual(t, v, -1e-9)
	}
	assert.InDelta(t, m.TotalVariance(), floats.Sum(m.Values), 1e-9)
	assert.InDelta(t, 1.0, floats.Sum(m.PercentVariance()), 1e-12)
}

func TestFitOrdering(t *testing.T) {
	configs := randomConfigs(20, 3, 2)

	sorted, err := Fit(configs, Options{SortDescending: true})
	require.NoError(t, err)
	assert.True(t, sorted.Sorted)
	for k := 1; k < sorted.NumComponents(); k++ {
		assert.GreaterOrEqual(t, sorted.Values[k-1], sorted.Values[k])
	}

	raw, err := Fit(configs, Options{})
	require.NoError(t, err)
	assert.False(t, raw.Sorted)
	for k := 1; k < raw.NumComponents(); k++ {
		assert.LessOrEqual(t, raw.Values[k-1], raw.Values[k])
	}

	// Same eigenpairs, reversed order; vectors agree up to sign
	last := raw.NumComponents() - 1
	assert.InDelta(t, raw.Values[last], sorted.Values[0], 1e-12)
	a, _ := raw.Component(last)
	b, _ := sorted.Component(0)
	assert.InDelta(t, 1.0, abs(floats.Dot(a, b)), 1e-9)
}

func TestScoresVarianceMatchesEigenvalues(t *testing.T) {
	configs := randomConfigs(30, 3, 3)
	m, err := Fit(configs, Options{SortDescending: true})
	require.NoError(t, err)

	scores := m.Scores(configs)
	rows, cols := scores.Dims()
	assert.Equal(t, 30, rows)
	assert.Equal(t, m.NumComponents(), cols)

	for k := 0; k < cols; k++ {
		col := mat.Col(nil, k, scores)
		assert.InDelta(t, 0, stat.Mean(col, nil), 1e-9)
		assert.InDelta(t, m.Values[k], stat.Variance(col, nil), 1e-9)
	}

	xy, err := m.Project(configs, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, scores.At(4, 1), xy.At(4, 1))
}

func TestComponentShapeLayout(t *testing.T) {
	configs := randomConfigs(6, 2, 4)
	m, err := Fit(configs, Options{SortDescending: true})
	require.NoError(t, err)

	v, err := m.Component(0)
	require.NoError(t, err)
	shape, err := m.ComponentShape(0)
	require.NoError(t, err)

	// x block, then y block, then z block
	assert.Equal(t, v[0], shape.At(0, 0))
	assert.Equal(t, v[1], shape.At(1, 0))
	assert.Equal(t, v[2], shape.At(0, 1))
	assert.Equal(t, v[5], shape.At(1, 2))
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(randomConfigs(1, 3, 5), Options{})
	assert.True(t, errors.Is(err, ErrTooFewSubjects))

	m, err := Fit(randomConfigs(3, 3, 5), Options{})
	require.NoError(t, err)
	_, err = m.Component(m.NumComponents())
	assert.True(t, errors.Is(err, ErrComponentRange))
	_, err = m.Project(nil, -1, 0)
	assert.True(t, errors.Is(err, ErrComponentRange))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
