package shape

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"slicermorph/pkg/pca"
)

func fittedModel(t *testing.T, n, landmarks int) (*pca.Model, []*mat.Dense) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	configs := make([]*mat.Dense, n)
	for s := range configs {
		c := mat.NewDense(landmarks, 3, nil)
		for l := 0; l < landmarks; l++ {
			for d := 0; d < 3; d++ {
				c.Set(l, d, float64(l+d)+rng.NormFloat64()*0.1)
			}
		}
		configs[s] = c
	}
	m, err := pca.Fit(configs, pca.Options{SortDescending: true})
	require.NoError(t, err)
	return m, configs
}

func TestPredictZeroScaleIsIdentity(t *testing.T) {
	m, configs := fittedModel(t, 8, 4)
	base := configs[0]

	got, err := Predict(m, base, []Selection{{1, 0}, {2, 0}, {0, 5}}, 3.7)
	require.NoError(t, err)
	assert.True(t, mat.Equal(base, got))

	got, err = Predict(m, base, nil, 3.7)
	require.NoError(t, err)
	assert.True(t, mat.Equal(base, got))
}

func TestPredictAccumulatesComponents(t *testing.T) {
	m, configs := fittedModel(t, 8, 4)
	base := configs[1]

	got, err := Predict(m, base, []Selection{{1, 0.5}, {3, -0.25}}, 2)
	require.NoError(t, err)

	pc1, _ := m.Component(0)
	pc3, _ := m.Component(2)
	nl := m.NumLandmarks()
	for l := 0; l < nl; l++ {
		for c := 0; c < 3; c++ {
			want := base.At(l, c) + 0.5*2*pc1[c*nl+l] - 0.25*2*pc3[c*nl+l]
			assert.InDelta(t, want, got.At(l, c), 1e-12)
		}
	}

	// The same component twice adds up
	twice, err := Predict(m, base, []Selection{{1, 0.5}, {1, 0.5}}, 1)
	require.NoError(t, err)
	once, err := Predict(m, base, []Selection{{1, 1}}, 1)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(twice, once, 1e-12))
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	m, configs := fittedModel(t, 5, 3)

	_, err := Predict(m, configs[0], []Selection{{m.NumComponents() + 1, 1}}, 1)
	assert.True(t, errors.Is(err, ErrInvalidComponent), "got %v", err)

	_, err = Predict(m, configs[0], []Selection{{-1, 1}}, 1)
	assert.True(t, errors.Is(err, ErrInvalidComponent), "got %v", err)

	_, err = Predict(m, mat.NewDense(2, 3, nil), nil, 1)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	assert.NoError(t, ValidateSelections(m, []Selection{{0, 1}, {m.NumComponents(), 1}}))
}

func TestLollipopEndpoints(t *testing.T) {
	m, configs := fittedModel(t, 6, 3)
	base := configs[2]

	end, err := LollipopEndpoints(m, base, 2, 3)
	require.NoError(t, err)
	block, _ := m.ComponentShape(1)
	var diff mat.Dense
	diff.Sub(end, base)
	assert.True(t, mat.EqualApprox(&diff, block, 1e-12))

	_, err = LollipopEndpoints(m, base, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidComponent))
}

func TestSampleSizeScale(t *testing.T) {
	config := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		3, 4, 0,
		1, 0, 0,
	})
	assert.Equal(t, 5.0, SampleSizeScale(config))
	assert.Equal(t, 0.0, SampleSizeScale(mat.NewDense(1, 3, nil)))
}

func TestLandmarkVariation(t *testing.T) {
	mean := mat.NewDense(1, 3, []float64{0, 0, 0})
	aligned := []*mat.Dense{
		mat.NewDense(1, 3, []float64{1, 0, 2}),
		mat.NewDense(1, 3, []float64{-1, 0, -2}),
	}
	v, err := LandmarkVariation(aligned, mean, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10*math.Sqrt2, v.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, v.At(0, 1))
	assert.InDelta(t, 10*math.Sqrt(8), v.At(0, 2), 1e-12)

	_, err = LandmarkVariation(aligned[:1], mean, 1)
	assert.True(t, errors.Is(err, ErrTooFewSubjects))
}

func TestClosestSample(t *testing.T) {
	idx, err := ClosestSample([]float64{0.3, 0.05, 0.2})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = ClosestSample(nil)
	assert.Error(t, err)
}
