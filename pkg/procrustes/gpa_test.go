package procrustes

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
)

const tol = 1e-9

// rotationMatrix builds a proper rotation from Euler angles (row-vector convention)
func rotationMatrix(ax, ay, az float64) *mat.Dense {
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(ax), math.Sin(ax),
		0, -math.Sin(ax), math.Cos(ax),
	})
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(ay), 0, -math.Sin(ay),
		0, 1, 0,
		math.Sin(ay), 0, math.Cos(ay),
	})
	rz := mat.NewDense(3, 3, []float64{
		math.Cos(az), math.Sin(az), 0,
		-math.Sin(az), math.Cos(az), 0,
		0, 0, 1,
	})
	var r mat.Dense
	r.Mul(rx, ry)
	r.Mul(&r, rz)
	return &r
}

// transform applies scale, rotation then translation to config
func transform(config *mat.Dense, scale float64, r *mat.Dense, shift [3]float64) *mat.Dense {
	var out mat.Dense
	out.Mul(config, r)
	out.Scale(scale, &out)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		for c := 0; c < 3; c++ {
			out.Set(i, c, out.At(i, c)+shift[c])
		}
	}
	return &out
}

// randomSet builds n noisy, randomly posed copies of a random base shape
func randomSet(t *testing.T, n, landmarks int, noise float64, seed int64) *models.LandmarkSet {
	rng := rand.New(rand.NewSource(seed))
	base := mat.NewDense(landmarks, 3, nil)
	for i := 0; i < landmarks; i++ {
		for c := 0; c < 3; c++ {
			base.Set(i, c, rng.Float64()*10)
		}
	}

	ids := make([]string, n)
	configs := make([]*mat.Dense, n)
	for s := 0; s < n; s++ {
		noisy := mat.DenseCopyOf(base)
		for i := 0; i < landmarks; i++ {
			for c := 0; c < 3; c++ {
				noisy.Set(i, c, noisy.At(i, c)+rng.NormFloat64()*noise)
			}
		}
		r := rotationMatrix(rng.Float64()*math.Pi, rng.Float64()*math.Pi, rng.Float64()*math.Pi)
		shift := [3]float64{rng.Float64() * 50, rng.Float64() * 50, rng.Float64() * 50}
		configs[s] = transform(noisy, 0.5+rng.Float64()*2, r, shift)
		ids[s] = string(rune('a' + s))
	}
	set, err := models.NewLandmarkSet(ids, configs)
	require.NoError(t, err)
	return set
}

func TestOptimalRotationRecoversKnownRotation(t *testing.T) {
	x := Center(mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	}))
	want := rotationMatrix(0.3, -1.1, 2.0)
	var target mat.Dense
	target.Mul(x, want)

	got, err := OptimalRotation(x, &target)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(got, want, 1e-9))
	assert.True(t, IsProperRotation(got, 1e-9))
}

func TestOptimalRotationNeverReflects(t *testing.T) {
	x := Center(mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	}))
	// Mirror image: the best orthogonal fit is a reflection, which must be refused
	mirror := mat.NewDense(3, 3, []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})
	var target mat.Dense
	target.Mul(x, mirror)

	r, err := OptimalRotation(x, &target)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mat.Det(r), 1e-9)
	assert.True(t, IsProperRotation(r, 1e-9))
}

func TestAlignInvariants(t *testing.T) {
	set := randomSet(t, 8, 6, 0.2, 7)

	for _, scale := range []bool{true, false} {
		opts := DefaultOptions()
		opts.Scale = scale
		res, err := Align(context.Background(), set, opts, nil)
		require.NoError(t, err)

		for i, a := range res.Aligned {
			for _, c := range Centroid(a) {
				assert.InDelta(t, 0, c, tol, "subject %d centroid", i)
			}
			assert.True(t, IsProperRotation(res.Rotations[i], 1e-9), "subject %d rotation", i)

			if scale {
				assert.InDelta(t, 1.0, CentroidSize(a), 1e-9)
			} else {
				assert.InDelta(t, CentroidSize(set.Configs[i]), CentroidSize(a), 1e-9)
				assert.Equal(t, 1.0, res.ScaleFactors[i])
			}
		}
		for _, c := range Centroid(res.Mean) {
			assert.InDelta(t, 0, c, tol)
		}
		assert.True(t, res.Converged)
	}
}

func TestAlignReducesDistanceToMean(t *testing.T) {
	set := randomSet(t, 10, 8, 0.05, 11)
	res, err := Align(context.Background(), set, DefaultOptions(), nil)
	require.NoError(t, err)

	for i, d := range Distances(res.Aligned, res.Mean) {
		// Noise is small relative to shape size, so aligned subjects sit close to the mean
		assert.Less(t, d, 0.1, "subject %d", i)
	}
}

func TestAlignSquareScenario(t *testing.T) {
	a := 1 / math.Sqrt(8)
	square := mat.NewDense(4, 3, []float64{
		a, 0, a,
		-a, 0, a,
		-a, 0, -a,
		a, 0, -a,
	})
	rotated := transform(square, 1, rotationMatrix(0, math.Pi/2, 0), [3]float64{})
	scaled := transform(square, 2, rotationMatrix(0, 0, 0), [3]float64{})

	set, err := models.NewLandmarkSet([]string{"canonical", "rotated", "scaled"}, []*mat.Dense{square, rotated, scaled})
	require.NoError(t, err)

	res, err := Align(context.Background(), set, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.True(t, mat.EqualApprox(res.Mean, square, 1e-9))
	for i, d := range Distances(res.Aligned, res.Mean) {
		assert.InDelta(t, 0, d, 1e-9, "subject %d", i)
	}
	assert.InDelta(t, 0.5, res.ScaleFactors[2], 1e-12)
}

func TestAlignIterationCapIsNotFatal(t *testing.T) {
	set := randomSet(t, 6, 5, 0.5, 3)
	opts := DefaultOptions()
	opts.MaxIterations = 1

	var calls int
	res, err := Align(context.Background(), set, opts, func(iteration, max int, ss float64) {
		calls++
		assert.Equal(t, 1, max)
	})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, calls)
	assert.NotNil(t, res.Mean)
}

func TestAlignErrors(t *testing.T) {
	zero := mat.NewDense(3, 3, nil)
	set, err := models.NewLandmarkSet([]string{"flat"}, []*mat.Dense{zero})
	require.NoError(t, err)

	_, err = Align(context.Background(), set, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, ErrDegenerate), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Align(ctx, randomSet(t, 3, 4, 0.1, 1), DefaultOptions(), nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	_, err = Align(context.Background(), &models.LandmarkSet{}, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, ErrEmptySet))
}

func TestConvergeKeepsBestIteration(t *testing.T) {
	sums := []float64{5, 3, 4, 1}
	var calls int
	step := func(mean *mat.Dense) (*iterate, error) {
		ss := sums[calls]
		calls++
		return &iterate{mean: mat.NewDense(1, 1, []float64{ss}), sumSquares: ss}, nil
	}

	opts := DefaultOptions()
	best, iterations, converged, err := converge(context.Background(), mat.NewDense(1, 1, nil), opts, step, nil)
	require.NoError(t, err)
	assert.True(t, converged)
	assert.Equal(t, 3, iterations)
	assert.Equal(t, 3.0, best.sumSquares)
	assert.Equal(t, 3.0, best.mean.At(0, 0), "mean must come from the kept iteration")
	assert.Equal(t, 3, calls)
}

func TestAlignReportsMinimumSumSquares(t *testing.T) {
	set := randomSet(t, 8, 6, 0.4, 11)
	lowest := math.Inf(1)
	res, err := Align(context.Background(), set, DefaultOptions(), func(_, _ int, ss float64) {
		lowest = math.Min(lowest, ss)
	})
	require.NoError(t, err)
	assert.Equal(t, lowest, res.SumSquares)

	var ss float64
	for _, a := range res.Aligned {
		d := Distance(a, res.Mean)
		ss += d * d
	}
	assert.InDelta(t, res.SumSquares, ss, tol, "aligned set and mean must come from the same iteration")
}
