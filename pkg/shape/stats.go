package shape

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SampleSizeScale is the largest pairwise distance between the landmarks of
// config, normally the raw mean shape. It puts unit-size eigenvectors back
// into the specimen's coordinate scale.
func SampleSizeScale(config mat.Matrix) float64 {
	rows, _ := config.Dims()
	if rows < 2 {
		return 0
	}
	dists := make([]float64, 0, rows*(rows-1)/2)
	for i := 0; i < rows; i++ {
		for j := i + 1; j < rows; j++ {
			dx := config.At(i, 0) - config.At(j, 0)
			dy := config.At(i, 1) - config.At(j, 1)
			dz := config.At(i, 2) - config.At(j, 2)
			dists = append(dists, math.Sqrt(dx*dx+dy*dy+dz*dz))
		}
	}
	return floats.Max(dists)
}

// LandmarkVariation returns, per landmark and axis, the standard deviation of
// the aligned coordinates about mean multiplied by sampleScale.
func LandmarkVariation(aligned []*mat.Dense, mean mat.Matrix, sampleScale float64) (*mat.Dense, error) {
	if len(aligned) < 2 {
		return nil, ErrTooFewSubjects
	}
	rows, cols := mean.Dims()
	acc := mat.NewDense(rows, cols, nil)
	var diff mat.Dense
	for _, a := range aligned {
		diff.Sub(a, mean)
		diff.MulElem(&diff, &diff)
		acc.Add(acc, &diff)
	}
	n := float64(len(aligned) - 1)
	acc.Apply(func(_, _ int, v float64) float64 {
		return sampleScale * math.Sqrt(v/n)
	}, acc)
	return acc, nil
}

// ClosestSample returns the index of the smallest Procrustes distance
func ClosestSample(distances []float64) (int, error) {
	if len(distances) == 0 {
		return -1, errors.New("shape: no distances")
	}
	return floats.MinIdx(distances), nil
}
