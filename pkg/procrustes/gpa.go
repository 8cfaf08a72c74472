// Package procrustes implements Generalized Procrustes Analysis: it removes
// translation, rotation and optionally scale from a set of landmark
// configurations, aligning them to an iteratively refined mean shape.
package procrustes

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
)

// Options controls the alignment
type Options struct {
	// Scale normalises every subject to unit centroid size. When false only
	// translation and rotation are removed and subjects keep their size.
	Scale bool

	// MaxIterations caps the mean refinement loop
	MaxIterations int

	// Tolerance is the minimum decrease in total squared Procrustes distance
	// for another iteration to be worthwhile
	Tolerance float64
}

// DefaultOptions returns full GPA with scaling
func DefaultOptions() Options {
	return Options{
		Scale:         true,
		MaxIterations: 100,
		Tolerance:     1e-10,
	}
}

// IterationFunc is notified after each refinement iteration with the total
// squared Procrustes distance to the new mean.
type IterationFunc func(iteration, maxIterations int, sumSquares float64)

// Result is the outcome of an alignment
type Result struct {
	// Aligned holds the centred, scaled and rotated configurations in subject order
	Aligned []*mat.Dense

	// Mean is the converged mean shape
	Mean *mat.Dense

	// Rotations[i] is the proper rotation applied to subject i (Aligned = centred·scale·R)
	Rotations []*mat.Dense

	// ScaleFactors[i] is the isotropic factor applied to subject i (1 when scaling is off)
	ScaleFactors []float64

	// SumSquares is the final total squared Procrustes distance to Mean
	SumSquares float64

	// Iterations is the number of refinement iterations run
	Iterations int

	// Converged is false when MaxIterations ran out first. The result is still
	// the best configuration reached.
	Converged bool
}

// Align runs Generalized Procrustes Analysis over set
func Align(ctx context.Context, set *models.LandmarkSet, opts Options, onIteration IterationFunc) (*Result, error) {
	n := set.NumSubjects()
	if n == 0 {
		return nil, ErrEmptySet
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	res := &Result{ScaleFactors: make([]float64, n)}

	// Remove translation, and size if requested
	centred := make([]*mat.Dense, n)
	for i, config := range set.Configs {
		c := Center(config)
		res.ScaleFactors[i] = 1
		if opts.Scale {
			size := mat.Norm(c, 2)
			if size == 0 {
				return nil, errors.Wrapf(ErrDegenerate, "subject %s", set.IDs[i])
			}
			res.ScaleFactors[i] = 1 / size
			c.Scale(res.ScaleFactors[i], c)
		}
		centred[i] = c
	}

	step := func(mean *mat.Dense) (*iterate, error) {
		return refine(set, centred, mean, opts.Scale)
	}
	best, iterations, converged, err := converge(ctx, mat.DenseCopyOf(centred[0]), opts, step, onIteration)
	if err != nil {
		return nil, err
	}

	res.Aligned = best.aligned
	res.Rotations = best.rotations
	res.Mean = best.mean
	res.SumSquares = best.sumSquares
	res.Iterations = iterations
	res.Converged = converged
	return res, nil
}

// iterate is the state after one refinement pass
type iterate struct {
	aligned    []*mat.Dense
	rotations  []*mat.Dense
	mean       *mat.Dense
	sumSquares float64
}

// converge repeats step until the sum of squares stops decreasing by at least
// the tolerance. An iteration that increases it is discarded and the previous
// one is returned.
func converge(ctx context.Context, mean *mat.Dense, opts Options, step func(*mat.Dense) (*iterate, error), onIteration IterationFunc) (*iterate, int, bool, error) {
	var best *iterate
	prev := math.Inf(1)
	iter := 1
	for ; iter <= opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, false, errors.Wrapf(err, "alignment cancelled at iteration %d", iter)
		}

		next, err := step(mean)
		if err != nil {
			return nil, 0, false, err
		}
		if onIteration != nil {
			onIteration(iter, opts.MaxIterations, next.sumSquares)
		}

		if next.sumSquares > prev {
			return best, iter, true, nil
		}
		best = next
		if prev-next.sumSquares < opts.Tolerance {
			return best, iter, true, nil
		}
		prev = next.sumSquares
		mean = next.mean
	}
	return best, iter - 1, false, nil
}

// refine rotates every centred subject onto mean and recomputes the mean
func refine(set *models.LandmarkSet, centred []*mat.Dense, mean *mat.Dense, scale bool) (*iterate, error) {
	n := len(centred)
	it := &iterate{
		aligned:   make([]*mat.Dense, n),
		rotations: make([]*mat.Dense, n),
	}
	for i, c := range centred {
		r, err := OptimalRotation(c, mean)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", set.IDs[i])
		}
		aligned := mat.NewDense(set.NumLandmarks(), models.Dims, nil)
		aligned.Mul(c, r)
		it.aligned[i] = aligned
		it.rotations[i] = r
	}

	next := Center(averageOf(it.aligned))
	if scale {
		size := mat.Norm(next, 2)
		if size == 0 {
			return nil, errors.Wrap(ErrDegenerate, "mean shape collapsed")
		}
		next.Scale(1/size, next)
	}
	it.mean = next

	squares := make([]float64, n)
	for i, a := range it.aligned {
		d := Distance(a, next)
		squares[i] = d * d
	}
	it.sumSquares = floats.Sum(squares)
	return it, nil
}

func averageOf(configs []*mat.Dense) *mat.Dense {
	rows, cols := configs[0].Dims()
	sum := mat.NewDense(rows, cols, nil)
	for _, c := range configs {
		sum.Add(sum, c)
	}
	sum.Scale(1/float64(len(configs)), sum)
	return sum
}
