// Package interpolation builds smooth 3D warps from landmark correspondences.
package interpolation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ThinPlateSpline is a 3D thin-plate spline warp with the biharmonic kernel
// U(r) = r. It maps every source landmark exactly onto its target and
// interpolates smoothly everywhere else.
type ThinPlateSpline struct {
	// source landmarks, n×3
	source *mat.Dense

	// weights holds the n kernel weights followed by the 4 affine rows, (n+4)×3
	weights *mat.Dense
}

// NewThinPlateSpline solves for the warp taking source onto target.
//
// The system is
//
//	[ K  P ] [ W ]   [ Q ]
//	[ Pᵀ 0 ] [ A ] = [ 0 ]
//
// with K_ij = |p_i - p_j| and P the rows [1 x y z] of the source landmarks.
func NewThinPlateSpline(source, target mat.Matrix) (*ThinPlateSpline, error) {
	n, sc := source.Dims()
	tn, tc := target.Dims()
	if n != tn || sc != 3 || tc != 3 {
		return nil, errors.Wrapf(ErrLandmarkMismatch, "source %dx%d, target %dx%d", n, sc, tn, tc)
	}
	if n < 4 {
		return nil, errors.Wrapf(ErrTooFewLandmarks, "got %d", n)
	}

	size := n + 4
	l := mat.NewDense(size, size, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := distance(source, i, j)
			l.Set(i, j, r)
			l.Set(j, i, r)
		}
		l.Set(i, n, 1)
		l.Set(n, i, 1)
		for c := 0; c < 3; c++ {
			l.Set(i, n+1+c, source.At(i, c))
			l.Set(n+1+c, i, source.At(i, c))
		}
	}

	rhs := mat.NewDense(size, 3, nil)
	rhs.Slice(0, n, 0, 3).(*mat.Dense).Copy(target)

	weights, err := solve(l, rhs)
	if err != nil {
		return nil, err
	}
	return &ThinPlateSpline{source: mat.DenseCopyOf(source), weights: weights}, nil
}

// maxCondition bounds the LU condition estimate accepted as a usable solve
const maxCondition = 1e12

// solve tries LU first. Coplanar landmarks leave the affine block rank
// deficient, so singular or badly conditioned systems fall back to the
// minimum-norm least squares solution, which must reproduce rhs.
func solve(l, rhs *mat.Dense) (*mat.Dense, error) {
	var x mat.Dense
	err := x.Solve(l, rhs)
	if err == nil {
		return &x, nil
	}
	if c, ok := err.(mat.Condition); !ok {
		return nil, errors.Wrap(ErrSingularSystem, err.Error())
	} else if !math.IsInf(float64(c), 0) && !math.IsNaN(float64(c)) && float64(c) < maxCondition {
		return &x, nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(l, mat.SVDThin); !ok {
		return nil, errors.Wrap(ErrSingularSystem, "SVD did not converge")
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		return nil, errors.Wrap(ErrSingularSystem, "zero rank")
	}
	var ls mat.Dense
	svd.SolveTo(&ls, rhs, rank)

	var resid mat.Dense
	resid.Mul(l, &ls)
	resid.Sub(&resid, rhs)
	if r := mat.Norm(&resid, 2); r > 1e-8*math.Max(1, mat.Norm(rhs, 2)) {
		return nil, errors.Wrapf(ErrSingularSystem, "rank %d of %d, residual %g", rank, l.RawMatrix().Rows, r)
	}
	return &ls, nil
}

func distance(m mat.Matrix, i, j int) float64 {
	dx := m.At(i, 0) - m.At(j, 0)
	dy := m.At(i, 1) - m.At(j, 1)
	dz := m.At(i, 2) - m.At(j, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// TransformPoint warps a single point
func (t *ThinPlateSpline) TransformPoint(p [3]float64) [3]float64 {
	n, _ := t.source.Dims()
	var out [3]float64
	for i := 0; i < n; i++ {
		dx := p[0] - t.source.At(i, 0)
		dy := p[1] - t.source.At(i, 1)
		dz := p[2] - t.source.At(i, 2)
		u := math.Sqrt(dx*dx + dy*dy + dz*dz)
		for c := 0; c < 3; c++ {
			out[c] += t.weights.At(i, c) * u
		}
	}
	for c := 0; c < 3; c++ {
		out[c] += t.weights.At(n, c) +
			t.weights.At(n+1, c)*p[0] +
			t.weights.At(n+2, c)*p[1] +
			t.weights.At(n+3, c)*p[2]
	}
	return out
}

// Transform warps every row of points and returns a new matrix
func (t *ThinPlateSpline) Transform(points mat.Matrix) *mat.Dense {
	rows, _ := points.Dims()
	out := mat.NewDense(rows, 3, nil)
	for r := 0; r < rows; r++ {
		p := t.TransformPoint([3]float64{points.At(r, 0), points.At(r, 1), points.At(r, 2)})
		out.SetRow(r, p[:])
	}
	return out
}

// NumLandmarks returns the number of control points
func (t *ThinPlateSpline) NumLandmarks() int {
	n, _ := t.source.Dims()
	return n
}
