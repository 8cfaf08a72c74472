package procrustes

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Centroid returns the mean position of the rows of config
func Centroid(config mat.Matrix) []float64 {
	rows, cols := config.Dims()
	centroid := make([]float64, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, config)
		centroid[c] = stat.Mean(col, nil)
	}
	return centroid
}

// Center returns a copy of config translated so its centroid is the origin
func Center(config mat.Matrix) *mat.Dense {
	centroid := Centroid(config)
	out := mat.DenseCopyOf(config)
	rows, cols := out.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, out.At(r, c)-centroid[c])
		}
	}
	return out
}

// CentroidSize is the square root of the summed squared distances of the
// landmarks from their centroid.
func CentroidSize(config mat.Matrix) float64 {
	return mat.Norm(Center(config), 2)
}

// Distance is the Euclidean (Frobenius) distance between two configurations
func Distance(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

// Distances returns the Procrustes distance of each configuration to mean
func Distances(configs []*mat.Dense, mean mat.Matrix) []float64 {
	out := make([]float64, len(configs))
	for i, c := range configs {
		out[i] = Distance(c, mean)
	}
	return out
}

// OptimalRotation returns the proper rotation R (det(R) = +1) minimising
// ||x·R - target||. Both inputs must already be centred. If the unconstrained
// optimum is a reflection, the axis with the smallest singular value is flipped.
func OptimalRotation(x, target mat.Matrix) (*mat.Dense, error) {
	var m mat.Dense
	m.Mul(x.T(), target)

	var svd mat.SVD
	if ok := svd.Factorize(&m, mat.SVDFull); !ok {
		return nil, ErrSVDFailed
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		n, _ := u.Dims()
		d := mat.NewDiagDense(n, nil)
		for i := 0; i < n-1; i++ {
			d.SetDiag(i, 1)
		}
		d.SetDiag(n-1, -1)
		var ud mat.Dense
		ud.Mul(&u, d)
		r.Mul(&ud, v.T())
	}
	return &r, nil
}

// IsProperRotation reports whether r is orthogonal with determinant +1 within tol
func IsProperRotation(r mat.Matrix, tol float64) bool {
	n, c := r.Dims()
	if n != c {
		return false
	}
	if math.Abs(mat.Det(r)-1) > tol {
		return false
	}
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	return mat.EqualApprox(&rtr, eye(n), tol)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
