package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dims is the coordinate dimensionality of every landmark (x, y, z)
const Dims = 3

// LandmarkSet holds one landmark configuration per subject.
//
// Conceptually it is a (landmark × coordinate × subject) array. Every
// configuration is a landmarks×3 matrix and all of them share the same
// landmark count. Subject order is the order the loader discovered the files
// in, and IDs[s] labels Configs[s].
type LandmarkSet struct {
	// IDs are the subject identifiers (file names without suffix)
	IDs []string

	// Configs are the per-subject landmarks×3 configurations
	Configs []*mat.Dense
}

// NewLandmarkSet validates that every configuration has the same shape and
// builds a LandmarkSet owning copies of them.
func NewLandmarkSet(ids []string, configs []*mat.Dense) (*LandmarkSet, error) {
	if len(ids) != len(configs) {
		return nil, fmt.Errorf("have %d identifiers for %d configurations", len(ids), len(configs))
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("landmark set needs at least one subject")
	}

	rows, cols := configs[0].Dims()
	if cols != Dims {
		return nil, fmt.Errorf("configurations must have %d columns, got %d", Dims, cols)
	}

	set := &LandmarkSet{
		IDs:     append([]string(nil), ids...),
		Configs: make([]*mat.Dense, len(configs)),
	}
	for i, c := range configs {
		r, cc := c.Dims()
		if r != rows || cc != cols {
			return nil, fmt.Errorf("subject %s has shape %dx%d, expected %dx%d", ids[i], r, cc, rows, cols)
		}
		set.Configs[i] = mat.DenseCopyOf(c)
	}
	return set, nil
}

// NumLandmarks returns the number of landmarks per subject
func (s *LandmarkSet) NumLandmarks() int {
	if len(s.Configs) == 0 {
		return 0
	}
	r, _ := s.Configs[0].Dims()
	return r
}

// NumSubjects returns the number of subjects
func (s *LandmarkSet) NumSubjects() int { return len(s.Configs) }

// At returns coordinate c of landmark l for subject subj
func (s *LandmarkSet) At(l, c, subj int) float64 {
	return s.Configs[subj].At(l, c)
}

// Subject returns a copy of one subject's configuration
func (s *LandmarkSet) Subject(subj int) *mat.Dense {
	return mat.DenseCopyOf(s.Configs[subj])
}

// Mean returns the element-wise average configuration across subjects
func (s *LandmarkSet) Mean() *mat.Dense {
	mean := mat.NewDense(s.NumLandmarks(), Dims, nil)
	for _, c := range s.Configs {
		mean.Add(mean, c)
	}
	mean.Scale(1/float64(len(s.Configs)), mean)
	return mean
}

// FeatureVector flattens a landmarks×3 configuration into a single vector of
// three contiguous blocks: all x values, then all y, then all z.
func FeatureVector(config mat.Matrix) []float64 {
	rows, _ := config.Dims()
	out := make([]float64, rows*Dims)
	for c := 0; c < Dims; c++ {
		for l := 0; l < rows; l++ {
			out[c*rows+l] = config.At(l, c)
		}
	}
	return out
}

// FromFeatureVector is the inverse of FeatureVector
func FromFeatureVector(v []float64) *mat.Dense {
	rows := len(v) / Dims
	out := mat.NewDense(rows, Dims, nil)
	for c := 0; c < Dims; c++ {
		for l := 0; l < rows; l++ {
			out.Set(l, c, v[c*rows+l])
		}
	}
	return out
}
