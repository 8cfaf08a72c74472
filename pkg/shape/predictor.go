// Package shape synthesises landmark configurations along principal
// components and derives the per-landmark quantities the plots are built from.
package shape

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/pkg/pca"
)

// Selection picks one principal component and how far to move along it.
// Component is 1-based; 0 means the slot is unused.
type Selection struct {
	Component int
	Scale     float64
}

// ValidateSelections rejects component indices the model does not have.
// Run it at the input boundary, before any prediction.
func ValidateSelections(model *pca.Model, selections []Selection) error {
	for i, s := range selections {
		if s.Component < 0 || s.Component > model.NumComponents() {
			return errors.Wrapf(ErrInvalidComponent, "selection %d asks for PC%d, model has %d components",
				i+1, s.Component, model.NumComponents())
		}
	}
	return nil
}

// Shift accumulates scale × sampleScale × eigenvector over all selections into
// one landmarks×3 displacement field.
func Shift(model *pca.Model, selections []Selection, sampleScale float64) (*mat.Dense, error) {
	if err := ValidateSelections(model, selections); err != nil {
		return nil, err
	}

	shift := mat.NewDense(model.NumLandmarks(), 3, nil)
	for _, s := range selections {
		if s.Component == 0 || s.Scale == 0 {
			continue
		}
		block, err := model.ComponentShape(s.Component - 1)
		if err != nil {
			return nil, err
		}
		block.Scale(s.Scale*sampleScale, block)
		shift.Add(shift, block)
	}
	return shift, nil
}

// Predict moves base along the selected components. With every scale at zero
// it returns an unchanged copy of base.
func Predict(model *pca.Model, base mat.Matrix, selections []Selection, sampleScale float64) (*mat.Dense, error) {
	if err := checkShape(model, base); err != nil {
		return nil, err
	}
	shift, err := Shift(model, selections, sampleScale)
	if err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(base)
	out.Add(out, shift)
	return out, nil
}

// LollipopEndpoints returns base displaced by a third of scaleFactor times
// the component's eigenvector. component is 1-based.
func LollipopEndpoints(model *pca.Model, base mat.Matrix, component int, scaleFactor float64) (*mat.Dense, error) {
	if err := checkShape(model, base); err != nil {
		return nil, err
	}
	if component < 1 || component > model.NumComponents() {
		return nil, errors.Wrapf(ErrInvalidComponent, "PC%d of %d", component, model.NumComponents())
	}
	block, err := model.ComponentShape(component - 1)
	if err != nil {
		return nil, err
	}
	block.Scale(scaleFactor/3, block)
	out := mat.DenseCopyOf(base)
	out.Add(out, block)
	return out, nil
}

func checkShape(model *pca.Model, config mat.Matrix) error {
	rows, cols := config.Dims()
	if rows != model.NumLandmarks() || cols != 3 {
		return errors.Wrapf(ErrShapeMismatch, "got %dx%d, model has %d landmarks", rows, cols, model.NumLandmarks())
	}
	return nil
}
