package landmarks

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
)

// ParseExclusions parses a comma separated list of 1-based landmark indices,
// e.g. "3, 7,12". An empty string yields no exclusions.
func ParseExclusions(text string) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var out []int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidExclusion, "%q is not an integer", part)
		}
		if v < 1 {
			return nil, errors.Wrapf(ErrInvalidExclusion, "index %d must be 1 or greater", v)
		}
		out = append(out, v)
	}
	return out, nil
}

// normalizeExclusions validates indices against the landmark count and
// returns them deduplicated in descending order, so rows can be removed one
// at a time without shifting the rows still to be removed.
func normalizeExclusions(exclude []int, numLandmarks int) ([]int, error) {
	seen := make(map[int]bool, len(exclude))
	var out []int
	for _, idx := range exclude {
		if idx < 1 || idx > numLandmarks {
			return nil, errors.Wrapf(ErrInvalidExclusion, "index %d outside 1..%d", idx, numLandmarks)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	if len(out) >= numLandmarks {
		return nil, errors.Wrapf(ErrInvalidExclusion, "excluding %d of %d landmarks leaves none", len(out), numLandmarks)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// Exclude returns a copy of config with the given 1-based landmark rows removed
func Exclude(config mat.Matrix, exclude []int) (*mat.Dense, error) {
	rows, _ := config.Dims()
	indices, err := normalizeExclusions(exclude, rows)
	if err != nil {
		return nil, err
	}
	return removeRows(config, indices), nil
}

// removeRows drops the 1-based rows listed in descending order
func removeRows(config mat.Matrix, descending []int) *mat.Dense {
	current := mat.DenseCopyOf(config)
	for _, idx := range descending {
		rows, _ := current.Dims()
		next := mat.NewDense(rows-1, models.Dims, nil)
		dst := 0
		for r := 0; r < rows; r++ {
			if r == idx-1 {
				continue
			}
			next.SetRow(dst, current.RawRowView(r))
			dst++
		}
		current = next
	}
	return current
}
