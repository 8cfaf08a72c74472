package landmarks

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
)

// DefaultSuffix is the file suffix of Slicer markups fiducial files
const DefaultSuffix = ".fcsv"

// ReadFile parses one landmark file into a landmarks×3 matrix
func ReadFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	config, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return config, nil
}

// Parse reads landmark rows from r. Lines starting with '#' are headers.
// Field 1 is the landmark identifier and fields 2-4 are x, y, z.
func Parse(r io.Reader) (*mat.Dense, error) {
	var coords []float64
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 1+models.Dims {
			return nil, errors.Wrapf(ErrMalformedFile, "line %d has %d fields, need at least %d", lineNo, len(fields), 1+models.Dims)
		}
		for c := 1; c <= models.Dims; c++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[c]), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedFile, "line %d field %d: %v", lineNo, c+1, err)
			}
			coords = append(coords, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read landmark data")
	}
	if len(coords) == 0 {
		return nil, errors.Wrap(ErrMalformedFile, "no landmark rows")
	}

	return mat.NewDense(len(coords)/models.Dims, models.Dims, coords), nil
}

const fcsvHeader = `# Markups fiducial file version = 4.10
# CoordinateSystem = 0
# columns = id,x,y,z,ow,ox,oy,oz,vis,sel,lock,label,desc,associatedNodeID
`

// Write emits a configuration in the markups fiducial layout so it can be
// reloaded by Parse or opened by the host application.
func Write(w io.Writer, config mat.Matrix) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(fcsvHeader); err != nil {
		return err
	}
	rows, _ := config.Dims()
	for l := 0; l < rows; l++ {
		_, err := fmt.Fprintf(bw, "vtkMRMLMarkupsFiducialNode_%d,%s,%s,%s,0,0,0,1,1,1,0,F-%d,,\n",
			l,
			strconv.FormatFloat(config.At(l, 0), 'g', -1, 64),
			strconv.FormatFloat(config.At(l, 1), 'g', -1, 64),
			strconv.FormatFloat(config.At(l, 2), 'g', -1, 64),
			l+1)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a configuration to path, see Write
func WriteFile(path string, config mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := Write(f, config); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}
