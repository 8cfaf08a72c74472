// Package export writes analysis artifacts as comma-separated files and a
// YAML run manifest.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/logger"
	"slicermorph/internal/models"
)

// Artifact file names
const (
	MeanShapeFile     = "MeanShape.csv"
	EigenvectorFile   = "eigenvector.csv"
	EigenvalueFile    = "eigenvalues.csv"
	OutputDataFile    = "OutputData.csv"
	PCScoresFile      = "pcScores.csv"
	DistanceTableFile = "procrustesDistances.csv"
	ManifestFile      = "manifest.yaml"
)

// TimestampLayout names run folders, e.g. 2024-03-01_14_05_09
const TimestampLayout = "2006-01-02_15_04_05"

// RunFolder returns the folder a run started at t writes into
func RunFolder(parent string, t time.Time, timestamped bool) string {
	if !timestamped {
		return parent
	}
	return filepath.Join(parent, t.Format(TimestampLayout))
}

// Writer writes artifacts into one directory
type Writer struct {
	dir string
	log logger.ILogger
}

// NewWriter creates the directory if needed
func NewWriter(dir string, log logger.ILogger) (*Writer, error) {
	if dir == "" {
		return nil, ErrNoDirectory
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	return &Writer{dir: dir, log: log}, nil
}

// Dir is the output directory
func (w *Writer) Dir() string { return w.dir }

// Path joins name onto the output directory
func (w *Writer) Path(name string) string { return filepath.Join(w.dir, name) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func matrixRecords(m mat.Matrix) [][]string {
	rows, cols := m.Dims()
	records := make([][]string, rows)
	for r := 0; r < rows; r++ {
		records[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			records[r][c] = formatFloat(m.At(r, c))
		}
	}
	return records
}

func (w *Writer) writeRecords(name string, records [][]string) error {
	path := w.Path(name)
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	cw := csv.NewWriter(file)
	if err := cw.WriteAll(records); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", path)
	}
	w.log.Debugf("Wrote %s (%d rows)", path, len(records))
	return nil
}

// MeanShape writes one landmark per row, x,y,z
func (w *Writer) MeanShape(mean mat.Matrix) error {
	return w.writeRecords(MeanShapeFile, matrixRecords(mean))
}

// Eigenvectors writes one component per column, each column laid out as the
// x block, then the y block, then the z block.
func (w *Writer) Eigenvectors(vectors mat.Matrix) error {
	return w.writeRecords(EigenvectorFile, matrixRecords(vectors))
}

// Eigenvalues writes one eigenvalue per row in component order
func (w *Writer) Eigenvalues(values []float64) error {
	records := make([][]string, len(values))
	for i, v := range values {
		records[i] = []string{formatFloat(v)}
	}
	return w.writeRecords(EigenvalueFile, records)
}

// OutputData writes the per-subject table: identifier, Procrustes distance,
// centroid size, then the aligned coordinates as x1,y1,z1,x2,...
func (w *Writer) OutputData(ids []string, distances, centroidSizes []float64, aligned []*mat.Dense) error {
	n := len(ids)
	if len(distances) != n || len(centroidSizes) != n || len(aligned) != n {
		return errors.Wrapf(ErrLengthMismatch, "%d ids, %d distances, %d centroid sizes, %d configurations",
			n, len(distances), len(centroidSizes), len(aligned))
	}

	numLandmarks := 0
	if n > 0 {
		numLandmarks, _ = aligned[0].Dims()
	}
	header := []string{"Sample_name", "proc_dist", "centeroid"}
	for l := 1; l <= numLandmarks; l++ {
		header = append(header, fmt.Sprintf("x%d", l), fmt.Sprintf("y%d", l), fmt.Sprintf("z%d", l))
	}

	records := [][]string{header}
	for s := 0; s < n; s++ {
		rows, _ := aligned[s].Dims()
		if rows != numLandmarks {
			return errors.Wrapf(ErrLengthMismatch, "subject %s has %d landmarks, expected %d", ids[s], rows, numLandmarks)
		}
		record := []string{ids[s], formatFloat(distances[s]), formatFloat(centroidSizes[s])}
		for l := 0; l < numLandmarks; l++ {
			for c := 0; c < models.Dims; c++ {
				record = append(record, formatFloat(aligned[s].At(l, c)))
			}
		}
		records = append(records, record)
	}
	return w.writeRecords(OutputDataFile, records)
}

// PCScores writes one subject per row with a leading identifier column and a
// PC1..PCn header.
func (w *Writer) PCScores(ids []string, scores mat.Matrix) error {
	rows, cols := scores.Dims()
	if rows != len(ids) {
		return errors.Wrapf(ErrLengthMismatch, "%d ids for %d score rows", len(ids), rows)
	}
	header := []string{"Sample_name"}
	for c := 1; c <= cols; c++ {
		header = append(header, fmt.Sprintf("PC%d", c))
	}
	records := [][]string{header}
	for r, values := range matrixRecords(scores) {
		records = append(records, append([]string{ids[r]}, values...))
	}
	return w.writeRecords(PCScoresFile, records)
}

// DistanceEntry is one row of the Procrustes distance table
type DistanceEntry struct {
	ID       string
	Distance float64
}

// SortedDistances pairs ids with distances, ordered from the most typical
// subject to the least. Ties keep subject order.
func SortedDistances(ids []string, distances []float64) ([]DistanceEntry, error) {
	if len(ids) != len(distances) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d ids, %d distances", len(ids), len(distances))
	}
	entries := make([]DistanceEntry, len(ids))
	for i := range ids {
		entries[i] = DistanceEntry{ID: ids[i], Distance: distances[i]}
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Distance < entries[b].Distance })
	return entries, nil
}

// DistanceTable writes the sorted Procrustes distance table
func (w *Writer) DistanceTable(ids []string, distances []float64) error {
	entries, err := SortedDistances(ids, distances)
	if err != nil {
		return err
	}
	records := [][]string{{"Sample_name", "proc_dist"}}
	for _, e := range entries {
		records = append(records, []string{e.ID, formatFloat(e.Distance)})
	}
	return w.writeRecords(DistanceTableFile, records)
}

// Table writes an arbitrary labelled table, such as a scene table node
func (w *Writer) Table(name string, columns []string, rows [][]string) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, columns)
	records = append(records, rows...)
	return w.writeRecords(name, records)
}
