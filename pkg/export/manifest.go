package export

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest describes one analysis run
type Manifest struct {
	RunID       string    `yaml:"runId"`
	CreatedAt   time.Time `yaml:"createdAt"`
	InputFolder string    `yaml:"inputFolder"`
	Subjects    []string  `yaml:"subjects"`
	Landmarks   int       `yaml:"landmarks"`
	Excluded    []int     `yaml:"excludedLandmarks,omitempty"`

	Scaling       bool      `yaml:"scaling"`
	Iterations    int       `yaml:"iterations"`
	Converged     bool      `yaml:"converged"`
	SumSquares    float64   `yaml:"sumSquares"`
	SortedByVar   bool      `yaml:"componentsSortedByVariance"`
	SampleScale   float64   `yaml:"sampleSizeScale"`
	ClosestSample string    `yaml:"closestSample"`
	PercentVar    []float64 `yaml:"percentVariance"`
	Files         []string  `yaml:"files"`
}

// Manifest writes manifest.yaml
func (w *Writer) Manifest(m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}
	path := w.Path(ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	w.log.Debugf("Wrote %s", path)
	return nil
}

// ReadManifest loads a manifest written by a previous run
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return &m, nil
}
