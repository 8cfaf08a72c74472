// Package landmarks discovers and parses per-subject landmark files and
// assembles them into a single LandmarkSet.
package landmarks

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/logger"
	"slicermorph/internal/models"
)

// ProgressFunc is called after each file is parsed
type ProgressFunc func(done, total int, file string)

// Loader reads every landmark file below a root directory
type Loader struct {
	// Suffix selects landmark files; matching is case-sensitive
	Suffix string

	// Progress, when set, is notified per parsed file
	Progress ProgressFunc

	log logger.ILogger
}

// NewLoader creates a loader for files ending in suffix. An empty suffix
// selects DefaultSuffix.
func NewLoader(suffix string, log logger.ILogger) *Loader {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Loader{Suffix: suffix, log: log}
}

// Discover walks root and returns the matching files in traversal order
func (l *Loader) Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingDirectory, "%s", root)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrMissingDirectory, "%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), l.Suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoLandmarkFiles, "no *%s files below %s", l.Suffix, root)
	}
	return files, nil
}

// Load reads every landmark file under root, removes the excluded 1-based
// landmark indices from each subject and returns the assembled set. Subjects
// keep the order in which the files were discovered.
func (l *Loader) Load(root string, exclude []int) (*models.LandmarkSet, error) {
	files, err := l.Discover(root)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	configs := make([]*mat.Dense, 0, len(files))
	numLandmarks := -1
	for i, path := range files {
		config, err := ReadFile(path)
		if err != nil {
			return nil, err
		}

		rows, _ := config.Dims()
		if numLandmarks < 0 {
			numLandmarks = rows
		} else if rows != numLandmarks {
			return nil, errors.Wrapf(ErrLandmarkCountMismatch, "%s has %d landmarks, %s has %d",
				path, rows, files[0], numLandmarks)
		}

		ids = append(ids, strings.TrimSuffix(filepath.Base(path), l.Suffix))
		configs = append(configs, config)
		l.log.Debugf("Read %d landmarks from %s", rows, path)
		if l.Progress != nil {
			l.Progress(i+1, len(files), path)
		}
	}

	if len(exclude) > 0 {
		indices, err := normalizeExclusions(exclude, numLandmarks)
		if err != nil {
			return nil, err
		}
		for i := range configs {
			configs[i] = removeRows(configs[i], indices)
		}
		l.log.Infof("Excluded %d landmarks: %v", len(indices), indices)
	}

	set, err := models.NewLandmarkSet(ids, configs)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFile, err.Error())
	}
	l.log.Infof("Loaded %d subjects with %d landmark points", set.NumSubjects(), set.NumLandmarks())
	return set, nil
}
