package analysis

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"slicermorph/pkg/config"
	"slicermorph/pkg/export"
	"slicermorph/pkg/landmarks"
	"slicermorph/pkg/shape"
)

func writeSubjects(t *testing.T, dir string, subjects map[string][]float64) {
	t.Helper()
	for name, data := range subjects {
		path := filepath.Join(dir, name+landmarks.DefaultSuffix)
		require.NoError(t, landmarks.WriteFile(path, mat.NewDense(len(data)/3, 3, data)))
	}
}

// squareFixture is one square in the xz plane, the same square turned 90
// degrees about the vertical axis and the square at twice the size.
func squareFixture(t *testing.T) string {
	dir := t.TempDir()
	writeSubjects(t, dir, map[string][]float64{
		"a_canonical": {1, 0, 1, -1, 0, 1, -1, 0, -1, 1, 0, -1},
		"b_rotated":   {1, 0, -1, 1, 0, 1, -1, 0, 1, -1, 0, -1},
		"c_scaled":    {2, 0, 2, -2, 0, 2, -2, 0, -2, 2, 0, -2},
	})
	return dir
}

// variedFixture is five perturbed copies of a non-planar five landmark shape
func variedFixture(t *testing.T) string {
	dir := t.TempDir()
	base := []float64{0, 0, 0, 10, 0, 0, 0, 10, 0, 0, 0, 10, 10, 10, 10}
	subjects := map[string][]float64{}
	for s, name := range []string{"s1", "s2", "s3", "s4", "s5"} {
		data := make([]float64, len(base))
		for i, v := range base {
			data[i] = v + 0.3*math.Sin(float64((s+1)*(i+2)))
		}
		subjects[name] = data
	}
	writeSubjects(t, dir, subjects)
	return dir
}

func defaultParams(input, output string) *Params {
	return &Params{
		InputDir:        input,
		Scaling:         true,
		MaxIterations:   100,
		Tolerance:       1e-10,
		SortComponents:  true,
		OutputDir:       output,
		TimestampFolder: true,
	}
}

func TestRunSquareScenario(t *testing.T) {
	input := squareFixture(t)
	output := t.TempDir()
	started := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

	analyzer := NewAnalyzer(defaultParams(input, output), nil)
	analyzer.now = func() time.Time { return started }

	var stages []StageName
	analyzer.SetProgressCallback(func(stage StageName, completed, total int, message string) {
		if len(stages) == 0 || stages[len(stages)-1] != stage {
			stages = append(stages, stage)
		}
	})

	res, err := analyzer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []StageName{StageLoad, StageAlign, StagePCA, StageExport}, stages)
	assert.Equal(t, []string{"a_canonical", "b_rotated", "c_scaled"}, res.IDs)
	assert.True(t, res.Converged())

	a := 1 / math.Sqrt(8)
	want := mat.NewDense(4, 3, []float64{a, 0, a, -a, 0, a, -a, 0, -a, a, 0, -a})
	assert.True(t, mat.EqualApprox(res.Mean(), want, 1e-9), "mean %v", mat.Formatted(res.Mean()))
	for i, d := range res.Distances {
		assert.InDelta(t, 0, d, 1e-9, "subject %d", i)
	}

	var sum float64
	for _, v := range res.Model.Values {
		assert.GreaterOrEqual(t, v, -1e-9)
		sum += v
	}
	assert.InDelta(t, mat.Trace(res.Model.Covariance), sum, 1e-9)

	assert.InDelta(t, math.Sqrt(8), res.CentroidSizes[0], 1e-12)
	assert.InDelta(t, 2*math.Sqrt(8), res.CentroidSizes[2], 1e-12)

	folder := filepath.Join(output, "2024-03-01_14_05_09")
	assert.Equal(t, folder, res.OutputFolder)
	for _, name := range []string{
		export.MeanShapeFile, export.EigenvectorFile, export.EigenvalueFile,
		export.OutputDataFile, export.PCScoresFile, export.DistanceTableFile,
	} {
		_, err := os.Stat(filepath.Join(folder, name))
		assert.NoError(t, err, name)
	}

	manifest, err := export.ReadManifest(filepath.Join(folder, export.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, res.RunID, manifest.RunID)
	assert.Equal(t, 3, len(manifest.Subjects))
	assert.Equal(t, 4, manifest.Landmarks)
	assert.True(t, manifest.Converged)
	assert.True(t, manifest.SortedByVar)
	assert.Len(t, manifest.Files, 6)
}

func TestRunWithoutOutputWritesNothing(t *testing.T) {
	params := defaultParams(squareFixture(t), "")
	res, err := NewAnalyzer(params, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.OutputFolder)
	assert.NotEmpty(t, res.RunID)
}

func TestRunsAreIndependent(t *testing.T) {
	analyzer := NewAnalyzer(defaultParams(variedFixture(t), ""), nil)
	first, err := analyzer.Run(context.Background())
	require.NoError(t, err)
	second, err := analyzer.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	mean := first.Mean()
	mean.Set(0, 0, 1000)
	assert.True(t, mat.Equal(first.Mean(), second.Mean()))
}

func TestRunErrorsCarryStage(t *testing.T) {
	_, err := NewAnalyzer(&Params{}, nil).Run(context.Background())
	assert.True(t, errors.Is(err, ErrNoInput))
	assert.Equal(t, StageLoad, Stage(err))

	missing := defaultParams(filepath.Join(t.TempDir(), "absent"), "")
	_, err = NewAnalyzer(missing, nil).Run(context.Background())
	assert.True(t, errors.Is(err, landmarks.ErrMissingDirectory), "got %v", err)
	assert.Equal(t, StageLoad, Stage(err))

	empty := defaultParams(t.TempDir(), "")
	_, err = NewAnalyzer(empty, nil).Run(context.Background())
	assert.True(t, errors.Is(err, landmarks.ErrNoLandmarkFiles), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewAnalyzer(defaultParams(squareFixture(t), ""), nil).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, StageAlign, Stage(err))

	assert.Equal(t, StageName(""), Stage(errors.New("unrelated")))
}

func TestRunAsync(t *testing.T) {
	out := NewAnalyzer(defaultParams(variedFixture(t), ""), nil).RunAsync(context.Background())
	outcome, ok := <-out
	require.True(t, ok)
	require.NoError(t, outcome.Err)
	assert.Equal(t, 5, outcome.Result.NumSubjects())

	_, ok = <-out
	assert.False(t, ok, "channel closes after one outcome")
}

func TestResultShapeOperations(t *testing.T) {
	res, err := NewAnalyzer(defaultParams(variedFixture(t), ""), nil).Run(context.Background())
	require.NoError(t, err)

	// largest spacing of the raw mean is the cube diagonal, about 10·√3
	assert.InDelta(t, 10*math.Sqrt(3), res.SampleScale, 1)
	assert.Contains(t, res.IDs, res.ClosestSample())

	table := res.DistanceTable()
	require.Len(t, table, 5)
	assert.Equal(t, res.ClosestSample(), table[0].ID)

	unchanged, err := res.Predict(nil, []shape.Selection{{Component: 1, Scale: 0}})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(unchanged, res.RawMean(), 1e-12))

	moved, err := res.Predict(nil, []shape.Selection{{Component: 1, Scale: 0.2}})
	require.NoError(t, err)
	var diff mat.Dense
	diff.Sub(moved, res.RawMean())
	assert.InDelta(t, 0.2*res.SampleScale, mat.Norm(&diff, 2), 1e-9)

	_, err = res.Predict(nil, []shape.Selection{{Component: 99, Scale: 1}})
	assert.True(t, errors.Is(err, shape.ErrInvalidComponent))

	endpoints, err := res.Lollipop(nil, 1)
	require.NoError(t, err)
	diff.Sub(endpoints, res.RawMean())
	assert.InDelta(t, res.SampleScale/3, mat.Norm(&diff, 2), 1e-9)

	variation, err := res.Variation()
	require.NoError(t, err)
	rows, cols := variation.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 3, cols)

	proj, xTitle, yTitle, err := res.Scatter(1, 2)
	require.NoError(t, err)
	pr, _ := proj.Dims()
	assert.Equal(t, 5, pr)
	assert.Contains(t, xTitle, "PC1")
	assert.Contains(t, yTitle, "PC2")
	_, _, _, err = res.Scatter(0, 1)
	assert.Error(t, err)

	selections := []shape.Selection{{Component: 1, Scale: 0.1}}
	warp, err := res.Warp(nil, selections)
	require.NoError(t, err)
	target, err := res.Predict(nil, selections)
	require.NoError(t, err)
	raw := res.RawMean()
	for l := 0; l < 5; l++ {
		got := warp.TransformPoint([3]float64{raw.At(l, 0), raw.At(l, 1), raw.At(l, 2)})
		for c := 0; c < 3; c++ {
			assert.InDelta(t, target.At(l, c), got[c], 1e-6)
		}
	}
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.SkipScaling = true
	cfg.Output.Directory = "/results"

	p := ParamsFromConfig(cfg, "/landmarks", []int{2})
	assert.Equal(t, "/landmarks", p.InputDir)
	assert.Equal(t, ".fcsv", p.Suffix)
	assert.False(t, p.Scaling)
	assert.Equal(t, []int{2}, p.Exclude)
	assert.Equal(t, 100, p.MaxIterations)
	assert.True(t, p.SortComponents)
	assert.Equal(t, "/results", p.OutputDir)
	assert.True(t, p.TimestampFolder)
}

func TestWarpOnPlanarLandmarks(t *testing.T) {
	res, err := NewAnalyzer(defaultParams(squareFixture(t), ""), nil).Run(context.Background())
	require.NoError(t, err)

	selections := []shape.Selection{{Component: 1, Scale: 0.1}}
	warp, err := res.Warp(nil, selections)
	require.NoError(t, err)
	target, err := res.Predict(nil, selections)
	require.NoError(t, err)

	warped := warp.Transform(res.RawMean())
	assert.True(t, mat.EqualApprox(warped, target, 1e-6),
		"got\n%v\nwant\n%v", mat.Formatted(warped), mat.Formatted(target))
}
