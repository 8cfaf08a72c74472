package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "analysis:\n  skipScaling: true\n  maxIterations: 7\ncapture:\n  width: 4000\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Analysis.SkipScaling)
	assert.Equal(t, 7, cfg.Analysis.MaxIterations)
	assert.Equal(t, 4000, cfg.Capture.Width)
	// untouched keys keep their defaults
	assert.Equal(t, 1080, cfg.Capture.Height)
	assert.Equal(t, ".fcsv", cfg.Analysis.LandmarkSuffix)
	assert.InDelta(t, 0.7, cfg.Visualization.LollipopRadius, 1e-12)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad_yaml.yaml":   "analysis: [unterminated",
		"tolerance.yaml":  "analysis:\n  tolerance: 0\n",
		"resolution.yaml": "capture:\n  height: -1\n",
		"suffix.yaml":     "analysis:\n  landmarkSuffix: \"\"\n",
		"filename.yaml":   "capture:\n  filename: \" \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Output.Directory = "/data/results"
	cfg.Visualization.TubeSides = 12

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "landmarkSuffix: .fcsv")
	assert.Contains(t, string(data), "sortComponents: true")
}
