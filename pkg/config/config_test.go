package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "http:\n  port: \"9000\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, "mp4", cfg.Video.ProdFormat)
	assert.Equal(t, 0.25, cfg.Video.Scale)
	assert.Equal(t, "dnn", cfg.Detector.Backend)
	assert.Equal(t, []string{"detector.py"}, cfg.Detector.Args)

	if diff := cmp.Diff(pipeline.DefaultConfig(), cfg.Pipeline()); diff != "" {
		t.Errorf("Pipeline() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
directory:
  root: /srv/shots
  source: /srv/shots/in
frontend:
  static-files-path: /srv/client/
tracker:
  association_radius: 80
phase:
  rise_frames: 4
verifier:
  min_separation_px: 25
buffers:
  ball: 240
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/shots", cfg.Directory.Root)
	assert.Equal(t, "/srv/shots/in", cfg.Directory.Source)
	assert.Equal(t, "./data/ready", cfg.Directory.Ready)
	assert.Equal(t, "/srv/client/", cfg.Frontend.StaticFilesPath)

	p := cfg.Pipeline()
	assert.Equal(t, 80.0, p.Tracker.AssociationRadius)
	assert.Equal(t, 30, p.Tracker.Capacity)
	assert.Equal(t, 4, p.Phase.RiseFrames)
	assert.Equal(t, 25.0, p.Verifier.MinSeparationPx)
	assert.Equal(t, 240, p.BallCapacity)
	assert.Equal(t, 180, p.WristCapacity)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHOT_TRACKER_HTTP_PORT", "7070")
	t.Setenv("SHOT_TRACKER_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "http:\n  port: \"9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "http: [unclosed\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  color: false\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	broken := *cfg
	broken.Video.ProdFormat = ""
	assert.ErrorIs(t, broken.Validate(), ErrMissing)

	broken = *cfg
	broken.Database.Path = ""
	assert.ErrorIs(t, broken.Validate(), ErrMissing)

	broken = *cfg
	broken.Video.Scale = 1.5
	assert.Error(t, broken.Validate())
}

func TestDirectories(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  color: false\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"./data", "./data/source", "./data/ready", "./data/temp"}, cfg.Directories())
}
