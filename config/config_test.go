package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default("/tmp/trace")
	require.NoError(t, c.Validate())
	require.Equal(t, RotationNone, c.RotationPolicy)
	require.Equal(t, FormatBinary, c.Format)
	require.True(t, c.HasTimestamps)
	require.Equal(t, "clog", c.Extension())
}

func TestExtensionForText(t *testing.T) {
	c := Default("/tmp/trace")
	c.Format = FormatText
	require.Equal(t, "log", c.Extension())
}

func TestValidateRejectsEmptyBasePath(t *testing.T) {
	c := Default("")
	require.Error(t, c.Validate())
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	c := Default("/tmp/trace")
	c.RotationPolicy = "WEEKLY"
	require.Error(t, c.Validate())

	c = Default("/tmp/trace")
	c.Format = "JSON"
	require.Error(t, c.Validate())

	c = Default("/tmp/trace")
	c.BlockCompression = "SNAPPY"
	require.Error(t, c.Validate())
}

func TestLoadOverlayIgnoresMissingFile(t *testing.T) {
	require.NoError(t, LoadOverlay(filepath.Join(t.TempDir(), "does-not-exist.env")))
}

func TestLoadOverlayLoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nanolog.env")
	require.NoError(t, os.WriteFile(path, []byte("NANOLOG_BASE_PATH=/var/log/nanolog\n"), 0o644))
	t.Setenv("NANOLOG_BASE_PATH", "")
	os.Unsetenv("NANOLOG_BASE_PATH")

	require.NoError(t, LoadOverlay(path))
	require.Equal(t, "/var/log/nanolog", os.Getenv("NANOLOG_BASE_PATH"))
}

func TestApplyEnvOverridesFields(t *testing.T) {
	t.Setenv("NANOLOG_ROTATION_POLICY", "daily")
	t.Setenv("NANOLOG_AFFINITY_CORE", "3")

	c := Default("/tmp/trace").ApplyEnv()
	require.Equal(t, RotationDaily, c.RotationPolicy)
	require.Equal(t, 3, c.AffinityCore)
}
