package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatFileWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern.txt")
	require.NoError(t, os.WriteFile(path, []byte("%t %m\n"), 0o644))

	fw, err := NewFormatFileWatcher(path)
	require.NoError(t, err)
	defer fw.Close()

	require.Equal(t, "%t %m", fw.Pattern())

	require.NoError(t, os.WriteFile(path, []byte("[%l] %m\n"), 0o644))

	require.Eventually(t, func() bool {
		return fw.Pattern() == "[%l] %m"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewFormatFileWatcherErrorsOnMissingFile(t *testing.T) {
	_, err := NewFormatFileWatcher(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
