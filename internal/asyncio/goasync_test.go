package asyncio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoAsyncSubmitWaitWritesAtOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	w, err := New(path, BackendGoroutine)
	require.NoError(t, err)

	require.NoError(t, w.Submit([]byte("hello "), 0))
	n, err := w.Wait()
	require.NoError(t, err)
	require.Equal(t, 6, n)

	require.NoError(t, w.Submit([]byte("world"), 6))
	n, err = w.Wait()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestGoAsyncCloseWithoutPendingWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	w, err := New(path, BackendGoroutine)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
