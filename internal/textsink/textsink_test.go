package textsink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanolog/nanolog/internal/marshal"
	"github.com/nanolog/nanolog/internal/marshaltypes"
	"github.com/nanolog/nanolog/internal/registry"
)

func TestWriteEntryRendersFormattedLine(t *testing.T) {
	sites := registry.New()
	id, err := sites.Register(uint8(marshaltypes.LevelWarn), "test.c", 30, "Values: %d and %d",
		[]marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgInt32})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "trace.log")
	w, err := Create(path, "[%t] [%l] [%f:%L] %m", sites, 1000)
	require.NoError(t, err)

	payload := make([]byte, 8)
	require.NoError(t, marshal.Marshal(payload, []marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgInt32},
		[]any{int32(100), int32(200)}))

	require.NoError(t, w.WriteEntry(id, 1500, payload))
	require.Equal(t, uint32(1), w.EntriesWritten())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[1500] [WARN] [test.c:30] Values: 100 and 200\n", string(data))
}

func TestWriteEntryErrorsOnUnknownSite(t *testing.T) {
	sites := registry.New()
	path := filepath.Join(t.TempDir(), "trace.log")
	w, err := Create(path, "%m", sites, 0)
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteEntry(999, 0, nil)
	require.Error(t, err)
}

func TestFlushWithoutWriteIsNoOp(t *testing.T) {
	sites := registry.New()
	path := filepath.Join(t.TempDir(), "trace.log")
	w, err := Create(path, "%m", sites, 0)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())
}
