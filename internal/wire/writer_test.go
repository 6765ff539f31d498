package wire

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

func TestWriterHeaderPatchOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.clog")

	w, err := Create(path, DefaultBufferSize, true, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(1_000_000_000, 0, 1700000000, 0))

	const k = 5
	for i := 0; i < k; i++ {
		require.NoError(t, w.WriteEntry(uint32(i), uint64(i*1000), []byte{byte(i)}))
	}

	sites := []SiteDictEntry{{SiteID: 0, Level: 1, ArgCount: 0, Line: 10, Filename: "test.c", Format: "hi"}}
	require.NoError(t, w.Close(sites, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	h, _, err := DecodeHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint32(MagicFile), h.Magic)
	require.Equal(t, uint32(k), h.EntryCount)
	require.NotZero(t, h.DictionaryOffset)

	dictBuf := data[h.DictionaryOffset:]
	_, n, err := DecodeSiteDict(dictBuf, binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, len(dictBuf), n)
}

func TestWriterAccountsEntriesAcrossFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.clog")

	w, err := Create(path, 4<<20, true, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(1, 0, 0, 0))

	payload := make([]byte, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteEntry(uint32(i), uint64(i), payload))
	}

	entries, _ := w.Stats()
	require.Equal(t, uint32(3), entries)

	require.NoError(t, w.Close(nil, nil))
}

func TestWriterRejectsOversizedPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.clog")

	w, err := Create(path, DefaultBufferSize, true, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(1, 0, 0, 0))

	big := make([]byte, MaxEntrySize+1)
	err = w.WriteEntry(0, 0, big)
	require.Error(t, err)
	require.NoError(t, w.Close(nil, nil))
}

func TestWriterRotateStartsFreshFile(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "trace-a.clog")
	pathB := filepath.Join(dir, "trace-b.clog")

	w, err := Create(pathA, DefaultBufferSize, true, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(1, 0, 0, 0))
	require.NoError(t, w.WriteEntry(0, 0, []byte("x")))

	sites := []SiteDictEntry{{SiteID: 0, Line: 1, Filename: "a.c", Format: "x", ArgTypes: [50]marshaltypes.ArgType{}}}
	require.NoError(t, w.Rotate(pathB, sites, nil, 0, 0, 0))

	entries, bytesWritten := w.Stats()
	require.Equal(t, uint32(0), entries)
	require.Equal(t, uint64(HeaderSize), bytesWritten)
	require.Equal(t, pathB, w.Path())

	require.NoError(t, w.WriteEntry(0, 0, []byte("y")))
	require.NoError(t, w.Close(nil, nil))

	dataA, err := os.ReadFile(pathA)
	require.NoError(t, err)
	hA, _, err := DecodeHeader(dataA)
	require.NoError(t, err)
	require.Equal(t, uint32(1), hA.EntryCount)

	dataB, err := os.ReadFile(pathB)
	require.NoError(t, err)
	hB, _, err := DecodeHeader(dataB)
	require.NoError(t, err)
	require.Equal(t, uint32(1), hB.EntryCount)
}
