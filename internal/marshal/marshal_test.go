package marshal

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

func TestMarshalIntegersDoublesPointerString(t *testing.T) {
	types := []marshaltypes.ArgType{
		marshaltypes.ArgInt32, marshaltypes.ArgUint64, marshaltypes.ArgDouble,
		marshaltypes.ArgPointer, marshaltypes.ArgString,
	}
	args := []any{int32(-42), uint64(1000), 3.25, uint64(0xdeadbeef), "hello"}

	size, err := Size(types, args)
	require.NoError(t, err)
	require.Equal(t, 4+8+8+8+4+5, size)

	dst := make([]byte, size)
	require.NoError(t, Marshal(dst, types, args))

	require.Equal(t, int32(-42), int32(binary.LittleEndian.Uint32(dst[0:4])))
	require.Equal(t, uint64(1000), binary.LittleEndian.Uint64(dst[4:12]))
	require.Equal(t, 3.25, math.Float64frombits(binary.LittleEndian.Uint64(dst[12:20])))
	require.Equal(t, uint64(0xdeadbeef), binary.LittleEndian.Uint64(dst[20:28]))
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(dst[28:32]))
	require.Equal(t, "hello", string(dst[32:37]))
}

func TestMarshalNilStringEncodesZeroLength(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgString}
	args := []any{nil}

	size, err := Size(types, args)
	require.NoError(t, err)
	require.Equal(t, 4, size)

	dst := make([]byte, size)
	require.NoError(t, Marshal(dst, types, args))
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(dst))
}

func TestSizeRejectsOversizedEntry(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgString}
	big := make([]byte, MaxEntrySize)
	args := []any{string(big)}

	_, err := Size(types, args)
	require.ErrorIs(t, err, ErrEntryTooLarge)
}

func TestMarshalRejectsTypeMismatch(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgInt32}
	args := []any{"not an int"}

	_, err := Size(types, args)
	require.ErrorIs(t, err, ErrTypeMismatch)
}
