package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanolog/nanolog/internal/marshal"
	"github.com/nanolog/nanolog/internal/marshaltypes"
	"github.com/nanolog/nanolog/internal/pack"
)

func marshalRaw(t *testing.T, types []marshaltypes.ArgType, args []any) []byte {
	t.Helper()
	size, err := marshal.Size(types, args)
	require.NoError(t, err)
	dst := make([]byte, size)
	require.NoError(t, marshal.Marshal(dst, types, args))
	return dst
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		types []marshaltypes.ArgType
		args  []any
	}{
		{
			name:  "single int32",
			types: []marshaltypes.ArgType{marshaltypes.ArgInt32},
			args:  []any{int32(42)},
		},
		{
			name:  "two int32s",
			types: []marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgInt32},
			args:  []any{int32(100), int32(200)},
		},
		{
			name:  "int32 and string",
			types: []marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgString},
			args:  []any{int32(500), "Internal error"},
		},
		{
			name:  "three int32s",
			types: []marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgInt32, marshaltypes.ArgInt32},
			args:  []any{int32(10), int32(20), int32(30)},
		},
		{
			name:  "mixed everything",
			types: []marshaltypes.ArgType{marshaltypes.ArgUint64, marshaltypes.ArgDouble, marshaltypes.ArgString, marshaltypes.ArgInt64},
			args:  []any{uint64(123456789), -3.14159, "hello world", int64(-9999)},
		},
		{
			name:  "no args",
			types: nil,
			args:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := marshalRaw(t, tc.types, tc.args)

			compressed, ok := Compress(raw, tc.types)
			require.True(t, ok)

			nonString := countNonString(tc.types)
			require.Equal(t, pack.DescriptorBytes(nonString), minDescLen(compressed, tc.types))

			decompressed, err := Decompress(compressed, tc.types)
			require.NoError(t, err)
			require.Equal(t, raw, decompressed)
		})
	}
}

func minDescLen(compressed []byte, types []marshaltypes.ArgType) int {
	return pack.DescriptorBytes(countNonString(types))
}

func TestDecompressDetectsTrailingBytes(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgInt32}
	raw := marshalRaw(t, types, []any{int32(1)})
	compressed, ok := Compress(raw, types)
	require.True(t, ok)

	corrupted := append(compressed, 0xFF)
	_, err := Decompress(corrupted, types)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecompressDetectsShortPayload(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgInt64}
	raw := marshalRaw(t, types, []any{int64(1 << 40)})
	compressed, ok := Compress(raw, types)
	require.True(t, ok)

	truncated := compressed[:len(compressed)-1]
	_, err := Decompress(truncated, types)
	require.Error(t, err)
}

func TestCompressFailsOnMalformedRaw(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgInt64}
	_, ok := Compress([]byte{1, 2, 3}, types) // too short for an int64
	require.False(t, ok)
}

func TestDecodeRawValuesMatchesInputs(t *testing.T) {
	types := []marshaltypes.ArgType{marshaltypes.ArgInt32, marshaltypes.ArgString}
	raw := marshalRaw(t, types, []any{int32(7), "x"})

	vals, err := DecodeRawValues(raw, types)
	require.NoError(t, err)
	require.Equal(t, int32(7), vals[0])
	require.Equal(t, "x", vals[1])
}
